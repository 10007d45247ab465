package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserPackageRepository reads package entitlements granted by the payment flow.
type UserPackageRepository struct {
	pool *pgxpool.Pool
}

// NewUserPackageRepository creates a new UserPackageRepository.
func NewUserPackageRepository(pool *pgxpool.Pool) *UserPackageRepository {
	return &UserPackageRepository{pool: pool}
}

// HasPackage reports whether the user owns the package.
func (r *UserPackageRepository) HasPackage(ctx context.Context, userID uuid.UUID, packageID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_packages WHERE user_id = $1 AND package_id = $2)`,
		userID, packageID,
	).Scan(&ok)
	return ok, err
}

// Grant records an entitlement. Granting an already owned package is a no-op.
func (r *UserPackageRepository) Grant(ctx context.Context, userID uuid.UUID, packageID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_packages (user_id, package_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, package_id) DO NOTHING`,
		userID, packageID,
	)
	return err
}

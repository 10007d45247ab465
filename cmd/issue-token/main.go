package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-tryout/internal/config"
	"github.com/stemsi/exstem-tryout/internal/database"
	"github.com/stemsi/exstem-tryout/internal/logger"
	"github.com/stemsi/exstem-tryout/internal/repository"
	"github.com/stemsi/exstem-tryout/internal/service"
	"golang.org/x/term"
)

// issue-token mints a user JWT for local testing and optionally grants
// package entitlements to that user.
func main() {
	var (
		userFlag  string
		role      string
		ttl       time.Duration
		grantFlag string
	)
	flag.StringVar(&userFlag, "user", "", "User UUID (random when empty)")
	flag.StringVar(&role, "role", "user", "Role claim")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	flag.StringVar(&grantFlag, "grant", "", "Comma-separated package IDs to grant")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// ─── CLI Input ─────────────────────────────────────────────────────
	if cfg.JWTSecret == "" {
		fmt.Print("Enter JWT secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Println("Error reading secret")
			os.Exit(1)
		}
		cfg.JWTSecret = strings.TrimSpace(string(secret))
		if cfg.JWTSecret == "" {
			fmt.Println("Error: secret is required")
			os.Exit(1)
		}
	}

	userID := uuid.New()
	if userFlag == "" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Print("Enter User ID (empty for random): ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		userFlag = strings.TrimSpace(line)
	}
	if userFlag != "" {
		parsed, err := uuid.Parse(userFlag)
		if err != nil {
			fmt.Printf("Error: invalid user id %q\n", userFlag)
			os.Exit(1)
		}
		userID = parsed
	}

	packageIDs, err := parseIDs(grantFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// ─── Grant Entitlements ────────────────────────────────────────────
	if len(packageIDs) > 0 {
		ctx := context.Background()
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		repo := repository.NewUserPackageRepository(pool)
		for _, id := range packageIDs {
			if err := repo.Grant(ctx, userID, id); err != nil {
				log.Fatal().Err(err).Int64("package_id", id).Msg("Failed to grant package")
			}
			log.Info().Str("user_id", userID.String()).Int64("package_id", id).Msg("Package granted")
		}
	}

	// ─── Sign ──────────────────────────────────────────────────────────
	token, err := service.NewAuthService(cfg).GenerateToken(userID, role, ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	fmt.Printf("User ID: %s\nExpires: %s\n\n%s\n", userID, time.Now().Add(ttl).Format(time.RFC3339), token)
}

func parseIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid package id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

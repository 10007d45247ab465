package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden   ErrCode = "FORBIDDEN"
	ErrNotEntitled ErrCode = "NOT_ENTITLED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrPackageNotFound      ErrCode = "PACKAGE_NOT_FOUND"
	ErrSessionNotFound      ErrCode = "SESSION_NOT_FOUND"
	ErrSessionCompleted     ErrCode = "SESSION_COMPLETED"
	ErrSessionNotCompleted  ErrCode = "SESSION_NOT_COMPLETED"
	ErrTimeUp               ErrCode = "TIME_UP"
	ErrSessionBusy          ErrCode = "SESSION_BUSY"
	ErrInvalidIndex         ErrCode = "INVALID_INDEX"
	ErrQuestionMismatch     ErrCode = "QUESTION_MISMATCH"
	ErrQuestionNotInSession ErrCode = "QUESTION_NOT_IN_SESSION"
	ErrChoiceNotInQuestion  ErrCode = "CHOICE_NOT_IN_QUESTION"
	ErrInvalidReviewNumber  ErrCode = "INVALID_REVIEW_NUMBER"
	ErrNoQuestions          ErrCode = "NO_QUESTIONS"
	ErrCorruptSession       ErrCode = "CORRUPT_SESSION"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrNotEntitled:
		return "Anda belum memiliki paket ini."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrPackageNotFound:
		return "Paket tidak ditemukan."
	case ErrSessionNotFound:
		return "Sesi ujian tidak ditemukan."
	case ErrSessionCompleted:
		return "Sesi ujian sudah selesai."
	case ErrSessionNotCompleted:
		return "Sesi ujian belum selesai."
	case ErrTimeUp:
		return "Waktu ujian telah habis."
	case ErrSessionBusy:
		return "Sesi sedang sibuk. Silakan coba lagi."
	case ErrInvalidIndex:
		return "Nomor soal tidak valid."
	case ErrQuestionMismatch:
		return "Soal tidak sesuai dengan nomor soal."
	case ErrQuestionNotInSession:
		return "Soal bukan bagian dari sesi ini."
	case ErrChoiceNotInQuestion:
		return "Pilihan jawaban bukan milik soal ini."
	case ErrInvalidReviewNumber:
		return "Nomor soal pembahasan tidak valid."
	case ErrNoQuestions:
		return "Ujian ini tidak memiliki pertanyaan."
	case ErrCorruptSession:
		return "Data sesi ujian rusak."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}

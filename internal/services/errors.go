package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/ecohubkosova/ecohub/pkg/errors"
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	// go-sqlite3 reports constraint failures only through the message text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// asServiceError passes taxonomy errors through untouched and turns anything else into
// ErrDataAccess after logging the store failure.
func asServiceError(log *zap.Logger, op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	if log != nil {
		log.Error("data access failed", zap.String("operation", op), zap.Error(err))
	}
	return apperrors.DataAccess(err)
}

// resultLabel maps an operation outcome onto the metrics result label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrNotAuthorized):
		return "denied"
	case errors.Is(err, apperrors.ErrLastAdmin):
		return "last_admin"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperrors.ErrEmailMismatch):
		return "email_mismatch"
	default:
		return "error"
	}
}

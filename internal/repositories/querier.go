package repositories

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "rental-system/pkg/errors"
)

// Querier - общее у pgx.Tx и *pgxpool.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// pgConstraint - имя нарушенного ограничения, чтобы отличать serial_number от barcode.
func pgConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// checkViolationError - нарушение CHECK (количество, перечисления) становится ошибкой валидации,
// а не внутренней ошибкой сервера. Для прочих ошибок возвращает nil.
func checkViolationError(err error) error {
	if pgErrorCode(err) != pgCheckViolation {
		return nil
	}
	constraint := pgConstraint(err)
	return apperrors.NewValidationError("значение не прошло проверку ограничения %s", constraint).
		With("constraint", constraint)
}

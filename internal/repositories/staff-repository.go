package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rental-system/internal/entities"
	apperrors "rental-system/pkg/errors"
)

const staffTable = "staff_assignments"

type StaffRepositoryInterface interface {
	Create(ctx context.Context, tx pgx.Tx, a entities.StaffAssignment) (uint64, error)
	Delete(ctx context.Context, tx pgx.Tx, eventID, userID uint64) error
	GetByEventID(ctx context.Context, eventID uint64) ([]*entities.StaffAssignment, error)
}

type staffRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewStaffRepository(storage *pgxpool.Pool, logger *zap.Logger) StaffRepositoryInterface {
	return &staffRepository{storage: storage, logger: logger}
}

func (r *staffRepository) Create(ctx context.Context, tx pgx.Tx, a entities.StaffAssignment) (uint64, error) {
	query, args, err := psql.Insert(staffTable).
		Columns("event_id", "user_id", "role", "notes", "created_at").
		Values(a.EventID, a.UserID, a.Role, a.Notes, sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create staff: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return 0, apperrors.NewConflictError("сотрудник %d уже назначен на мероприятие %d", a.UserID, a.EventID)
		case pgForeignKeyViolation:
			return 0, apperrors.NewValidationError("сотрудник %d или мероприятие %d не существует", a.UserID, a.EventID)
		}
		return 0, fmt.Errorf("ошибка создания staff_assignments: %w", err)
	}
	return newID, nil
}

func (r *staffRepository) Delete(ctx context.Context, tx pgx.Tx, eventID, userID uint64) error {
	query, args, err := psql.Delete(staffTable).Where(sq.Eq{"event_id": eventID, "user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Delete staff: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка удаления staff_assignments: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("сотрудник %d не назначен на мероприятие %d", userID, eventID)
	}
	return nil
}

func (r *staffRepository) GetByEventID(ctx context.Context, eventID uint64) ([]*entities.StaffAssignment, error) {
	query, args, err := psql.Select("s.id, s.event_id, s.user_id, s.role, s.notes, s.created_at, COALESCE(u.fio, '')").
		From("staff_assignments AS s").
		LeftJoin("users AS u ON u.id = s.user_id").
		Where(sq.Eq{"s.event_id": eventID}).
		OrderBy("s.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL GetByEventID staff: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения GetByEventID staff: %w", err)
	}
	defer rows.Close()

	staff := make([]*entities.StaffAssignment, 0)
	for rows.Next() {
		var a entities.StaffAssignment
		if err := rows.Scan(&a.ID, &a.EventID, &a.UserID, &a.Role, &a.Notes, &a.CreatedAt, &a.UserFio); err != nil {
			return nil, fmt.Errorf("ошибка сканирования staff_assignments: %w", err)
		}
		staff = append(staff, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows staff: %w", err)
	}
	return staff, nil
}

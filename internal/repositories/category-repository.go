package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rental-system/internal/entities"
	apperrors "rental-system/pkg/errors"
)

const (
	categoryTable  = "equipment_categories"
	categoryFields = "id, name, description, created_at, updated_at"
)

type CategoryRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EquipmentCategory, error)
	FindByName(ctx context.Context, tx pgx.Tx, name string) (*entities.EquipmentCategory, error)
	GetAll(ctx context.Context) ([]*entities.EquipmentCategory, error)
	Create(ctx context.Context, tx pgx.Tx, c entities.EquipmentCategory) (uint64, error)
	Update(ctx context.Context, tx pgx.Tx, c entities.EquipmentCategory) error
	Delete(ctx context.Context, tx pgx.Tx, id uint64) error
}

type categoryRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewCategoryRepository(storage *pgxpool.Pool, logger *zap.Logger) CategoryRepositoryInterface {
	return &categoryRepository{storage: storage, logger: logger}
}

func (r *categoryRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *categoryRepository) scanRow(row pgx.Row) (*entities.EquipmentCategory, error) {
	var c entities.EquipmentCategory
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования equipment_categories: %w", err)
	}
	return &c, nil
}

func (r *categoryRepository) findOne(ctx context.Context, tx pgx.Tx, where sq.Eq) (*entities.EquipmentCategory, error) {
	query, args, err := psql.Select(categoryFields).From(categoryTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL category findOne: %w", err)
	}
	return r.scanRow(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *categoryRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EquipmentCategory, error) {
	return r.findOne(ctx, tx, sq.Eq{"id": id})
}

func (r *categoryRepository) FindByName(ctx context.Context, tx pgx.Tx, name string) (*entities.EquipmentCategory, error) {
	return r.findOne(ctx, tx, sq.Eq{"name": name})
}

func (r *categoryRepository) GetAll(ctx context.Context) ([]*entities.EquipmentCategory, error) {
	query, args, err := psql.Select(categoryFields).From(categoryTable).OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL category GetAll: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения select категорий: %w", err)
	}
	defer rows.Close()

	categories := make([]*entities.EquipmentCategory, 0)
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows: %w", err)
	}
	return categories, nil
}

func (r *categoryRepository) Create(ctx context.Context, tx pgx.Tx, c entities.EquipmentCategory) (uint64, error) {
	query, args, err := psql.Insert(categoryTable).
		Columns("name", "description", "created_at", "updated_at").
		Values(c.Name, c.Description, sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return 0, apperrors.NewConflictError("категория %q уже существует", c.Name)
		}
		return 0, fmt.Errorf("ошибка создания equipment_categories: %w", err)
	}
	return newID, nil
}

func (r *categoryRepository) Update(ctx context.Context, tx pgx.Tx, c entities.EquipmentCategory) error {
	query, args, err := psql.Update(categoryTable).
		Set("name", c.Name).
		Set("description", c.Description).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Update: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return apperrors.NewConflictError("категория %q уже существует", c.Name)
		}
		return fmt.Errorf("ошибка обновления equipment_categories: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *categoryRepository) Delete(ctx context.Context, tx pgx.Tx, id uint64) error {
	query, args, err := psql.Delete(categoryTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Delete: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return apperrors.NewValidationError("категория %d не может быть удалена, пока в ней есть оборудование", id)
		}
		return fmt.Errorf("ошибка удаления equipment_categories: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rental-system/internal/entities"
	"rental-system/internal/infrastructure/bd"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
)

const (
	equipmentTable  = "equipment_items"
	equipmentFields = `e.id, e.name, e.category_id, e.serial_number, e.barcode, e.quantity, e.current_status,
		e.daily_rate, e.notes, e.created_at, e.updated_at, COALESCE(c.name, '')`
	equipmentFrom = "equipment_items AS e LEFT JOIN equipment_categories AS c ON c.id = e.category_id"
)

// Белый список для фильтров и сортировки
var equipmentMap = map[string]string{
	"id":             "e.id",
	"name":           "e.name",
	"category_id":    "e.category_id",
	"current_status": "e.current_status",
	"status":         "e.current_status",
	"serial_number":  "e.serial_number",
	"barcode":        "e.barcode",
	"quantity":       "e.quantity",
	"daily_rate":     "e.daily_rate",
	"created_at":     "e.created_at",
	"updated_at":     "e.updated_at",
}

type EquipmentRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EquipmentItem, error)
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EquipmentItem, error)
	// LockByIDs блокирует строки по возрастанию id. Отсутствующие id в результат не попадают.
	LockByIDs(ctx context.Context, tx pgx.Tx, ids []uint64) (map[uint64]*entities.EquipmentItem, error)
	FindBySerialNumber(ctx context.Context, tx pgx.Tx, serial string) (*entities.EquipmentItem, error)
	GetAll(ctx context.Context, filter types.Filter) ([]*entities.EquipmentItem, uint64, error)
	Create(ctx context.Context, tx pgx.Tx, item entities.EquipmentItem) (uint64, error)
	Update(ctx context.Context, tx pgx.Tx, item entities.EquipmentItem) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uint64, status entities.EquipmentStatus) error
	Delete(ctx context.Context, tx pgx.Tx, id uint64) error
	CountByCategory(ctx context.Context, tx pgx.Tx, categoryID uint64) (int64, error)
	CountByStatus(ctx context.Context) ([]entities.StatusCount, error)
}

type equipmentRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewEquipmentRepository(storage *pgxpool.Pool, logger *zap.Logger) EquipmentRepositoryInterface {
	return &equipmentRepository{storage: storage, logger: logger}
}

func (r *equipmentRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *equipmentRepository) scanRow(row pgx.Row) (*entities.EquipmentItem, error) {
	var e entities.EquipmentItem
	err := row.Scan(
		&e.ID, &e.Name, &e.CategoryID, &e.SerialNumber, &e.Barcode, &e.Quantity, &e.CurrentStatus,
		&e.DailyRate, &e.Notes, &e.CreatedAt, &e.UpdatedAt, &e.CategoryName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования equipment_items: %w", err)
	}
	return &e, nil
}

func (r *equipmentRepository) findOne(ctx context.Context, tx pgx.Tx, where sq.Sqlizer, forUpdate bool) (*entities.EquipmentItem, error) {
	builder := psql.Select(equipmentFields).From(equipmentFrom).Where(where)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE OF e")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL equipment findOne: %w", err)
	}
	return r.scanRow(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *equipmentRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EquipmentItem, error) {
	return r.findOne(ctx, tx, sq.Eq{"e.id": id}, false)
}

func (r *equipmentRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EquipmentItem, error) {
	return r.findOne(ctx, tx, sq.Eq{"e.id": id}, true)
}

func (r *equipmentRepository) FindBySerialNumber(ctx context.Context, tx pgx.Tx, serial string) (*entities.EquipmentItem, error) {
	return r.findOne(ctx, tx, sq.Eq{"e.serial_number": serial}, false)
}

func (r *equipmentRepository) LockByIDs(ctx context.Context, tx pgx.Tx, ids []uint64) (map[uint64]*entities.EquipmentItem, error) {
	result := make(map[uint64]*entities.EquipmentItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	query, args, err := psql.Select(equipmentFields).
		From(equipmentFrom).
		Where(sq.Eq{"e.id": sorted}).
		OrderBy("e.id").
		Suffix("FOR UPDATE OF e").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL LockByIDs: %w", err)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки оборудования: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows в LockByIDs: %w", err)
	}
	return result, nil
}

func (r *equipmentRepository) applyWhere(builder sq.SelectBuilder, filter types.Filter) sq.SelectBuilder {
	builder = bd.ApplySearch(builder, filter.Search, "e.name", "e.serial_number", "e.barcode")
	return bd.ApplyFilters(builder, filter, equipmentMap)
}

func (r *equipmentRepository) GetAll(ctx context.Context, filter types.Filter) ([]*entities.EquipmentItem, uint64, error) {
	// ЗАПРОС №1: COUNT
	countQuery, countArgs, err := r.applyWhere(psql.Select("COUNT(e.id)").From(equipmentFrom), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL count: %w", err)
	}

	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения count: %w", err)
	}
	if total == 0 {
		return []*entities.EquipmentItem{}, 0, nil
	}

	// ЗАПРОС №2: SELECT
	selectBuilder := r.applyWhere(psql.Select(equipmentFields).From(equipmentFrom), filter)
	selectBuilder = bd.ApplyListParams(selectBuilder, filter, equipmentMap, "e.id DESC")

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL select: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения select: %w", err)
	}
	defer rows.Close()

	items := make([]*entities.EquipmentItem, 0)
	for rows.Next() {
		item, err := r.scanRow(rows)
		if err != nil {
			r.logger.Error("Ошибка сканирования equipment", zap.Error(err))
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации rows: %w", err)
	}

	return items, total, nil
}

// uniqueEquipmentError переводит нарушение уникальности serial_number/barcode в Conflict,
// а нарушение CHECK в Validation.
func uniqueEquipmentError(err error, item entities.EquipmentItem) error {
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		if pgConstraint(err) == "equipment_items_barcode_key" && item.Barcode != nil {
			return apperrors.NewConflictError("оборудование со штрихкодом %q уже существует", *item.Barcode)
		}
		if item.SerialNumber != nil {
			return apperrors.NewConflictError("оборудование с серийным номером %q уже существует", *item.SerialNumber)
		}
		return apperrors.NewConflictError("оборудование с такими уникальными параметрами уже существует")
	case pgForeignKeyViolation:
		return apperrors.NewValidationError("категория %d не существует", item.CategoryID)
	}
	return checkViolationError(err)
}

func (r *equipmentRepository) Create(ctx context.Context, tx pgx.Tx, item entities.EquipmentItem) (uint64, error) {
	query, args, err := psql.Insert(equipmentTable).
		Columns("name", "category_id", "serial_number", "barcode", "quantity", "current_status", "daily_rate", "notes", "created_at", "updated_at").
		Values(item.Name, item.CategoryID, item.SerialNumber, item.Barcode, item.Quantity, item.CurrentStatus, item.DailyRate, item.Notes, sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		if mapped := uniqueEquipmentError(err, item); mapped != nil {
			return 0, mapped
		}
		return 0, fmt.Errorf("ошибка создания equipment_items: %w", err)
	}
	return newID, nil
}

// Update пишет только описательные поля, current_status не трогает.
func (r *equipmentRepository) Update(ctx context.Context, tx pgx.Tx, item entities.EquipmentItem) error {
	query, args, err := psql.Update(equipmentTable).
		Set("name", item.Name).
		Set("category_id", item.CategoryID).
		Set("serial_number", item.SerialNumber).
		Set("barcode", item.Barcode).
		Set("quantity", item.Quantity).
		Set("daily_rate", item.DailyRate).
		Set("notes", item.Notes).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Update: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if mapped := uniqueEquipmentError(err, item); mapped != nil {
			return mapped
		}
		return fmt.Errorf("ошибка обновления equipment_items: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *equipmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uint64, status entities.EquipmentStatus) error {
	query, args, err := psql.Update(equipmentTable).
		Set("current_status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса UpdateStatus: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса оборудования: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *equipmentRepository) Delete(ctx context.Context, tx pgx.Tx, id uint64) error {
	query, args, err := psql.Delete(equipmentTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Delete: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return apperrors.NewValidationError("оборудование %d не может быть удалено, так как на него есть ссылки", id)
		}
		return fmt.Errorf("ошибка удаления equipment_items: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *equipmentRepository) CountByCategory(ctx context.Context, tx pgx.Tx, categoryID uint64) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From(equipmentTable).Where(sq.Eq{"category_id": categoryID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса CountByCategory: %w", err)
	}
	var count int64
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта оборудования категории: %w", err)
	}
	return count, nil
}

func (r *equipmentRepository) CountByStatus(ctx context.Context) ([]entities.StatusCount, error) {
	query, args, err := psql.Select("current_status", "COUNT(*)").
		From(equipmentTable).
		GroupBy("current_status").
		OrderBy("current_status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса CountByStatus: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения CountByStatus: %w", err)
	}
	defer rows.Close()

	counts := make([]entities.StatusCount, 0, len(entities.EquipmentStatuses))
	for rows.Next() {
		var c entities.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования CountByStatus: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows в CountByStatus: %w", err)
	}
	return counts, nil
}

package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rental-system/internal/entities"
)

// TransactionLogRepositoryInterface - журналы выдачи и возврата. Только вставка и чтение.
type TransactionLogRepositoryInterface interface {
	CreateCheckOut(ctx context.Context, tx pgx.Tx, t *entities.CheckOutTransaction) (uint64, error)
	CreateCheckIn(ctx context.Context, tx pgx.Tx, t *entities.CheckInTransaction) (uint64, error)
	// CheckedOutEquipmentIDs - оборудование, выданное хотя бы в одной выдаче мероприятия.
	CheckedOutEquipmentIDs(ctx context.Context, tx pgx.Tx, eventID uint64) (map[uint64]bool, error)
	GetCheckOutsByEvent(ctx context.Context, eventID uint64) ([]*entities.CheckOutTransaction, error)
	GetCheckInsByEvent(ctx context.Context, eventID uint64) ([]*entities.CheckInTransaction, error)
}

type transactionLogRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewTransactionLogRepository(storage *pgxpool.Pool, logger *zap.Logger) TransactionLogRepositoryInterface {
	return &transactionLogRepository{storage: storage, logger: logger}
}

func (r *transactionLogRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

// CreateCheckOut вставляет шапку и строки, проставляя ID в переданную структуру.
func (r *transactionLogRepository) CreateCheckOut(ctx context.Context, tx pgx.Tx, t *entities.CheckOutTransaction) (uint64, error) {
	query, args, err := psql.Insert("check_out_transactions").
		Columns("reference", "event_id", "actor_id", "notes", "created_at").
		Values(t.Reference, t.EventID, t.ActorID, t.Notes, sq.Expr("NOW()")).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса CreateCheckOut: %w", err)
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&t.ID, &t.CreatedAt); err != nil {
		return 0, fmt.Errorf("ошибка создания check_out_transactions: %w", err)
	}

	for i := range t.Items {
		item := &t.Items[i]
		item.TransactionID = t.ID
		query, args, err := psql.Insert("check_out_items").
			Columns("transaction_id", "equipment_id", "quantity", "condition", "notes").
			Values(item.TransactionID, item.EquipmentID, item.Quantity, item.Condition, item.Notes).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("ошибка сборки запроса check_out_items: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&item.ID); err != nil {
			return 0, fmt.Errorf("ошибка создания check_out_items: %w", err)
		}
	}
	return t.ID, nil
}

func (r *transactionLogRepository) CreateCheckIn(ctx context.Context, tx pgx.Tx, t *entities.CheckInTransaction) (uint64, error) {
	query, args, err := psql.Insert("check_in_transactions").
		Columns("reference", "event_id", "actor_id", "notes", "created_at").
		Values(t.Reference, t.EventID, t.ActorID, t.Notes, sq.Expr("NOW()")).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса CreateCheckIn: %w", err)
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&t.ID, &t.CreatedAt); err != nil {
		return 0, fmt.Errorf("ошибка создания check_in_transactions: %w", err)
	}

	for i := range t.Items {
		item := &t.Items[i]
		item.TransactionID = t.ID
		query, args, err := psql.Insert("check_in_items").
			Columns("transaction_id", "equipment_id", "quantity", "returned_quantity", "is_shortage", "condition", "damage_notes", "notes").
			Values(item.TransactionID, item.EquipmentID, item.Quantity, item.ReturnedQuantity, item.IsShortage, item.Condition, item.DamageNotes, item.Notes).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("ошибка сборки запроса check_in_items: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&item.ID); err != nil {
			return 0, fmt.Errorf("ошибка создания check_in_items: %w", err)
		}
	}
	return t.ID, nil
}

func (r *transactionLogRepository) CheckedOutEquipmentIDs(ctx context.Context, tx pgx.Tx, eventID uint64) (map[uint64]bool, error) {
	query, args, err := psql.Select("DISTINCT i.equipment_id").
		From("check_out_items AS i").
		Join("check_out_transactions AS t ON t.id = i.transaction_id").
		Where(sq.Eq{"t.event_id": eventID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL CheckedOutEquipmentIDs: %w", err)
	}

	rows, err := r.getQuerier(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения CheckedOutEquipmentIDs: %w", err)
	}
	defer rows.Close()

	ids := make(map[uint64]bool)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования equipment_id: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows в CheckedOutEquipmentIDs: %w", err)
	}
	return ids, nil
}

func (r *transactionLogRepository) GetCheckOutsByEvent(ctx context.Context, eventID uint64) ([]*entities.CheckOutTransaction, error) {
	query, args, err := psql.Select("id, reference, event_id, actor_id, notes, created_at").
		From("check_out_transactions").
		Where(sq.Eq{"event_id": eventID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL GetCheckOutsByEvent: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения GetCheckOutsByEvent: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.CheckOutTransaction, 0)
	byID := make(map[uint64]*entities.CheckOutTransaction)
	for rows.Next() {
		var t entities.CheckOutTransaction
		if err := rows.Scan(&t.ID, &t.Reference, &t.EventID, &t.ActorID, &t.Notes, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования check_out_transactions: %w", err)
		}
		t.Items = []entities.CheckOutItem{}
		result = append(result, &t)
		byID[t.ID] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows: %w", err)
	}
	if len(result) == 0 {
		return result, nil
	}

	itemsQuery, itemsArgs, err := psql.Select("i.id, i.transaction_id, i.equipment_id, i.quantity, i.condition, i.notes").
		From("check_out_items AS i").
		Join("check_out_transactions AS t ON t.id = i.transaction_id").
		Where(sq.Eq{"t.event_id": eventID}).
		OrderBy("i.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL check_out_items: %w", err)
	}

	itemRows, err := r.storage.Query(ctx, itemsQuery, itemsArgs...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения select check_out_items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it entities.CheckOutItem
		if err := itemRows.Scan(&it.ID, &it.TransactionID, &it.EquipmentID, &it.Quantity, &it.Condition, &it.Notes); err != nil {
			return nil, fmt.Errorf("ошибка сканирования check_out_items: %w", err)
		}
		if t, ok := byID[it.TransactionID]; ok {
			t.Items = append(t.Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows check_out_items: %w", err)
	}
	return result, nil
}

func (r *transactionLogRepository) GetCheckInsByEvent(ctx context.Context, eventID uint64) ([]*entities.CheckInTransaction, error) {
	query, args, err := psql.Select("id, reference, event_id, actor_id, notes, created_at").
		From("check_in_transactions").
		Where(sq.Eq{"event_id": eventID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL GetCheckInsByEvent: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения GetCheckInsByEvent: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.CheckInTransaction, 0)
	byID := make(map[uint64]*entities.CheckInTransaction)
	for rows.Next() {
		var t entities.CheckInTransaction
		if err := rows.Scan(&t.ID, &t.Reference, &t.EventID, &t.ActorID, &t.Notes, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования check_in_transactions: %w", err)
		}
		t.Items = []entities.CheckInItem{}
		result = append(result, &t)
		byID[t.ID] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows: %w", err)
	}
	if len(result) == 0 {
		return result, nil
	}

	itemsQuery, itemsArgs, err := psql.Select(`i.id, i.transaction_id, i.equipment_id, i.quantity, i.returned_quantity,
		i.is_shortage, i.condition, i.damage_notes, i.notes`).
		From("check_in_items AS i").
		Join("check_in_transactions AS t ON t.id = i.transaction_id").
		Where(sq.Eq{"t.event_id": eventID}).
		OrderBy("i.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL check_in_items: %w", err)
	}

	itemRows, err := r.storage.Query(ctx, itemsQuery, itemsArgs...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения select check_in_items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it entities.CheckInItem
		err := itemRows.Scan(&it.ID, &it.TransactionID, &it.EquipmentID, &it.Quantity, &it.ReturnedQuantity,
			&it.IsShortage, &it.Condition, &it.DamageNotes, &it.Notes)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования check_in_items: %w", err)
		}
		if t, ok := byID[it.TransactionID]; ok {
			t.Items = append(t.Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows check_in_items: %w", err)
	}
	return result, nil
}

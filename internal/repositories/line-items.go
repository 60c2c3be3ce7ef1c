package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"rental-system/internal/entities"
)

const lineItemFields = "id, equipment_id, description, quantity, unit_price, line_total, sort_order"

// replaceLineItems удаляет строки документа и вставляет новые. Используется и при создании.
func replaceLineItems(ctx context.Context, tx pgx.Tx, table, fkColumn string, docID uint64, items []entities.LineItem) error {
	delQuery, delArgs, err := psql.Delete(table).Where(sq.Eq{fkColumn: docID}).ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса удаления строк %s: %w", table, err)
	}
	if _, err := tx.Exec(ctx, delQuery, delArgs...); err != nil {
		return fmt.Errorf("ошибка удаления строк %s: %w", table, err)
	}

	if len(items) == 0 {
		return nil
	}

	builder := psql.Insert(table).
		Columns(fkColumn, "equipment_id", "description", "quantity", "unit_price", "line_total", "sort_order")
	for _, item := range items {
		builder = builder.Values(docID, item.EquipmentID, item.Description, item.Quantity, item.UnitPrice, item.LineTotal, item.SortOrder)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса вставки строк %s: %w", table, err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("строка ссылается на несуществующее оборудование: %w", err)
		}
		return fmt.Errorf("ошибка вставки строк %s: %w", table, err)
	}
	return nil
}

func loadLineItems(ctx context.Context, q Querier, table, fkColumn string, docID uint64) ([]entities.LineItem, error) {
	query, args, err := psql.Select(lineItemFields).
		From(table).
		Where(sq.Eq{fkColumn: docID}).
		OrderBy("sort_order", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса строк %s: %w", table, err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения строк %s: %w", table, err)
	}
	defer rows.Close()

	items := make([]entities.LineItem, 0)
	for rows.Next() {
		var it entities.LineItem
		if err := rows.Scan(&it.ID, &it.EquipmentID, &it.Description, &it.Quantity, &it.UnitPrice, &it.LineTotal, &it.SortOrder); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строк %s: %w", table, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации строк %s: %w", table, err)
	}
	return items, nil
}

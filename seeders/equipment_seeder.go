package seeders

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"rental-system/internal/entities"
)

const seedReason = "Начальное заполнение склада"

func seedEquipments(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - Наполнение таблицы 'equipment_items'...")

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	categoriesMap, err := mapAllIDsByName(ctx, tx, "equipment_categories")
	if err != nil {
		return fmt.Errorf("ошибка получения ID категорий: %w", err)
	}

	// повторный запуск не дублирует позиции: совпадение по имени и серийному номеру
	insertItem := `INSERT INTO equipment_items (name, category_id, serial_number, quantity, current_status, daily_rate)
				   SELECT $1, $2, NULLIF($3, ''), $4, $5, $6
				   WHERE NOT EXISTS (
				       SELECT 1 FROM equipment_items
				       WHERE name = $1 AND serial_number IS NOT DISTINCT FROM NULLIF($3, '')
				   )
				   RETURNING id`
	insertHistory := `INSERT INTO equipment_status_history (equipment_id, previous_status, new_status, reason)
					  VALUES ($1, $2, $3, $4)`

	for _, e := range equipmentData {
		categoryID, ok := categoriesMap[e.CategoryName]
		if !ok {
			log.Printf("ПРЕДУПРЕЖДЕНИЕ: Категория '%s' не найдена, пропускаем '%s'.", e.CategoryName, e.Name)
			continue
		}
		rate, err := decimal.NewFromString(e.DailyRate)
		if err != nil {
			return fmt.Errorf("неверная ставка для '%s': %w", e.Name, err)
		}

		var id uint64
		err = tx.QueryRow(ctx, insertItem, e.Name, categoryID, e.SerialNumber, e.Quantity, e.Status, rate).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("ошибка вставки оборудования '%s': %w", e.Name, err)
		}

		// история должна сходиться с текущим статусом
		if _, err := tx.Exec(ctx, insertHistory, id, nil, entities.EquipmentAvailable, seedReason); err != nil {
			return err
		}
		if e.Status != entities.EquipmentAvailable {
			if _, err := tx.Exec(ctx, insertHistory, id, entities.EquipmentAvailable, e.Status, seedReason); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func mapAllIDsByName(ctx context.Context, tx pgx.Tx, table string) (map[string]uint64, error) {
	query := fmt.Sprintf("SELECT id, name FROM %s", table)
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resultMap := make(map[string]uint64)
	for rows.Next() {
		var id uint64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		resultMap[name] = id
	}
	return resultMap, rows.Err()
}

package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedDirectories наполняет клиентов и сотрудников. Сервис их только читает.
func SeedDirectories(db *pgxpool.Pool) {
	ctx := context.Background()
	log.Println("▶️  Запуск наполнения справочников клиентов и сотрудников...")

	if err := seedClients(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения Клиентов (Clients): %v", err)
	}
	if err := seedUsers(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения Сотрудников (Users): %v", err)
	}
	log.Println("✅ Наполнение справочников завершено!")
}

// SeedEquipment ставит на учёт демонстрационное оборудование с начальной историей статусов.
func SeedEquipment(db *pgxpool.Pool) {
	ctx := context.Background()
	log.Println("▶️  Запуск наполнения склада оборудования...")

	if err := seedCategories(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения Категорий (Categories): %v", err)
	}
	if err := seedEquipments(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения Оборудования (Equipment): %v", err)
	}
	log.Println("✅ Наполнение склада завершено!")
}

func seedClients(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - Наполнение таблицы 'clients'...")
	query := `INSERT INTO clients (name, email, phone)
			  SELECT $1, NULLIF($2, ''), $3
			  WHERE NOT EXISTS (SELECT 1 FROM clients WHERE name = $1)`
	for _, c := range clientsData {
		if _, err := db.Exec(ctx, query, c.Name, c.Email, c.Phone); err != nil {
			return err
		}
	}
	return nil
}

func seedUsers(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - Наполнение таблицы 'users'...")
	query := `INSERT INTO users (fio, email) VALUES ($1, $2) ON CONFLICT (email) DO NOTHING`
	for _, u := range usersData {
		if _, err := db.Exec(ctx, query, u.Fio, u.Email); err != nil {
			return err
		}
	}
	return nil
}

func seedCategories(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - Наполнение таблицы 'equipment_categories'...")
	query := `INSERT INTO equipment_categories (name, description) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	for _, c := range categoriesData {
		if _, err := db.Exec(ctx, query, c.Name, c.Description); err != nil {
			return err
		}
	}
	return nil
}

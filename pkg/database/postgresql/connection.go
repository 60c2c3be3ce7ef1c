package postgresql

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rental-system/pkg/config"
)

// ConnectDB завершает процесс, если база недоступна: без неё сервису нечего делать.
func ConnectDB(cfg config.PostgresConfig) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		log.Fatalf("Некорректный DSN базы данных: %v", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatalf("Ошибка создания пула соединений к БД: %v", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		log.Fatalf("Не удалось пинговать БД: %v", err)
	}

	log.Printf("✅ Подключено к PostgreSQL (макс. соединений: %d)", poolCfg.MaxConns)
	return dbpool
}

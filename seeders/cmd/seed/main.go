package main

import (
	"flag"
	"log"

	"rental-system/pkg/config"
	"rental-system/pkg/database/postgresql"
	"rental-system/pkg/service"
	"rental-system/seeders"

	"go.uber.org/zap"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runDirectory := flag.Bool("directory", false, "Наполнить клиентов и сотрудников")
	runEquipment := flag.Bool("equipment", false, "Наполнить категории и демонстрационное оборудование")
	runAll := flag.Bool("all", false, "Запустить все сидеры (эквивалентно -directory -equipment)")
	tokenFor := flag.Uint64("token", 0, "Выпустить access-токен для сотрудника с указанным ID")

	flag.Parse()

	if !*runDirectory && !*runEquipment && !*runAll && *tokenFor == 0 {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed -all")
		log.Println("  go run ./seeders/cmd/seed -token 1")
		log.Println("======================================================")
		return
	}

	cfg := config.New()

	if *runAll || *runDirectory || *runEquipment {
		log.Println("📦 Подключение к базе данных")
		dbPool := postgresql.ConnectDB(cfg.Postgres)
		defer dbPool.Close()

		if err := postgresql.Migrate(dbPool); err != nil {
			log.Fatalf("❌ Ошибка применения миграций: %v", err)
		}
		log.Println("======================================================")

		if *runAll || *runDirectory {
			seeders.SeedDirectories(dbPool)
			log.Println("======================================================")
		}
		if *runAll || *runEquipment {
			// оборудование зависит от категорий, а история статусов от пользователей не зависит
			seeders.SeedEquipment(dbPool)
			log.Println("======================================================")
		}
	}

	if *tokenFor != 0 {
		jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, zap.NewNop())
		token, err := jwtSvc.GenerateToken(*tokenFor)
		if err != nil {
			log.Fatalf("❌ Не удалось выпустить токен: %v", err)
		}
		log.Printf("🔑 Токен для сотрудника %d (действует %s):\n%s", *tokenFor, cfg.JWT.AccessTokenTTL, token)
	}

	log.Println("✅ Все указанные операции успешно завершены.")
	log.Println("======================================================")
}

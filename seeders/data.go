package seeders

import "rental-system/internal/entities"

var clientsData = []struct {
	Name  string
	Email string
	Phone string
}{
	{Name: "ООО Праздник", Email: "order@prazdnik.example", Phone: "+992900000001"},
	{Name: "Event Group", Email: "info@eventgroup.example", Phone: "+992900000002"},
	{Name: "Частный клиент", Email: "", Phone: "+992900000003"},
}

var usersData = []struct {
	Fio   string
	Email string
}{
	{Fio: "Администратор склада", Email: "admin@rental.example"},
	{Fio: "Каримов Фарход", Email: "sound@rental.example"},
	{Fio: "Саидова Мадина", Email: "light@rental.example"},
}

var categoriesData = []struct {
	Name        string
	Description string
}{
	{Name: "Звук", Description: "Акустика, микшеры, микрофоны"},
	{Name: "Свет", Description: "Прожекторы, пульты, фермы"},
	{Name: "Видео", Description: "Экраны, проекторы, камеры"},
	{Name: "Сцена", Description: "Подиумы, стойки, коммутация"},
}

var equipmentData = []struct {
	Name         string
	CategoryName string
	SerialNumber string
	Quantity     int
	DailyRate    string
	Status       entities.EquipmentStatus
}{
	{Name: "Колонка JBL PRX815", CategoryName: "Звук", SerialNumber: "JBL-815-001", Quantity: 1, DailyRate: "1500", Status: entities.EquipmentAvailable},
	{Name: "Колонка JBL PRX815", CategoryName: "Звук", SerialNumber: "JBL-815-002", Quantity: 1, DailyRate: "1500", Status: entities.EquipmentAvailable},
	{Name: "Микшер Yamaha MG16", CategoryName: "Звук", SerialNumber: "YMG16-001", Quantity: 1, DailyRate: "2000", Status: entities.EquipmentAvailable},
	{Name: "Радиомикрофон Shure", CategoryName: "Звук", SerialNumber: "", Quantity: 8, DailyRate: "300", Status: entities.EquipmentAvailable},
	{Name: "Прожектор LED PAR", CategoryName: "Свет", SerialNumber: "", Quantity: 12, DailyRate: "250", Status: entities.EquipmentAvailable},
	{Name: "Голова Beam 230", CategoryName: "Свет", SerialNumber: "BEAM-230-01", Quantity: 1, DailyRate: "1200", Status: entities.EquipmentUnderRepair},
	{Name: "Проектор Epson 5000 лм", CategoryName: "Видео", SerialNumber: "EPS-5000-01", Quantity: 1, DailyRate: "3500", Status: entities.EquipmentAvailable},
	{Name: "Подиум 2x1 м", CategoryName: "Сцена", SerialNumber: "", Quantity: 10, DailyRate: "400", Status: entities.EquipmentAvailable},
}

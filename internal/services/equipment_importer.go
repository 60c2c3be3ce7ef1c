package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	"rental-system/internal/repositories"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
	"rental-system/pkg/utils"
)

const exportSheet = "Оборудование"

var exportHeaders = []interface{}{
	"ID", "Наименование", "Категория", "Серийный номер", "Штрихкод", "Количество", "Статус", "Ставка в день", "Примечание",
}

type EquipmentImportServiceInterface interface {
	// ImportEquipment загружает оборудование из .xlsx. Строки с известным серийным номером обновляются,
	// остальные ставятся на учёт. Каждая строка пишется своей транзакцией.
	ImportEquipment(ctx context.Context, r io.Reader) (*dto.EquipmentImportResultDTO, error)
	ExportEquipment(ctx context.Context, filter types.Filter) (*bytes.Buffer, error)
}

type EquipmentImportService struct {
	equipmentRepo repositories.EquipmentRepositoryInterface
	categoryRepo  repositories.CategoryRepositoryInterface
	txManager     repositories.TxManagerInterface
	publisher     PublisherInterface
	status        equipmentStatusRecorder
	logger        *zap.Logger
}

func NewEquipmentImportService(
	equipmentRepo repositories.EquipmentRepositoryInterface,
	categoryRepo repositories.CategoryRepositoryInterface,
	historyRepo repositories.StatusHistoryRepositoryInterface,
	txManager repositories.TxManagerInterface,
	publisher PublisherInterface,
	logger *zap.Logger,
) EquipmentImportServiceInterface {
	return &EquipmentImportService{
		equipmentRepo: equipmentRepo,
		categoryRepo:  categoryRepo,
		txManager:     txManager,
		publisher:     publisher,
		status:        equipmentStatusRecorder{equipmentRepo: equipmentRepo, historyRepo: historyRepo},
		logger:        logger,
	}
}

// importColumns - номера колонок, найденные по шапке. -1 - колонки нет.
type importColumns struct {
	name, category, serial, barcode, quantity, rate, notes int
}

func detectColumns(row []string) (importColumns, bool) {
	cols := importColumns{-1, -1, -1, -1, -1, -1, -1}
	for i, raw := range row {
		c := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case strings.Contains(c, "наименование") || c == "name":
			cols.name = i
		case strings.Contains(c, "категор") || c == "category":
			cols.category = i
		case strings.Contains(c, "серийн") || strings.Contains(c, "serial"):
			cols.serial = i
		case strings.Contains(c, "штрих") || strings.Contains(c, "barcode"):
			cols.barcode = i
		case strings.Contains(c, "кол") || strings.Contains(c, "quantity"):
			cols.quantity = i
		case strings.Contains(c, "ставка") || strings.Contains(c, "цена") || strings.Contains(c, "rate"):
			cols.rate = i
		case strings.Contains(c, "примеч") || c == "notes":
			cols.notes = i
		}
	}
	return cols, cols.name != -1 && cols.category != -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func optionalCell(row []string, idx int) *string {
	v := cell(row, idx)
	return utils.TrimmedOrNil(&v)
}

// isSummaryRow - строки итогов в конце таблицы.
func isSummaryRow(name string) bool {
	v := strings.ToLower(name)
	return strings.Contains(v, "итого") || strings.Contains(v, "всего")
}

type importRow struct {
	item     entities.EquipmentItem
	category string
}

func parseImportRow(row []string, cols importColumns) (importRow, error) {
	parsed := importRow{
		item: entities.EquipmentItem{
			Name:          cell(row, cols.name),
			SerialNumber:  optionalCell(row, cols.serial),
			Barcode:       optionalCell(row, cols.barcode),
			Quantity:      1,
			CurrentStatus: entities.EquipmentAvailable,
			DailyRate:     decimal.Zero,
			Notes:         optionalCell(row, cols.notes),
		},
		category: cell(row, cols.category),
	}
	if parsed.category == "" {
		return parsed, fmt.Errorf("не указана категория для «%s»", parsed.item.Name)
	}
	if raw := cell(row, cols.quantity); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty < 1 {
			return parsed, fmt.Errorf("некорректное количество %q", raw)
		}
		parsed.item.Quantity = qty
	}
	if raw := strings.ReplaceAll(cell(row, cols.rate), ",", "."); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil || rate.IsNegative() {
			return parsed, fmt.Errorf("некорректная ставка %q", raw)
		}
		parsed.item.DailyRate = rate
	}
	return parsed, nil
}

func (s *EquipmentImportService) ImportEquipment(ctx context.Context, r io.Reader) (*dto.EquipmentImportResultDTO, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewValidationError("не удалось прочитать файл: %s", err.Error())
	}
	defer f.Close()

	var (
		rows      [][]string
		cols      importColumns
		headerRow = -1
	)
	for _, sheet := range f.GetSheetList() {
		sheetRows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения листа %s: %w", sheet, err)
		}
		for i, row := range sheetRows {
			if detected, ok := detectColumns(row); ok {
				rows, cols, headerRow = sheetRows, detected, i
				break
			}
		}
		if headerRow != -1 {
			break
		}
	}
	if headerRow == -1 {
		return nil, apperrors.NewValidationError("в файле не найдена шапка таблицы: нужны колонки «Наименование» и «Категория»")
	}

	result := &dto.EquipmentImportResultDTO{Errors: make([]dto.ImportRowErrorDTO, 0)}
	touched := make([]uint64, 0)
	categories := make(map[string]uint64)

	for i := headerRow + 1; i < len(rows); i++ {
		lineNum := i + 1
		name := cell(rows[i], cols.name)
		if name == "" || isSummaryRow(name) {
			result.Skipped++
			continue
		}

		parsed, err := parseImportRow(rows[i], cols)
		if err != nil {
			result.Errors = append(result.Errors, dto.ImportRowErrorDTO{Row: lineNum, Error: err.Error()})
			continue
		}

		var (
			id      uint64
			created bool
		)
		err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
			categoryID, err := s.resolveCategory(ctx, tx, categories, parsed.category)
			if err != nil {
				return err
			}
			parsed.item.CategoryID = categoryID
			id, created, err = s.upsert(ctx, tx, parsed.item)
			return err
		})
		if err != nil {
			// кэш категорий мог получить id из откаченной транзакции
			delete(categories, strings.ToLower(parsed.category))
			s.logger.Warn("Строка импорта пропущена", zap.Int("row", lineNum), zap.String("name", name), zap.Error(err))
			result.Errors = append(result.Errors, dto.ImportRowErrorDTO{Row: lineNum, Error: err.Error()})
			continue
		}

		touched = append(touched, id)
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.logger.Info("Импорт оборудования завершён",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	if len(touched) > 0 {
		s.publisher.ActionLogged(ctx, actionImported, entityEquipment, 0, map[string]interface{}{
			"created": result.Created,
			"updated": result.Updated,
			"errors":  len(result.Errors),
		})
		s.publisher.EquipmentStatusChanged(ctx, touched...)
	}
	return result, nil
}

func (s *EquipmentImportService) resolveCategory(ctx context.Context, tx pgx.Tx, cache map[string]uint64, name string) (uint64, error) {
	key := strings.ToLower(name)
	if id, ok := cache[key]; ok {
		return id, nil
	}
	category, err := s.categoryRepo.FindByName(ctx, tx, name)
	switch {
	case err == nil:
		cache[key] = category.ID
		return category.ID, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return 0, err
	}
	id, err := s.categoryRepo.Create(ctx, tx, entities.EquipmentCategory{Name: name})
	if err != nil {
		return 0, err
	}
	cache[key] = id
	return id, nil
}

// upsert обновляет карточку по серийному номеру или ставит новую единицу на учёт.
// Статус существующей единицы импорт не трогает.
func (s *EquipmentImportService) upsert(ctx context.Context, tx pgx.Tx, item entities.EquipmentItem) (uint64, bool, error) {
	if item.SerialNumber != nil {
		existing, err := s.equipmentRepo.FindBySerialNumber(ctx, tx, *item.SerialNumber)
		switch {
		case err == nil:
			existing.Name = item.Name
			existing.CategoryID = item.CategoryID
			existing.Quantity = item.Quantity
			existing.DailyRate = item.DailyRate
			if item.Barcode != nil {
				existing.Barcode = item.Barcode
			}
			if item.Notes != nil {
				existing.Notes = item.Notes
			}
			return existing.ID, false, s.equipmentRepo.Update(ctx, tx, *existing)
		case !errors.Is(err, apperrors.ErrNotFound):
			return 0, false, err
		}
	}

	id, err := s.equipmentRepo.Create(ctx, tx, item)
	if err != nil {
		return 0, false, err
	}
	item.ID = id
	if err := s.status.recordIntake(ctx, tx, &item, "Поступление на склад (импорт)"); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *EquipmentImportService) ExportEquipment(ctx context.Context, filter types.Filter) (*bytes.Buffer, error) {
	filter.WithPagination = false
	items, _, err := s.equipmentRepo.GetAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("ошибка подготовки листа: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return nil, fmt.Errorf("ошибка записи шапки: %w", err)
	}
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(exportSheet, "A1", "I1", style)

	for i, item := range items {
		row := []interface{}{
			item.ID, item.Name, item.CategoryName, utils.SafeDeref(item.SerialNumber), utils.SafeDeref(item.Barcode),
			item.Quantity, string(item.CurrentStatus), item.DailyRate.StringFixed(2), utils.SafeDeref(item.Notes),
		}
		cellName, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cellName, &row); err != nil {
			return nil, fmt.Errorf("ошибка записи строки %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(exportSheet, "B", "C", 30)
	_ = f.SetColWidth(exportSheet, "D", "E", 20)
	_ = f.SetColWidth(exportSheet, "I", "I", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ошибка формирования xlsx: %w", err)
	}
	return buf, nil
}

package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportEquipment(t *testing.T) {
	env := newTestEnv(t)
	sound := env.createCategory(t, "Звук")

	existing := "SN-100"
	item, err := env.equipment.CreateEquipment(env.ctx, dto.CreateEquipmentDTO{
		Name:         "Старое имя",
		CategoryID:   sound.ID,
		SerialNumber: &existing,
	})
	require.NoError(t, err)

	buf := buildWorkbook(t, [][]interface{}{
		{"Склад оборудования"},
		{"Наименование", "Категория", "Серийный номер", "Количество", "Ставка в день"},
		{"Колонка JBL", "Звук", existing, 2, "1500,50"},
		{"Прожектор LED", "Свет", "SN-200", 4, 800},
		{"Кабель", "", "", 10, 50},
		{"Микшер", "Звук", "", "много", 0},
		{"Итого", "", "", 16, ""},
	})

	res, err := env.importer.ImportEquipment(env.ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 5, res.Errors[0].Row)
	assert.Equal(t, 6, res.Errors[1].Row)

	updated, err := env.equipment.FindEquipment(env.ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Колонка JBL", updated.Name)
	assert.Equal(t, 2, updated.Quantity)
	assert.Equal(t, "1500.5", updated.DailyRate.String())
	assert.Equal(t, entities.EquipmentAvailable, updated.CurrentStatus)

	categories, err := env.categories.GetCategories(env.ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"Звук", "Свет"}, names)

	var created *entities.EquipmentItem
	for _, it := range env.store.data.equipment {
		if it.Name == "Прожектор LED" {
			created = it
		}
	}
	require.NotNil(t, created)
	env.assertHistoryMatchesStatus(t, created.ID)
	assert.Equal(t, 1, env.pub.count("equipment.imported"))
}

func TestImportEquipment_NoHeader(t *testing.T) {
	env := newTestEnv(t)
	buf := buildWorkbook(t, [][]interface{}{{"Просто", "таблица"}, {"1", "2"}})

	_, err := env.importer.ImportEquipment(env.ctx, buf)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = env.importer.ImportEquipment(env.ctx, strings.NewReader("не xlsx"))
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestExportEquipment_RoundTripsThroughImport(t *testing.T) {
	env := newTestEnv(t)
	fx := env.newRentalFixture(t)
	env.createEquipment(t, fx.category.ID, "Микшер", 3)

	buf, err := env.importer.ExportEquipment(env.ctx, types.Filter{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Наименование", rows[0][1])
	assert.Equal(t, "Звук", rows[1][2])
	assert.Equal(t, string(entities.EquipmentAvailable), rows[1][6])

	// без серийных номеров повторный импорт ставит на учёт новые единицы
	res, err := env.importer.ImportEquipment(env.ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Empty(t, res.Errors)
}

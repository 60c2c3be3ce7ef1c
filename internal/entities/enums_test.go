package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEquipmentStatus_UnmarshalRejectsUnknown(t *testing.T) {
	var payload struct {
		Status EquipmentStatus `json:"status"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"status":"under_repair"}`), &payload))
	assert.Equal(t, EquipmentUnderRepair, payload.Status)

	err := json.Unmarshal([]byte(`{"status":"BROKEN"}`), &payload)
	assert.Error(t, err)
}

func TestEquipmentStatus_Bookable(t *testing.T) {
	bookable := map[EquipmentStatus]bool{
		EquipmentAvailable:   true,
		EquipmentReserved:    true,
		EquipmentInUse:       true,
		EquipmentDamaged:     false,
		EquipmentUnderRepair: false,
		EquipmentLost:        false,
		EquipmentRetired:     false,
	}
	for status, expected := range bookable {
		assert.Equal(t, expected, status.IsBookable(), "статус %s", status)
	}
	assert.False(t, EquipmentStatus("").IsBookable())
}

func TestEnumScan(t *testing.T) {
	var s BookingStatus
	require.NoError(t, s.Scan([]byte("CHECKED_OUT")))
	assert.Equal(t, BookingCheckedOut, s)

	assert.Error(t, s.Scan("ON_HOLD"))
	assert.Error(t, s.Scan(42))
}

func TestItemCondition_ReturnStatus(t *testing.T) {
	assert.Equal(t, EquipmentDamaged, ConditionDamaged.ReturnStatus())
	assert.Equal(t, EquipmentLost, ConditionLost.ReturnStatus())
	assert.Equal(t, EquipmentAvailable, ConditionGood.ReturnStatus())
	assert.Equal(t, EquipmentAvailable, ConditionFair.ReturnStatus())
	assert.Equal(t, EquipmentAvailable, ConditionExcellent.ReturnStatus())
}

func TestParsers(t *testing.T) {
	status, err := ParseEventStatus(" in_progress ")
	require.NoError(t, err)
	assert.Equal(t, EventInProgress, status)

	_, err = ParseItemCondition("broken")
	assert.Error(t, err)

	_, err = ParseTicketStatus("DONE")
	assert.Error(t, err)
}

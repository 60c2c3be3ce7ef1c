package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

func TestOverlaps_InclusiveBounds(t *testing.T) {
	assert.True(t, Overlaps(day(1), day(2), day(2), day(3)), "касание границ считается пересечением")
	assert.True(t, Overlaps(day(1), day(5), day(2), day(3)))
	assert.True(t, Overlaps(day(2), day(3), day(1), day(5)))
	assert.False(t, Overlaps(day(1), day(2), day(3), day(4)))
	assert.False(t, Overlaps(day(3), day(4), day(1), day(2)))
}

func TestValidateDateRange(t *testing.T) {
	assert.NoError(t, ValidateDateRange(day(1), day(2)))
	assert.Error(t, ValidateDateRange(day(2), day(2)))
	assert.Error(t, ValidateDateRange(day(3), day(2)))
}

func TestEventLabel(t *testing.T) {
	e := Event{Name: "Фестиваль", StartDate: day(1), EndDate: day(2)}
	assert.Equal(t, "«Фестиваль» (с 2024-06-01 по 2024-06-02)", e.Label())
}

func TestNewCheckInItem_Shortage(t *testing.T) {
	item := NewCheckInItem(1, 4, 3, ConditionGood, nil, nil)
	assert.True(t, item.IsShortage)

	item = NewCheckInItem(1, 4, 4, ConditionGood, nil, nil)
	assert.False(t, item.IsShortage)
}

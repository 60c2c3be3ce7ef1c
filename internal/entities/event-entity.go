package entities

import (
	"fmt"
	"time"

	"rental-system/pkg/types"
)

const DateLayout = "2006-01-02"

type Event struct {
	ID        uint64      `json:"id" db:"id"`
	ClientID  uint64      `json:"client_id" db:"client_id"`
	Name      string      `json:"name" db:"name"`
	Venue     *string     `json:"venue" db:"venue"`
	StartDate time.Time   `json:"start_date" db:"start_date"`
	EndDate   time.Time   `json:"end_date" db:"end_date"`
	Status    EventStatus `json:"status" db:"status"`
	Notes     *string     `json:"notes" db:"notes"`
	CreatedBy *uint64     `json:"created_by" db:"created_by"`

	types.BaseEntity
}

// Overlaps - пересечение диапазонов дат с включёнными границами:
// other.start <= this.end AND other.end >= this.start.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !bStart.After(aEnd) && !bEnd.Before(aStart)
}

func (e *Event) Overlaps(other *Event) bool {
	return Overlaps(e.StartDate, e.EndDate, other.StartDate, other.EndDate)
}

// ValidateDateRange - дата начала строго раньше даты окончания.
func ValidateDateRange(start, end time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("дата начала (%s) должна быть раньше даты окончания (%s)",
			start.Format(DateLayout), end.Format(DateLayout))
	}
	return nil
}

// Label - имя мероприятия с датами для сообщений об ошибках.
func (e *Event) Label() string {
	return fmt.Sprintf("«%s» (с %s по %s)", e.Name, e.StartDate.Format(DateLayout), e.EndDate.Format(DateLayout))
}

type StaffAssignment struct {
	ID        uint64    `json:"id" db:"id"`
	EventID   uint64    `json:"event_id" db:"event_id"`
	UserID    uint64    `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	Notes     *string   `json:"notes" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	UserFio string `json:"user_fio,omitempty" db:"-"`
}

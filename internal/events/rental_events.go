package events

const (
	ActionLoggedEventName           = "action.logged"
	EquipmentStatusChangedEventName = "equipment.status.changed"
)

// ActionLoggedEvent - запись для журнала действий. Публикуется после коммита операции.
type ActionLoggedEvent struct {
	ActorID    *uint64
	Action     string
	EntityType string
	EntityID   *uint64
	Details    map[string]interface{}
	IPAddress  *string
}

func (e ActionLoggedEvent) Name() string {
	return ActionLoggedEventName
}

// EquipmentStatusChangedEvent - статусы оборудования изменились, сводку по статусам надо сбросить.
type EquipmentStatusChangedEvent struct {
	EquipmentIDs []uint64
}

func (e EquipmentStatusChangedEvent) Name() string {
	return EquipmentStatusChangedEventName
}

package entities

type transitionTable[T comparable] map[T][]T

func (t transitionTable[T]) allows(from, to T) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

var bookingTransitions = transitionTable[BookingStatus]{
	BookingPending:    {BookingConfirmed, BookingCancelled},
	BookingConfirmed:  {BookingCheckedOut, BookingCancelled},
	BookingCheckedOut: {BookingReturned},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return bookingTransitions.allows(s, next)
}

var eventTransitions = transitionTable[EventStatus]{
	EventDraft:      {EventQuoted, EventConfirmed, EventCancelled},
	EventQuoted:     {EventConfirmed, EventCancelled},
	EventConfirmed:  {EventInProgress, EventCancelled},
	EventInProgress: {EventCompleted, EventCancelled},
}

func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	return eventTransitions.allows(s, next)
}

var ticketTransitions = transitionTable[TicketStatus]{
	TicketOpen:       {TicketInProgress, TicketCancelled},
	TicketInProgress: {TicketCompleted, TicketCancelled},
}

func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	return ticketTransitions.allows(s, next)
}

var quoteTransitions = transitionTable[QuoteStatus]{
	QuoteDraft: {QuoteSent},
	QuoteSent:  {QuoteAccepted, QuoteRejected, QuoteExpired},
}

func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	return quoteTransitions.allows(s, next)
}

// CanSetManually - ручная смена статуса оборудования. IN_USE выставляет и снимает
// только выдача/возврат, иначе журнал выдачи разойдётся со статусом.
func (s EquipmentStatus) CanSetManually(next EquipmentStatus) bool {
	if !next.Valid() || s == next {
		return false
	}
	return s != EquipmentInUse && next != EquipmentInUse
}

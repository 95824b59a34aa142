package types

// TriggerType distinguishes the two kinds of proactive signals the trigger
// engine can emit.
type TriggerType string

const (
	// TriggerUpcomingEvent fires when a recurring date (birthday,
	// anniversary, ...) falls within the scan window.
	TriggerUpcomingEvent TriggerType = "upcoming_event"

	// TriggerReconnection fires when a contact is overdue given their
	// priority and the time since the last interaction.
	TriggerReconnection TriggerType = "reconnection"
)

// ProactiveTrigger is a derived signal about one contact. Triggers are
// recomputed on every scan and never persisted.
type ProactiveTrigger struct {
	Type        TriggerType `json:"type"`
	ContactName string      `json:"contact_name"`

	// Upcoming-event fields. DaysUntil keeps its zero value on the wire:
	// an event happening today is the most urgent signal, not an absent one.
	DateType  string `json:"date_type,omitempty"`
	Date      string `json:"date,omitempty"`
	DaysUntil int    `json:"days_until"`

	// Reconnection fields.
	DaysSince int      `json:"days_since"`
	Priority  Priority `json:"priority,omitempty"`
}

package types

// Intent is the parsed interpretation of a natural-language command,
// produced by the external intent-parsing collaborator.
type Intent struct {
	// Action is the tool tag the workflow engine dispatches on
	// (e.g. "add_contact", "show_upcoming_dates").
	Action string `json:"action"`

	// Confidence is the parser's self-reported certainty in [0,1].
	// The workflow engine rejects intents below its threshold.
	Confidence float64 `json:"confidence"`

	// Payload carries action-specific parameters; its shape mirrors the
	// tool-node inputs (a "contacts" list for add_contact, contact_name /
	// title / date / priority for add_reminder, and so on).
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Command result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// CommandResult is the uniform response shape for one workflow traversal.
// Every invocation produces a well-formed result, including error paths.
type CommandResult struct {
	Status      string                   `json:"status"`
	Message     string                   `json:"message"`
	Data        []map[string]interface{} `json:"data,omitempty"`
	ActionTaken string                   `json:"action_taken,omitempty"`
}

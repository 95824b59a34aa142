// Package workflow implements the per-command state machine that composes
// the vault manager, the trigger engine, and the external language-model
// collaborators into a single response. One invocation is one traversal of
// a fixed node graph; all durable state lives in the record store, so
// traversals for different users run independently.
package workflow

import "github.com/kinvault/kinvault/pkg/types"

// Graph node names. Tool nodes are named by the intent action they serve.
const (
	NodeCheckProactiveTriggers = "check_proactive_triggers"
	NodeProactiveResponse      = "proactive_response"
	NodeParseIntent            = "parse_intent"
	NodeHandleError            = "handle_error"
	NodeGenerateResponse       = "generate_response"
)

// Intent action tags the engine dispatches on. Anything else routes to the
// error node.
const (
	ActionAddContact        = "add_contact"
	ActionAddMemory         = "add_memory"
	ActionAddReminder       = "add_reminder"
	ActionShowContacts      = "show_contacts"
	ActionShowMemories      = "show_memories"
	ActionShowReminders     = "show_reminders"
	ActionSearchContacts    = "search_contacts"
	ActionGetContactDetails = "get_contact_details"
	ActionAddDate           = "add_date"
	ActionShowUpcomingDates = "show_upcoming_dates"
	ActionGetAdvice         = "get_advice"
)

// Batch add outcomes.
const (
	BatchAddSuccess    = "batch_add_success"
	BatchAddPartial    = "batch_add_partial"
	BatchUpdateSuccess = "batch_update_success"
	BatchAddMixed      = "batch_add_mixed"
)

// State is the mutable record one graph traversal carries between nodes.
// It exists only for the duration of a RunCommand call.
type State struct {
	// Inputs, fixed at entry.
	Input     string
	UserID    string
	IsStartup bool

	// Filled by check_proactive_triggers.
	Triggers []types.ProactiveTrigger

	// Filled by parse_intent.
	Intent *types.Intent

	// Accumulated by the tool nodes.
	Data        []map[string]interface{}
	Message     string
	ActionTaken string

	// Err routes the traversal into handle_error.
	Err error
}

func (s *State) result() *types.CommandResult {
	status := types.StatusSuccess
	if s.Err != nil {
		status = types.StatusError
	}
	return &types.CommandResult{
		Status:      status,
		Message:     s.Message,
		Data:        s.Data,
		ActionTaken: s.ActionTaken,
	}
}

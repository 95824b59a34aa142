package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kinvault/kinvault/internal/llm"
	"github.com/kinvault/kinvault/internal/storage"
	"github.com/kinvault/kinvault/internal/triggers"
	"github.com/kinvault/kinvault/internal/vault"
	"github.com/kinvault/kinvault/pkg/types"
)

// ConfidenceThreshold is the minimum parser confidence for an intent to be
// dispatched. Anything below routes to the error node.
const ConfidenceThreshold = 0.30

// Config tunes the engine's trigger windows.
type Config struct {
	// StartupWindowDays bounds the upcoming-event lookahead for the
	// proactive check at the start of every traversal.
	StartupWindowDays int

	// ListingWindowDays bounds the lookahead for the explicit
	// show_upcoming_dates listing.
	ListingWindowDays int
}

// Engine runs the command workflow. It is stateless between invocations:
// every RunCommand builds a fresh vault manager for the (userID, vaultKey)
// pair and a fresh State, so one Engine serves all users concurrently.
type Engine struct {
	store   storage.RecordStore
	parser  llm.IntentParser
	advisor llm.AdviceGenerator

	startupWindow int
	listingWindow int

	// now is stubbed in tests.
	now func() time.Time
}

// NewEngine creates an engine with the default windows (30-day startup
// scan, 60-day upcoming-dates listing).
func NewEngine(store storage.RecordStore, parser llm.IntentParser, advisor llm.AdviceGenerator) *Engine {
	return NewEngineWithConfig(store, parser, advisor, Config{
		StartupWindowDays: triggers.StartupWindow,
		ListingWindowDays: triggers.ListingWindow,
	})
}

// NewEngineWithConfig creates an engine with custom trigger windows.
// Non-positive windows fall back to the defaults.
func NewEngineWithConfig(store storage.RecordStore, parser llm.IntentParser, advisor llm.AdviceGenerator, cfg Config) *Engine {
	if cfg.StartupWindowDays <= 0 {
		cfg.StartupWindowDays = triggers.StartupWindow
	}
	if cfg.ListingWindowDays <= 0 {
		cfg.ListingWindowDays = triggers.ListingWindow
	}
	return &Engine{
		store:         store,
		parser:        parser,
		advisor:       advisor,
		startupWindow: cfg.StartupWindowDays,
		listingWindow: cfg.ListingWindowDays,
		now:           time.Now,
	}
}

// RunCommand executes one workflow traversal for a natural-language
// command. The result is always well-formed: tool-node panics and
// collaborator failures degrade to an error-node response, never to a
// propagated panic or a nil result.
func (e *Engine) RunCommand(ctx context.Context, userID string, vaultKey []byte, text string, isStartup bool) *types.CommandResult {
	state := &State{
		Input:     strings.TrimSpace(text),
		UserID:    userID,
		IsStartup: isStartup,
	}
	manager := vault.NewManagerWithClock(e.store, userID, vaultKey, e.now)

	e.traverse(ctx, manager, state)
	return state.result()
}

// RunProactiveCheck is RunCommand with empty input and the startup flag
// set: it reports due triggers and otherwise asks for a command.
func (e *Engine) RunProactiveCheck(ctx context.Context, userID string, vaultKey []byte) *types.CommandResult {
	return e.RunCommand(ctx, userID, vaultKey, "", true)
}

// traverse walks the node graph: check_proactive_triggers, then either
// proactive_response or parse_intent plus one tool node, then
// generate_response. Any error lands in handle_error first.
func (e *Engine) traverse(ctx context.Context, manager *vault.Manager, state *State) {
	e.checkProactiveTriggers(ctx, manager, state)

	switch {
	case state.Err != nil:
		// fall through to handle_error
	case state.IsStartup && len(state.Triggers) > 0:
		e.proactiveResponse(ctx, state)
	default:
		e.parseIntent(ctx, state)
		if state.Err == nil {
			e.runToolNode(ctx, manager, state)
		}
	}

	if state.Err != nil {
		e.handleError(state)
	}
	e.generateResponse(state)
}

// checkProactiveTriggers scans every contact for imminent recurring dates
// and overdue reconnections. Runs on every traversal.
func (e *Engine) checkProactiveTriggers(ctx context.Context, manager *vault.Manager, state *State) {
	contacts, err := manager.GetAllContacts(ctx)
	if err != nil {
		state.Err = err
		return
	}
	state.Triggers = triggers.ScanTriggers(contacts, e.now(), e.startupWindow)
}

// proactiveResponse turns the pending triggers into a startup greeting.
// Wording is delegated to the advice generator; when that collaborator
// fails, a deterministic count summary takes its place.
func (e *Engine) proactiveResponse(ctx context.Context, state *State) {
	events, reconnections := 0, 0
	for _, trigger := range state.Triggers {
		state.Data = append(state.Data, triggerToMap(trigger))
		switch trigger.Type {
		case types.TriggerUpcomingEvent:
			events++
		case types.TriggerReconnection:
			reconnections++
		}
	}

	message, err := e.advisor.Generate(ctx, proactivePromptContext(state.Triggers))
	if err != nil || strings.TrimSpace(message) == "" {
		if err != nil {
			log.Printf("workflow: advice generator failed for proactive summary: %v", err)
		}
		message = fmt.Sprintf("You have %d upcoming events and %d reconnection suggestions.", events, reconnections)
	}

	state.Message = message
	state.ActionTaken = NodeProactiveResponse
}

// parseIntent asks the NLU collaborator for a structured intent and
// rejects low-confidence parses.
func (e *Engine) parseIntent(ctx context.Context, state *State) {
	if state.Input == "" {
		state.Err = fmt.Errorf("%w: a command is required", vault.ErrValidation)
		return
	}

	intent, err := e.parser.Parse(ctx, state.Input)
	if err != nil {
		state.Err = err
		return
	}
	if intent.Confidence < ConfidenceThreshold {
		state.Err = fmt.Errorf("%w: could not understand the command (confidence %.2f)", vault.ErrValidation, intent.Confidence)
		return
	}

	state.Intent = intent
}

// runToolNode dispatches on the intent action. A panic inside a node is
// downgraded to an error-node traversal so the outward contract holds.
func (e *Engine) runToolNode(ctx context.Context, manager *vault.Manager, state *State) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("workflow: tool node %q panicked: %v", state.Intent.Action, r)
			state.ActionTaken = ""
			state.Err = fmt.Errorf("internal error while handling %q", state.Intent.Action)
		}
	}()

	action := state.Intent.Action
	state.ActionTaken = action

	var err error
	switch action {
	case ActionAddContact:
		err = e.addContacts(ctx, manager, state)
	case ActionAddMemory:
		err = e.addMemory(ctx, manager, state)
	case ActionAddReminder:
		err = e.addReminder(ctx, manager, state)
	case ActionShowContacts:
		err = e.showContacts(ctx, manager, state)
	case ActionShowMemories:
		err = e.showMemories(ctx, manager, state)
	case ActionShowReminders:
		err = e.showReminders(ctx, manager, state)
	case ActionSearchContacts:
		err = e.searchContacts(ctx, manager, state)
	case ActionGetContactDetails:
		err = e.getContactDetails(ctx, manager, state)
	case ActionAddDate:
		err = e.addDate(ctx, manager, state)
	case ActionShowUpcomingDates:
		err = e.showUpcomingDates(ctx, manager, state)
	case ActionGetAdvice:
		err = e.getAdvice(ctx, manager, state)
	default:
		err = fmt.Errorf("unrecognized command %q", action)
	}

	if err != nil {
		state.ActionTaken = ""
		state.Err = err
	}
}

// exampleCommands is the hint list for the generic error branch.
var exampleCommands = []string{
	`add contact Ada Lovelace, email ada@example.com`,
	`remember that I met Grace at the conference`,
	`remind me to call Ada next week`,
	`show my contacts`,
	`when is Ada's birthday?`,
}

// handleError maps the pending error onto a user-facing message. A storage
// outage is fatal for the command and reported verbatim; other known
// substrings get a tailored response; anything else gets the generic
// message plus example commands.
func (e *Engine) handleError(state *State) {
	msg := state.Err.Error()

	switch {
	case errors.Is(state.Err, storage.ErrUnavailable):
		state.Message = msg
	case strings.Contains(msg, "not available"):
		state.Message = "The language service is not available right now. Please try again in a moment."
	case strings.Contains(msg, "required"):
		state.Message = fmt.Sprintf("It looks like some information is missing: %s.", msg)
	case strings.Contains(msg, "not found"):
		state.Message = fmt.Sprintf("%s. You can create the contact first with an add-contact command.", msg)
	case strings.Contains(msg, "validation"):
		state.Message = fmt.Sprintf("I couldn't act on that: %s. Try rephrasing the command.", msg)
	default:
		state.Message = fmt.Sprintf(
			"Sorry, I didn't understand that. Here are some things you can say:\n- %s",
			strings.Join(exampleCommands, "\n- "),
		)
	}
}

// generateResponse is the pass-through terminal node. Every traversal ends
// here with a message already set by a prior node.
func (e *Engine) generateResponse(state *State) {
	if state.Message == "" {
		state.Message = "Done."
	}
}

// proactivePromptContext renders triggers into the context string handed
// to the advice generator for the startup summary.
func proactivePromptContext(list []types.ProactiveTrigger) string {
	var b strings.Builder
	b.WriteString("Summarize these relationship reminders in one short, friendly paragraph:\n")
	for _, t := range list {
		switch t.Type {
		case types.TriggerUpcomingEvent:
			fmt.Fprintf(&b, "- %s has a %s in %d day(s) (%s)\n", t.ContactName, t.DateType, t.DaysUntil, t.Date)
		case types.TriggerReconnection:
			fmt.Fprintf(&b, "- %s (%s priority) last heard from %d day(s) ago\n", t.ContactName, t.Priority, t.DaysSince)
		}
	}
	return b.String()
}

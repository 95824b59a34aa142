package llm

import (
	"fmt"
	"strings"
)

// KnownActions lists every tool tag the intent parser may emit. The
// workflow engine dispatches on these exact strings.
var KnownActions = []string{
	"add_contact",
	"add_memory",
	"add_reminder",
	"show_contacts",
	"show_memories",
	"show_reminders",
	"search_contacts",
	"get_contact_details",
	"add_date",
	"show_upcoming_dates",
	"get_advice",
}

// IntentPrompt generates a strict JSON-only prompt for intent parsing.
// The parser tolerates stray prose around the JSON, but the prompt pushes
// hard for clean output because small local models drift otherwise.
func IntentPrompt(text string) string {
	return fmt.Sprintf(`TASK: Parse a personal-relationship-assistant command into a structured intent.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks.

ACTIONS (ONLY these):
%s

REQUIRED JSON STRUCTURE:
Your response MUST start with { and end with }
{"action":"<one of the actions>","confidence":<0.0-1.0>,"payload":{...}}

PAYLOAD SHAPES:
- add_contact: {"contacts":[{"name":"...","email":"...","phone":"...","company":"...","location":"...","notes":"...","priority":"high|medium|low"}]}
- add_memory: {"contact_name":"...","summary":"...","location":"...","date":"...","tags":["..."]}
- add_reminder: {"contact_name":"...","title":"...","date":"...","priority":"high|medium|low"}
- search_contacts: {"query":"..."}
- get_contact_details: {"contact_name":"..."}
- add_date: {"contact_name":"...","date_type":"birthday|anniversary|...","date":"DD-MM or DD-MM-YYYY"}
- get_advice: {"question":"..."}
- show_contacts / show_memories / show_reminders / show_upcoming_dates: {}

Set confidence below 0.3 when the command does not match any action.

COMMAND:
%s`, "- "+strings.Join(KnownActions, "\n- "), text)
}

// AdvicePrompt wraps a prompt context for the advice generator.
func AdvicePrompt(promptContext string) string {
	return fmt.Sprintf(`You are a thoughtful personal-relationship assistant.
Answer in 2-4 sentences of plain text. No lists, no markdown.

%s`, promptContext)
}

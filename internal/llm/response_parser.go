package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kinvault/kinvault/pkg/types"
)

// extractJSON extracts the first complete JSON object from a string that may
// contain extra text. LLMs add explanations before/after the JSON despite
// instructions; brace matching (string-aware) recovers the object.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text
}

// ParseIntentResponse parses the intent JSON returned by the model.
// Confidence is clamped to [0,1]; a missing action is a parse error.
func ParseIntentResponse(raw string) (*types.Intent, error) {
	var intent types.Intent
	if err := json.Unmarshal([]byte(extractJSON(raw)), &intent); err != nil {
		return nil, fmt.Errorf("malformed intent JSON: %w", err)
	}

	intent.Action = strings.TrimSpace(intent.Action)
	if intent.Action == "" {
		return nil, fmt.Errorf("intent JSON has no action")
	}

	if intent.Confidence < 0 {
		intent.Confidence = 0
	}
	if intent.Confidence > 1 {
		intent.Confidence = 1
	}

	return &intent, nil
}

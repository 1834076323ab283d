package analyzer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Models are asked for bare JSON but routinely wrap it in code fences or
// lead with prose anyway. These pre-compiled patterns strip that noise.
var (
	codeFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	objectRegex    = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// extractJSON pulls the first JSON object out of a model response.
func extractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if !strings.HasPrefix(text, "{") {
		if m := objectRegex.FindString(text); m != "" {
			text = m
		}
	}

	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return json.RawMessage(text), nil
}

package generate

import (
	"bytes"
	"encoding/json"
	"strings"
)

// parseJSON unmarshals backend output into T after stripping code fences.
func parseJSON[T any](data []byte) (*T, error) {
	cleaned := cleanJSON(data)
	var result T
	if err := json.Unmarshal(cleaned, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// cleanJSON strips markdown code fences and leading/trailing whitespace
// from model responses. Models often wrap JSON in ```json ... ``` blocks.
// Handles: ```json\n{...}\n```, ```\n{...}\n```, and bare JSON.
func cleanJSON(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}

	if bytes.HasPrefix(s, []byte("```")) {
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		s = bytes.TrimSpace(s)
	}

	return s
}

// extractArray slices out the outermost JSON array from a response that
// may carry prose around it. Returns false when no array is present.
func extractArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// cleanCode strips a single markdown code fence around generated source.
// Bare source passes through untouched.
func cleanCode(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return ""
	}
	if fence := strings.LastIndex(trimmed, "```"); fence >= 0 {
		trimmed = trimmed[:fence]
	}
	return strings.TrimSpace(trimmed)
}

package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/biasharahub/biashara/internal/models"
)

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseJSONObject decodes the first JSON object found in raw backend output.
func parseJSONObject(raw string, dst any) error {
	s := stripCodeFences(raw)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in output", models.ErrBackendGeneration)
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), dst); err != nil {
		return fmt.Errorf("%w: %v", models.ErrBackendGeneration, err)
	}
	return nil
}

// Package actions turns raw inference output into validated job actions.
package actions

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bdougie/jobtrace/internal/models"
)

// ErrUnparseable means the model answered but no JSON could be recovered
// from the answer. It is distinct from an empty answer, which simply means
// the model saw no actions.
var ErrUnparseable = errors.New("unparseable model output")

var fenceRe = regexp.MustCompile("```(?:json|JSON)?")

// Parse extracts candidate records from model output. Markdown fences and
// prose around a JSON array are tolerated. An empty answer, "[]" and "null"
// all yield zero candidates and a nil error.
//
// Array elements that are not JSON objects are returned as nil candidates
// so the validator can report and drop them.
func Parse(text string) ([]models.Candidate, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	if cleaned == "" {
		return nil, nil
	}
	if out, err := decode(cleaned); err == nil {
		return out, nil
	}

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start >= 0 && end > start {
		if out, err := decode(cleaned[start : end+1]); err == nil {
			return out, nil
		}
	}

	preview := cleaned
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	return nil, fmt.Errorf("%w: %q", ErrUnparseable, preview)
}

func decode(s string) ([]models.Candidate, error) {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []models.Candidate{v}, nil
	case []any:
		out := make([]models.Candidate, 0, len(v))
		for _, elem := range v {
			obj, _ := elem.(map[string]any)
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a JSON array, got %T", raw)
	}
}

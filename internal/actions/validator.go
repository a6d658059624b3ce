package actions

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/unicode/norm"

	"github.com/bdougie/jobtrace/internal/models"
)

// DefaultConfidenceThreshold drops actions the model is unsure about.
const DefaultConfidenceThreshold = 0.6

//go:embed schema.cue
var schemaSource string

// Older prompts used short keys; they are accepted when the canonical key
// is absent.
var keyAliases = map[string]string{
	"company":   "company_name",
	"recruiter": "recruiter_name",
	"action":    "action_type",
}

type record struct {
	CompanyName   string   `json:"company_name"`
	Role          string   `json:"role"`
	RecruiterName *string  `json:"recruiter_name"`
	ActionType    string   `json:"action_type"`
	Channel       string   `json:"channel"`
	Confidence    *float64 `json:"confidence"`
	Notes         *string  `json:"notes"`
}

// Validator coerces candidates into JobActions against the embedded CUE
// schema and drops low-confidence ones.
type Validator struct {
	threshold float64
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	cctx   *cue.Context
	schema cue.Value
}

// NewValidator compiles the action schema.
func NewValidator(threshold float64, logger *slog.Logger) (*Validator, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("confidence threshold %v outside [0,1]", threshold)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cctx := cuecontext.New()
	value := cctx.CompileString(schemaSource)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling action schema: %w", err)
	}
	schema := value.LookupPath(cue.ParsePath("#JobAction"))
	if !schema.Exists() {
		return nil, fmt.Errorf("action schema has no #JobAction definition")
	}
	return &Validator{
		threshold: threshold,
		logger:    logger.With("component", "validator"),
		now:       func() time.Time { return time.Now().UTC() },
		cctx:      cctx,
		schema:    schema,
	}, nil
}

// Validate returns the candidates that coerce into well-formed actions, in
// input order. Rejected candidates are logged and skipped.
func (v *Validator) Validate(candidates []models.Candidate) []models.JobAction {
	valid := make([]models.JobAction, 0, len(candidates))
	for i, cand := range candidates {
		action, err := v.coerce(cand)
		if err != nil {
			v.logger.Warn("invalid action skipped", "index", i, "candidate", cand, "error", err)
			continue
		}
		if action.Confidence != nil && *action.Confidence < v.threshold {
			v.logger.Warn("action skipped due to low confidence",
				"index", i, "company", action.CompanyName, "confidence", *action.Confidence, "threshold", v.threshold)
			continue
		}
		valid = append(valid, action)
	}
	return valid
}

func (v *Validator) coerce(cand models.Candidate) (models.JobAction, error) {
	if cand == nil {
		return models.JobAction{}, fmt.Errorf("candidate is not a JSON object")
	}
	normalized := normalize(cand)

	v.mu.Lock()
	err := v.schema.Unify(v.cctx.Encode(normalized)).Validate(cue.Concrete(true))
	v.mu.Unlock()
	if err != nil {
		return models.JobAction{}, err
	}

	raw, err := json.Marshal(normalized)
	if err != nil {
		return models.JobAction{}, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.JobAction{}, err
	}

	action := models.JobAction{
		CompanyName: rec.CompanyName,
		Role:        rec.Role,
		ActionType:  rec.ActionType,
		Channel:     rec.Channel,
		Confidence:  rec.Confidence,
		Timestamp:   v.now(),
	}
	if rec.RecruiterName != nil {
		action.RecruiterName = *rec.RecruiterName
	}
	if rec.Notes != nil {
		action.Notes = *rec.Notes
	}
	return action, nil
}

// normalize copies the candidate with trimmed, NFC-normalized strings and
// aliased keys resolved.
func normalize(cand models.Candidate) map[string]any {
	out := make(map[string]any, len(cand))
	for k, val := range cand {
		if s, ok := val.(string); ok {
			val = strings.TrimSpace(norm.NFC.String(s))
		}
		out[k] = val
	}
	for alias, canonical := range keyAliases {
		if _, ok := out[canonical]; ok {
			continue
		}
		if val, ok := out[alias]; ok {
			out[canonical] = val
		}
	}
	return out
}

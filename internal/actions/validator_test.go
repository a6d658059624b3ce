package actions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/jobtrace/internal/models"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestValidator(t *testing.T, threshold float64) *Validator {
	t.Helper()
	v, err := NewValidator(threshold, nil)
	require.NoError(t, err)
	v.now = func() time.Time { return fixedNow }
	return v
}

func candidate(company string, confidence any) models.Candidate {
	c := models.Candidate{
		"company_name": company,
		"role":         "Backend Engineer",
		"action_type":  "applied",
		"channel":      "LinkedIn",
	}
	if confidence != nil {
		c["confidence"] = confidence
	}
	return c
}

func companies(actions []models.JobAction) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.CompanyName
	}
	return out
}

func TestValidator_ConfidenceThreshold(t *testing.T) {
	v := newTestValidator(t, DefaultConfidenceThreshold)

	got := v.Validate([]models.Candidate{
		candidate("Low", 0.59),
		candidate("Edge", 0.6),
		candidate("High", 0.95),
		candidate("Absent", nil),
	})

	assert.Equal(t, []string{"Edge", "High", "Absent"}, companies(got))
	require.NotNil(t, got[0].Confidence)
	assert.InDelta(t, 0.6, *got[0].Confidence, 1e-9)
	assert.Nil(t, got[2].Confidence)
}

func TestValidator_MissingRequiredField(t *testing.T) {
	v := newTestValidator(t, DefaultConfidenceThreshold)

	missingRole := candidate("NoRole", 0.9)
	delete(missingRole, "role")
	blankChannel := candidate("BlankChannel", 0.9)
	blankChannel["channel"] = "   "

	got := v.Validate([]models.Candidate{missingRole, candidate("Good", 0.9), blankChannel})
	assert.Equal(t, []string{"Good"}, companies(got))
}

func TestValidator_PreservesOrder(t *testing.T) {
	v := newTestValidator(t, DefaultConfidenceThreshold)

	got := v.Validate([]models.Candidate{
		candidate("C", 0.9), candidate("A", 0.9), nil, candidate("B", 0.9),
	})
	assert.Equal(t, []string{"C", "A", "B"}, companies(got))
}

func TestValidator_AllDroppedIsEmptyNotNil(t *testing.T) {
	v := newTestValidator(t, DefaultConfidenceThreshold)

	got := v.Validate([]models.Candidate{candidate("Low", 0.1), nil})
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, v.Validate(nil))
}

func TestValidator_RejectsBadTypes(t *testing.T) {
	v := newTestValidator(t, DefaultConfidenceThreshold)

	outOfRange := candidate("OutOfRange", 1.5)
	stringConfidence := candidate("StringConfidence", "0.9")
	numericRole := candidate("NumericRole", 0.9)
	numericRole["role"] = 7

	got := v.Validate([]models.Candidate{outOfRange, stringConfidence, numericRole})
	assert.Empty(t, got)
}

func TestValidator_OptionalFields(t *testing.T) {
	v := newTestValidator(t, DefaultConfidenceThreshold)

	withOptional := candidate("Acme", nil)
	withOptional["recruiter_name"] = "Jordan Lee"
	withOptional["notes"] = "Follow up Friday"
	nullOptional := candidate("Globex", nil)
	nullOptional["recruiter_name"] = nil
	nullOptional["notes"] = nil
	nullOptional["confidence"] = nil

	got := v.Validate([]models.Candidate{withOptional, nullOptional})
	require.Len(t, got, 2)
	assert.Equal(t, "Jordan Lee", got[0].RecruiterName)
	assert.Equal(t, "Follow up Friday", got[0].Notes)
	assert.Equal(t, "", got[1].RecruiterName)
	assert.Nil(t, got[1].Confidence)
}

func TestValidator_NormalizesStrings(t *testing.T) {
	v := newTestValidator(t, DefaultConfidenceThreshold)

	c := candidate("  Cafe\u0301 Labs  ", 0.8)
	got := v.Validate([]models.Candidate{c})
	require.Len(t, got, 1)
	assert.Equal(t, "Caf\u00e9 Labs", got[0].CompanyName)
	assert.Equal(t, fixedNow, got[0].Timestamp)
}

func TestValidator_AcceptsShortKeys(t *testing.T) {
	v := newTestValidator(t, DefaultConfidenceThreshold)

	got := v.Validate([]models.Candidate{{
		"company":   "Initech",
		"role":      "Platform Engineer",
		"action":    "interview_scheduled",
		"channel":   "email",
		"recruiter": "Sam",
	}})
	require.Len(t, got, 1)
	assert.Equal(t, "Initech", got[0].CompanyName)
	assert.Equal(t, "interview_scheduled", got[0].ActionType)
	assert.Equal(t, "Sam", got[0].RecruiterName)
}

func TestValidator_ExtraKeysAllowed(t *testing.T) {
	v := newTestValidator(t, DefaultConfidenceThreshold)

	c := candidate("Acme", 0.9)
	c["url"] = "https://example.com/jobs/1"
	assert.Len(t, v.Validate([]models.Candidate{c}), 1)
}

func TestNewValidator_RejectsThresholdOutsideRange(t *testing.T) {
	_, err := NewValidator(1.2, nil)
	assert.Error(t, err)
	_, err = NewValidator(-0.1, nil)
	assert.Error(t, err)
}

func TestParseThenValidate(t *testing.T) {
	v := newTestValidator(t, DefaultConfidenceThreshold)

	text := "```json\n" + `[
  {"company_name": "Acme", "role": "SRE", "action_type": "applied", "channel": "LinkedIn", "confidence": 0.9},
  {"company_name": "Globex", "role": "", "action_type": "applied", "channel": "email"},
  {"company_name": "Hooli", "role": "PM", "action_type": "recruiter_message", "channel": "email", "confidence": 0.3}
]` + "\n```"

	cands, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, cands, 3)

	got := v.Validate(cands)
	assert.Equal(t, []string{"Acme"}, companies(got))
}

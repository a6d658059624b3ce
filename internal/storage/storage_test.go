package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/jobtrace/internal/models"
)

var baseTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func ptr(f float64) *float64 { return &f }

func sampleActions() []models.JobAction {
	return []models.JobAction{
		{
			CompanyName:   "Acme",
			Role:          "SRE",
			RecruiterName: "Jordan Lee",
			ActionType:    "applied",
			Channel:       "LinkedIn",
			Confidence:    ptr(0.9),
			Notes:         "Follow up Friday",
			Timestamp:     baseTime,
		},
		{
			CompanyName: "Globex",
			Role:        "SWE",
			ActionType:  "recruiter_message",
			Channel:     "email",
			Timestamp:   baseTime.Add(time.Minute),
		},
	}
}

func TestJSONSink_AppendsAcrossBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "actions.json")
	sink := NewJSONSink(path, nil)
	all := sampleActions()

	require.NoError(t, sink.AppendActions(context.Background(), all[:1]))
	require.NoError(t, sink.AppendActions(context.Background(), all[1:]))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "json_sink", data)

	got, err := ReadJSONActions(path)
	require.NoError(t, err)
	assert.Equal(t, all, got)
}

func TestJSONSink_EmptyBatchDoesNotCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.json")
	sink := NewJSONSink(path, nil)

	require.NoError(t, sink.AppendActions(context.Background(), nil))
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestJSONSink_FailedBatchIsNotWrittenLater(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	path := filepath.Join(blocker, "actions.json")
	sink := NewJSONSink(path, nil)
	all := sampleActions()

	err := sink.AppendActions(context.Background(), all[:1])
	require.ErrorIs(t, err, ErrSink)

	require.NoError(t, os.Remove(blocker))
	require.NoError(t, sink.AppendActions(context.Background(), all[1:]))
	require.NoError(t, sink.Close())

	got, err := ReadJSONActions(path)
	require.NoError(t, err)
	assert.Equal(t, all[1:], got)
}

func TestJSONSink_CorruptFileIsSinkError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	err := NewJSONSink(path, nil).AppendActions(context.Background(), sampleActions())
	assert.ErrorIs(t, err, ErrSink)
}

func TestReadJSONActions_Missing(t *testing.T) {
	got, err := ReadJSONActions(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

type memSink struct {
	got    []models.JobAction
	err    error
	closed bool
}

func (m *memSink) AppendActions(_ context.Context, actions []models.JobAction) error {
	if m.err != nil {
		return m.err
	}
	m.got = append(m.got, actions...)
	return nil
}

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

func TestMultiSink_FailureDoesNotStopOthers(t *testing.T) {
	first := &memSink{err: errors.New("sheets quota")}
	second := &memSink{}
	m := NewMultiSink(first, second)

	err := m.AppendActions(context.Background(), sampleActions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSink)
	assert.Contains(t, err.Error(), "sheets quota")
	assert.Len(t, second.got, 2)

	require.NoError(t, m.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
	assert.Equal(t, 2, m.Len())
}

func TestMultiSink_EmptyBatch(t *testing.T) {
	s := &memSink{err: errors.New("should not be called")}
	assert.NoError(t, NewMultiSink(s).AppendActions(context.Background(), nil))
}

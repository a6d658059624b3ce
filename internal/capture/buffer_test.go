package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/jobtrace/internal/models"
)

func frame(seq uint64) models.Frame {
	return models.Frame{Seq: seq, MIMEType: "image/jpeg", Data: []byte{byte(seq)}}
}

func seqs(frames []models.Frame) []uint64 {
	out := make([]uint64, len(frames))
	for i, f := range frames {
		out[i] = f.Seq
	}
	return out
}

func TestFrameBuffer_KeepsInsertionOrder(t *testing.T) {
	b := NewFrameBuffer(5, nil)
	for i := uint64(1); i <= 3; i++ {
		b.Add(frame(i))
	}

	assert.Equal(t, []uint64{1, 2, 3}, seqs(b.Snapshot()))
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 5, b.Cap())
}

func TestFrameBuffer_EvictsOldestWhenFull(t *testing.T) {
	b := NewFrameBuffer(3, nil)
	for i := uint64(1); i <= 7; i++ {
		b.Add(frame(i))
	}

	assert.Equal(t, []uint64{5, 6, 7}, seqs(b.Snapshot()))
	stats := b.Stats()
	assert.Equal(t, uint64(7), stats.Added)
	assert.Equal(t, uint64(4), stats.Evicted)
	assert.Equal(t, 3, stats.Len)
}

func TestFrameBuffer_CapacityOne(t *testing.T) {
	b := NewFrameBuffer(1, nil)
	b.Add(frame(1))
	b.Add(frame(2))

	assert.Equal(t, []uint64{2}, seqs(b.Snapshot()))
}

func TestFrameBuffer_NonPositiveCapacityUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultBufferCapacity, NewFrameBuffer(0, nil).Cap())
	assert.Equal(t, DefaultBufferCapacity, NewFrameBuffer(-4, nil).Cap())
}

func TestFrameBuffer_ClearEmptiesAndIsIdempotent(t *testing.T) {
	b := NewFrameBuffer(4, nil)
	b.Add(frame(1))
	b.Add(frame(2))

	b.Clear()
	assert.Empty(t, b.Snapshot())
	assert.Equal(t, 0, b.Len())

	b.Clear()
	assert.Empty(t, b.Snapshot())
	assert.Equal(t, uint64(1), b.Stats().Cleared)

	b.Add(frame(3))
	assert.Equal(t, []uint64{3}, seqs(b.Snapshot()))
}

func TestFrameBuffer_SnapshotIsACopy(t *testing.T) {
	b := NewFrameBuffer(2, nil)
	b.Add(frame(1))

	snap := b.Snapshot()
	b.Add(frame(2))
	b.Add(frame(3))

	assert.Equal(t, []uint64{1}, seqs(snap))
}

func TestFrameBuffer_ReleasesSpooledFiles(t *testing.T) {
	dir := t.TempDir()
	spooled := func(seq uint64) models.Frame {
		path := filepath.Join(dir, fmt.Sprintf("frame_%06d.jpg", seq))
		require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0644))
		return models.Frame{Seq: seq, Path: path}
	}

	b := NewFrameBuffer(2, nil)
	f1, f2, f3 := spooled(1), spooled(2), spooled(3)
	b.Add(f1)
	b.Add(f2)
	b.Add(f3)

	assert.NoFileExists(t, f1.Path, "evicted frame file should be removed")
	assert.FileExists(t, f2.Path)

	b.Clear()
	assert.NoFileExists(t, f2.Path)
	assert.NoFileExists(t, f3.Path)
}

func TestFrameBuffer_PushLeavesEvictedFrameToCaller(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame_000001.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0644))

	b := NewFrameBuffer(1, nil)
	_, ok := b.Push(models.Frame{Seq: 1, Path: path})
	assert.False(t, ok)

	evicted, ok := b.Push(frame(2))
	require.True(t, ok)
	assert.Equal(t, uint64(1), evicted.Seq)
	assert.FileExists(t, path)
	assert.Equal(t, []uint64{2}, seqs(b.Snapshot()))

	b.Release(evicted)
	assert.NoFileExists(t, path)
}

func TestFrameBuffer_DrainHandsOverFrames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame_000001.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0644))

	b := NewFrameBuffer(4, nil)
	b.Add(models.Frame{Seq: 1, Path: path})
	b.Add(frame(2))

	got := b.Drain()
	assert.Equal(t, []uint64{1, 2}, seqs(got))
	assert.Equal(t, 0, b.Len())
	assert.FileExists(t, path, "drained frames are not released")
	assert.Equal(t, uint64(1), b.Stats().Cleared)
	assert.Empty(t, b.Drain())
}

func TestFrameBuffer_ConcurrentAddNeverExceedsCapacity(t *testing.T) {
	b := NewFrameBuffer(10, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Add(frame(uint64(w*1000 + i)))
				if i%17 == 0 {
					b.Clear()
				}
				assert.LessOrEqual(t, len(b.Snapshot()), 10)
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, b.Len(), 10)
}

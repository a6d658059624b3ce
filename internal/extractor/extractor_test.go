package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFrames_MissingVideo(t *testing.T) {
	_, err := ExtractFrames(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), t.TempDir(), 5, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestExtractFrames_ReusesExistingExtraction(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "session.mp4")
	require.NoError(t, os.WriteFile(video, []byte("not really a video"), 0644))

	out := filepath.Join(dir, "frames")
	frameDir := filepath.Join(out, "session")
	require.NoError(t, os.MkdirAll(frameDir, 0755))
	for _, name := range []string{"frame_0002.jpg", "frame_0001.jpg", "notes.txt", "frame_0003.JPG"} {
		require.NoError(t, os.WriteFile(filepath.Join(frameDir, name), []byte("x"), 0644))
	}

	frames, err := ExtractFrames(context.Background(), video, out, 4, 0)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, filepath.Join(frameDir, "frame_0001.jpg"), frames[0].Path)
	assert.Equal(t, filepath.Join(frameDir, "frame_0002.jpg"), frames[1].Path)
	assert.Equal(t, uint64(3), frames[2].Seq)
	assert.Equal(t, 8*time.Second, frames[2].CapturedAt.Sub(frames[0].CapturedAt))
	assert.Equal(t, "image/jpeg", frames[0].MIMEType)
}

package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bdougie/jobtrace/internal/models"
)

// ExtractFrames extracts frames from a video file at the given interval in
// seconds and returns them in playback order. Frames are written into a
// subfolder of outputDir named after the video; an existing extraction is
// reused.
func ExtractFrames(ctx context.Context, videoPath, outputDir string, interval int, maxWidth int) ([]models.Frame, error) {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}
	if interval <= 0 {
		interval = 5
	}

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	frameDirPath := filepath.Join(outputDir, videoName)

	if names := listFrames(frameDirPath); len(names) > 0 {
		return loadFrames(frameDirPath, names, interval), nil
	}

	if err := os.MkdirAll(frameDirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory '%s': %v", frameDirPath, err)
	}

	filter := fmt.Sprintf("fps=1/%d", interval)
	if maxWidth > 0 {
		filter += fmt.Sprintf(",scale='min(%d,iw)':-2", maxWidth)
	}
	ffmpegCommand := exec.CommandContext(ctx,
		"ffmpeg",
		"-i", videoPath,
		"-vf", filter,
		fmt.Sprintf("%s/frame_%%04d.jpg", frameDirPath),
	)

	// Capture output for better error reporting
	output, err := ffmpegCommand.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, string(output))
	}

	names := listFrames(frameDirPath)
	if len(names) == 0 {
		return nil, fmt.Errorf("no JPEG frames found in directory '%s'", frameDirPath)
	}
	return loadFrames(frameDirPath, names, interval), nil
}

func listFrames(dir string) []string {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var frames []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(strings.ToLower(file.Name()), ".jpg") {
			frames = append(frames, file.Name())
		}
	}
	sort.Strings(frames)
	return frames
}

// loadFrames references extracted files by path; the video start is taken
// as the zero time so CapturedAt encodes the playback offset.
func loadFrames(dir string, names []string, interval int) []models.Frame {
	frames := make([]models.Frame, 0, len(names))
	for i, name := range names {
		frames = append(frames, models.Frame{
			Seq:        uint64(i + 1),
			CapturedAt: time.Unix(0, 0).UTC().Add(time.Duration(i*interval) * time.Second),
			MIMEType:   "image/jpeg",
			Path:       filepath.Join(dir, name),
		})
	}
	return frames
}

// Package media wraps the ffmpeg invocations used to turn an enrollment
// video into training frames.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// TargetFrames is how many stills the trainer wants per student.
const TargetFrames = 65

// ConvertToMP4 re-encodes a browser-recorded video (typically webm) to mp4.
// Returns the output path; the input file is left in place.
func ConvertToMP4(ctx context.Context, inputPath string) (string, error) {
	ext := filepath.Ext(inputPath)
	if strings.EqualFold(ext, ".mp4") {
		return inputPath, nil
	}
	outputPath := strings.TrimSuffix(inputPath, ext) + ".mp4"

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-an",
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg convert failed: %w: %s", err, tail(out))
	}
	return outputPath, nil
}

// ExtractFrames samples stills from a student's video into
// framesDir/<studentID>/. The sample rate assumes a roughly ten second
// recording and aims for TargetFrames images.
func ExtractFrames(ctx context.Context, videoPath, studentID, framesDir string) (string, error) {
	dir := filepath.Join(framesDir, studentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create frames dir: %w", err)
	}

	fps := float64(TargetFrames) / 10.0
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%.2f", fps),
		"-frames:v", fmt.Sprintf("%d", TargetFrames),
		"-q:v", "2",
		filepath.Join(dir, "frame_%03d.jpg"),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg frame extraction failed: %w: %s", err, tail(out))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no frames extracted from %s", videoPath)
	}
	return dir, nil
}

// tail keeps error messages readable when ffmpeg dumps its full log.
func tail(out []byte) string {
	const max = 400
	s := strings.TrimSpace(string(out))
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}

package converter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

type OggToMP3 struct{}

// NeedsConversion reports whether the file at path is an Ogg/Opus voice note
// the transcription endpoint does not accept as is.
func NeedsConversion(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".ogg" || ext == ".oga"
}

// ConvertToMP3 converts an Ogg voice note to mp3 next to the input and
// removes the input. Other formats are returned unchanged.
func (o *OggToMP3) ConvertToMP3(ctx context.Context, inputPath string) (string, error) {
	if !NeedsConversion(inputPath) {
		return inputPath, nil
	}

	slog.DebugContext(ctx, "Converting voice message to mp3", "inputPath", inputPath)

	outputPath, err := convertAudioToMp3(ctx, inputPath)
	defer os.Remove(inputPath)
	if err != nil {
		return "", fmt.Errorf("converting file: %w", err)
	}

	slog.DebugContext(ctx, "Conversion successful", "inputPath", inputPath, "outputPath", outputPath)

	return outputPath, nil
}

func convertAudioToMp3(ctx context.Context, filePath string) (string, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return "", fmt.Errorf("looking for `ffmpeg`: %w", err)
	}

	newFilePath := filePath + ".mp3"

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-loglevel", "error", "-i", filePath, newFilePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(newFilePath)
		return "", fmt.Errorf("running `ffmpeg`: %w: %s", err, out)
	}

	return newFilePath, nil
}

package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const voiceTempFilePerm = 0o644

type AudioConverter interface {
	ConvertToMP3(ctx context.Context, inputPath string) (string, error)
}

type AudioTranscriber interface {
	TranscribeAudio(ctx context.Context, audioFilePath string) (string, error)
}

type voiceService struct {
	converter   AudioConverter
	transcriber AudioTranscriber
	tempDir     string
}

func NewVoiceService(converter AudioConverter, transcriber AudioTranscriber, tempDir string) *voiceService {
	return &voiceService{
		converter:   converter,
		transcriber: transcriber,
		tempDir:     tempDir,
	}
}

// Transcribe turns a recorded voice message into text. ext is the file
// extension of the recording, with or without the leading dot.
func (v *voiceService) Transcribe(ctx context.Context, audio []byte, ext string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty voice message")
	}

	if err := os.MkdirAll(v.tempDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("creating voice temp directory: %w", err)
	}

	ext = "." + strings.TrimPrefix(ext, ".")
	voiceFilePath := filepath.Join(v.tempDir, "voice-"+uuid.NewString()+ext)
	if err := os.WriteFile(voiceFilePath, audio, voiceTempFilePerm); err != nil {
		return "", fmt.Errorf("saving voice file: %w", err)
	}

	audioPath, err := v.converter.ConvertToMP3(ctx, voiceFilePath)
	if err != nil {
		os.Remove(voiceFilePath)
		return "", fmt.Errorf("converting voice file to MP3: %w", err)
	}
	defer os.Remove(audioPath)

	text, err := v.transcriber.TranscribeAudio(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("transcribing audio file: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("voice message contains no speech")
	}

	return text, nil
}

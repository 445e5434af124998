package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jphacks/os-2412/pkg/domain"
)

type SpeechProvider interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

type AudioStore interface {
	SaveAudio(ctx context.Context, prefix string, data []byte) (string, error)
}

type speechService struct {
	provider SpeechProvider
	store    AudioStore
}

func NewSpeechService(provider SpeechProvider, store AudioStore) *speechService {
	return &speechService{
		provider: provider,
		store:    store,
	}
}

// Synthesize returns the raw audio for text. Failures come back as
// *domain.SynthesisError.
func (s *speechService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	audio, err := s.provider.SynthesizeSpeech(ctx, text)
	if err != nil {
		return nil, &domain.SynthesisError{Cause: err}
	}
	if len(audio) == 0 {
		return nil, &domain.SynthesisError{Cause: fmt.Errorf("empty audio stream")}
	}
	return audio, nil
}

// Speak synthesizes text and persists the audio, returning its reference.
func (s *speechService) Speak(ctx context.Context, text, prefix string) (string, error) {
	audio, err := s.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}

	ref, err := s.store.SaveAudio(ctx, prefix, audio)
	if err != nil {
		return "", &domain.SynthesisError{Cause: fmt.Errorf("saving audio: %w", err)}
	}

	slog.InfoContext(ctx, "Speech synthesized", "ref", ref, "sizeBytes", len(audio))

	return ref, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/jphacks/os-2412/pkg/domain"
	"github.com/jphacks/os-2412/pkg/logger"
)

type Analyzer interface {
	Analyze(ctx context.Context, image domain.ImageRef, coords domain.Coordinates) (*domain.AnalysisResult, error)
}

type Orchestrator interface {
	SendMessage(ctx context.Context, state *domain.ConversationState, utterance string, withAudio bool) (*domain.Reply, error)
}

type RecordRepository interface {
	Save(ctx context.Context, record domain.Record) (string, error)
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	GetAll(ctx context.Context) (map[string]domain.Record, error)
}

type SessionRepository interface {
	GetOrCreate(sessionID string) *domain.ConversationState
	Find(sessionID string) (*domain.ConversationState, bool)
}

type MediaStore interface {
	SaveImage(ctx context.Context, data []byte, mimeType string) (string, error)
	Load(ref string) ([]byte, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, ext string) (string, error)
}

type AnalyzeInput struct {
	Image       []byte
	Coordinates domain.Coordinates
	WithAudio   bool
}

type AlbumEntry struct {
	ID     string        `json:"id"`
	Record domain.Record `json:"record"`
}

type ChatView struct {
	Context domain.ConversationContext `json:"context"`
	Log     []domain.Turn              `json:"history"`
}

type VoiceReply struct {
	Transcript string `json:"transcript"`
	*domain.Reply
}

// journeyService is the single entry point front ends use: it runs the
// analysis, persists its outcome and keeps each session's conversation.
type journeyService struct {
	analyzer     Analyzer
	orchestrator Orchestrator
	speaker      Speaker
	transcriber  Transcriber
	records      RecordRepository
	sessions     SessionRepository
	media        MediaStore
	now          func() time.Time
}

func NewJourneyService(
	analyzer Analyzer,
	orchestrator Orchestrator,
	speaker Speaker,
	transcriber Transcriber,
	records RecordRepository,
	sessions SessionRepository,
	media MediaStore,
) *journeyService {
	return &journeyService{
		analyzer:     analyzer,
		orchestrator: orchestrator,
		speaker:      speaker,
		transcriber:  transcriber,
		records:      records,
		sessions:     sessions,
		media:        media,
		now:          time.Now,
	}
}

// Analyze runs a new analysis and, on success, persists it and makes it the
// active context of the session. A failed analysis persists nothing and
// leaves the session untouched.
func (j *journeyService) Analyze(ctx context.Context, sessionID string, in AnalyzeInput) (*AlbumEntry, error) {
	mimeType := http.DetectContentType(in.Image)

	result, err := j.analyzer.Analyze(ctx, domain.ImageRef{MIMEType: mimeType, Data: in.Image}, in.Coordinates)
	if err != nil {
		return nil, err
	}

	imagePath, err := j.media.SaveImage(ctx, in.Image, mimeType)
	if err != nil {
		return nil, fmt.Errorf("saving image: %w", err)
	}

	record := domain.Record{
		Timestamp: result.CreatedAt,
		ImagePath: imagePath,
		Narration: result.Narration,
		PlaceName: result.PlaceName,
		Latitude:  result.Latitude,
		Longitude: result.Longitude,
	}

	if in.WithAudio {
		audioPath, err := j.speaker.Speak(ctx, result.Narration, "audio")
		if err != nil {
			slog.WarnContext(ctx, "Narration audio omitted", logger.Err(err))
		} else {
			record.AudioPath = audioPath
		}
	}

	id, err := j.records.Save(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("saving record: %w", err)
	}

	j.sessions.GetOrCreate(sessionID).Activate(record.Context(id), j.now())

	slog.InfoContext(ctx, "Analysis saved and activated", "id", id, "placeName", record.PlaceName)

	return &AlbumEntry{ID: id, Record: record}, nil
}

// Open reactivates a persisted analysis for the session, discarding any
// conversation that was active before.
func (j *journeyService) Open(ctx context.Context, sessionID, id string) (*ChatView, error) {
	record, err := j.records.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching record %s: %w", id, err)
	}

	state := j.sessions.GetOrCreate(sessionID)
	state.Activate(record.Context(id), j.now())

	active, turns, _ := state.Active()

	slog.InfoContext(ctx, "Conversation reopened", "id", id)

	return &ChatView{Context: active, Log: turns}, nil
}

// Active returns the session's current conversation.
func (j *journeyService) Active(ctx context.Context, sessionID string) (*ChatView, error) {
	state, ok := j.sessions.Find(sessionID)
	if !ok {
		return nil, domain.ErrNoActiveContext
	}

	active, turns, ok := state.Active()
	if !ok {
		return nil, domain.ErrNoActiveContext
	}

	return &ChatView{Context: active, Log: turns}, nil
}

func (j *journeyService) SendMessage(ctx context.Context, sessionID, utterance string, withAudio bool) (*domain.Reply, error) {
	state, _ := j.sessions.Find(sessionID)
	return j.orchestrator.SendMessage(ctx, state, utterance, withAudio)
}

// SendVoice transcribes a voice message and sends the transcript as the
// user's utterance.
func (j *journeyService) SendVoice(ctx context.Context, sessionID string, audio []byte, ext string, withAudio bool) (*VoiceReply, error) {
	state, ok := j.sessions.Find(sessionID)
	if !ok {
		return nil, &domain.OrchestratorError{Kind: domain.NoActiveContext, Cause: domain.ErrNoActiveContext}
	}
	if _, _, active := state.Active(); !active {
		return nil, &domain.OrchestratorError{Kind: domain.NoActiveContext, Cause: domain.ErrNoActiveContext}
	}

	transcript, err := j.transcriber.Transcribe(ctx, audio, ext)
	if err != nil {
		return nil, fmt.Errorf("transcribing voice message: %w", err)
	}

	reply, err := j.orchestrator.SendMessage(ctx, state, transcript, withAudio)
	if err != nil {
		return nil, err
	}

	return &VoiceReply{Transcript: transcript, Reply: reply}, nil
}

// Album lists every persisted analysis, newest first.
func (j *journeyService) Album(ctx context.Context) ([]AlbumEntry, error) {
	records, err := j.records.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching records: %w", err)
	}

	entries := lo.MapToSlice(records, func(id string, r domain.Record) AlbumEntry {
		return AlbumEntry{ID: id, Record: r}
	})
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].ID > entries[b].ID
	})

	return entries, nil
}

func (j *journeyService) Record(ctx context.Context, id string) (*AlbumEntry, error) {
	record, err := j.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AlbumEntry{ID: id, Record: *record}, nil
}

// LoadMedia reads back a stored image or audio file by its reference.
func (j *journeyService) LoadMedia(ref string) ([]byte, error) {
	if ref == "" {
		return nil, errors.New("empty media reference")
	}
	return j.media.Load(ref)
}

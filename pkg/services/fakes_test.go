package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jphacks/os-2412/pkg/domain"
)

type fakeChatProvider struct {
	mu       sync.Mutex
	requests []domain.CompletionRequest
	reply    func(n int) (string, error)
}

func (f *fakeChatProvider) CreateChatCompletion(_ context.Context, req domain.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.reply == nil {
		return fmt.Sprintf("reply %d", len(f.requests)), nil
	}
	return f.reply(len(f.requests))
}

func (f *fakeChatProvider) calls() []domain.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CompletionRequest(nil), f.requests...)
}

type fakeSpeaker struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (f *fakeSpeaker) Speak(_ context.Context, text, prefix string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.texts = append(f.texts, text)
	return fmt.Sprintf("/static/uploads/%s_%d.mp3", prefix, len(f.texts)), nil
}

type fakeVision struct {
	narration, placeName string
	narrationErr         error
	placeErr             error
}

func (f *fakeVision) DescribeImage(_ context.Context, req domain.CompletionRequest) (string, error) {
	if req.MaxTokens == domain.PlaceNameMaxTokens {
		return f.placeName, f.placeErr
	}
	return f.narration, f.narrationErr
}

type fakeSpeechProvider struct {
	audio []byte
	err   error
}

func (f *fakeSpeechProvider) SynthesizeSpeech(context.Context, string) ([]byte, error) {
	return f.audio, f.err
}

type memoryRecords struct {
	mu      sync.Mutex
	records map[string]domain.Record
	err     error
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{records: map[string]domain.Record{}}
}

func (m *memoryRecords) Save(_ context.Context, r domain.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	id := domain.RecordID(r.Timestamp)
	for n := 2; ; n++ {
		if _, ok := m.records[id]; !ok {
			break
		}
		id = fmt.Sprintf("%s_%d", domain.RecordID(r.Timestamp), n)
	}
	m.records[id] = r
	return id, nil
}

func (m *memoryRecords) GetByID(_ context.Context, id string) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *memoryRecords) GetAll(context.Context) (map[string]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Record, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

type memorySessions struct {
	mu     sync.Mutex
	states map[string]*domain.ConversationState
}

func newMemorySessions() *memorySessions {
	return &memorySessions{states: map[string]*domain.ConversationState{}}
}

func (m *memorySessions) GetOrCreate(id string) *domain.ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	if !ok {
		s = domain.NewConversationState()
		m.states[id] = s
	}
	return s
}

func (m *memorySessions) Find(id string) (*domain.ConversationState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	return s, ok
}

type memoryMedia struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemoryMedia() *memoryMedia {
	return &memoryMedia{files: map[string][]byte{}}
}

func (m *memoryMedia) SaveImage(_ context.Context, data []byte, mimeType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := fmt.Sprintf("/static/uploads/image_%d.%s", len(m.files)+1, strings.TrimPrefix(mimeType, "image/"))
	m.files[ref] = data
	return ref, nil
}

func (m *memoryMedia) Load(ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

type fakeTranscriber struct {
	text string
	err  error
	hits int
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	f.hits++
	return f.text, f.err
}

var errProvider = errors.New("provider unavailable")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jphacks/os-2412/pkg/domain"
	"github.com/jphacks/os-2412/pkg/repository"
	"github.com/jphacks/os-2412/pkg/services"
)

type fakeJourney struct {
	analyzed   []services.AnalyzeInput
	sessions   []string
	messages   []string
	analyzeErr error
	chatErr    error
	openErr    error
	album      []services.AlbumEntry
}

func (f *fakeJourney) Analyze(_ context.Context, sessionID string, in services.AnalyzeInput) (*services.AlbumEntry, error) {
	f.sessions = append(f.sessions, sessionID)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	f.analyzed = append(f.analyzed, in)
	rec := domain.Record{PlaceName: "Kinkaku-ji", Narration: "A **golden** temple."}
	if in.WithAudio {
		rec.AudioPath = "/static/uploads/audio_1.mp3"
	}
	return &services.AlbumEntry{ID: "20241026_101500", Record: rec}, nil
}

func (f *fakeJourney) Open(_ context.Context, sessionID, id string) (*services.ChatView, error) {
	f.sessions = append(f.sessions, sessionID)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &services.ChatView{Context: domain.ConversationContext{ID: id, PlaceName: "Nara & Park", Narration: "Deer."}}, nil
}

func (f *fakeJourney) Album(context.Context) ([]services.AlbumEntry, error) {
	return f.album, nil
}

func (f *fakeJourney) SendMessage(_ context.Context, sessionID, utterance string, withAudio bool) (*domain.Reply, error) {
	f.sessions = append(f.sessions, sessionID)
	f.messages = append(f.messages, utterance)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &domain.Reply{Text: "It was built in *1397*."}, nil
}

func (f *fakeJourney) SendVoice(ctx context.Context, sessionID string, _ []byte, _ string, withAudio bool) (*services.VoiceReply, error) {
	reply, err := f.SendMessage(ctx, sessionID, "transcribed <question>", withAudio)
	if err != nil {
		return nil, err
	}
	return &services.VoiceReply{Transcript: "transcribed <question>", Reply: reply}, nil
}

func (f *fakeJourney) LoadMedia(ref string) ([]byte, error) {
	return []byte("mp3:" + ref), nil
}

type fakeDownloader struct {
	err error
}

func (f *fakeDownloader) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	return []byte(fileID), f.err
}

func newTestHandler() (*handler, *fakeJourney, chan domain.Response) {
	journey := &fakeJourney{}
	responses := make(chan domain.Response, 10)
	return NewHandler(journey, repository.NewChatSettingsRepository(), &fakeDownloader{}, responses), journey, responses
}

func message(chatID int64, mutate func(*tgbotapi.Message)) *tgbotapi.Update {
	msg := &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID},
	}
	mutate(msg)
	return &tgbotapi.Update{Message: msg}
}

func photo(chatID int64) *tgbotapi.Update {
	return message(chatID, func(m *tgbotapi.Message) {
		m.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}
	})
}

func TestHandler_PhotoNeedsLocation(t *testing.T) {
	h, journey, responses := newTestHandler()

	h.HandleUpdate(context.Background(), photo(1))

	resp := <-responses
	assert.Equal(t, needLocationText, resp.Text)
	assert.Empty(t, journey.analyzed)
}

func TestHandler_LocationThenPhoto(t *testing.T) {
	h, journey, responses := newTestHandler()
	ctx := context.Background()

	h.HandleUpdate(ctx, message(1, func(m *tgbotapi.Message) {
		m.Location = &tgbotapi.Location{Latitude: 35.0394, Longitude: 135.7292}
	}))
	assert.Equal(t, locationSavedText, (<-responses).Text)

	h.HandleUpdate(ctx, photo(1))

	resp := <-responses
	require.NoError(t, resp.Err)
	assert.Contains(t, resp.Text, "<b>Kinkaku-ji</b>")
	assert.Contains(t, resp.Text, "A <b>golden</b> temple.")
	assert.Contains(t, resp.Text, "/open 20241026_101500")
	assert.Nil(t, resp.Audio)

	require.Len(t, journey.analyzed, 1)
	assert.Equal(t, []byte("large"), journey.analyzed[0].Image)
	assert.Equal(t, domain.Coordinates{Latitude: 35.0394, Longitude: 135.7292}, journey.analyzed[0].Coordinates)
	assert.Equal(t, "telegram:1", journey.sessions[0])
}

func TestHandler_VoiceToggleAttachesAudio(t *testing.T) {
	h, _, responses := newTestHandler()
	ctx := context.Background()

	h.HandleUpdate(ctx, message(1, func(m *tgbotapi.Message) { m.Text = "/voice" }))
	assert.Equal(t, "Spoken replies are on 🔊", (<-responses).Text)

	h.HandleUpdate(ctx, message(1, func(m *tgbotapi.Message) {
		m.Location = &tgbotapi.Location{Latitude: 1.5, Longitude: 2.5}
	}))
	<-responses

	h.HandleUpdate(ctx, photo(1))

	resp := <-responses
	require.NotNil(t, resp.Audio)
	assert.Equal(t, "audio_1.mp3", resp.Audio.Name)
	assert.Equal(t, []byte("mp3:/static/uploads/audio_1.mp3"), resp.Audio.Data)
}

func TestHandler_TextChats(t *testing.T) {
	h, journey, responses := newTestHandler()

	h.HandleUpdate(context.Background(), message(7, func(m *tgbotapi.Message) { m.Text = "When was it built?" }))

	resp := <-responses
	assert.Equal(t, "It was built in <i>1397</i>.", resp.Text)
	assert.Equal(t, []string{"When was it built?"}, journey.messages)
	assert.Equal(t, []string{"telegram:7"}, journey.sessions)
}

func TestHandler_VoiceShowsTranscript(t *testing.T) {
	h, _, responses := newTestHandler()

	h.HandleUpdate(context.Background(), message(7, func(m *tgbotapi.Message) {
		m.Voice = &tgbotapi.Voice{FileID: "voice"}
	}))

	resp := <-responses
	assert.Contains(t, resp.Text, "transcribed &lt;question&gt;")
	assert.Contains(t, resp.Text, "<i>1397</i>")
}

func TestHandler_ErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no context", &domain.OrchestratorError{Kind: domain.NoActiveContext}, needPhotoText},
		{"provider", &domain.OrchestratorError{Kind: domain.ProviderFailure, Cause: domain.ErrTimeout}, providerFailedText},
		{"other", errors.New("boom"), genericFailureText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, journey, responses := newTestHandler()
			journey.chatErr = tt.err

			h.HandleUpdate(context.Background(), message(1, func(m *tgbotapi.Message) { m.Text = "hello" }))

			resp := <-responses
			assert.Equal(t, tt.want, resp.Text)
			assert.Error(t, resp.Err)
		})
	}
}

func TestHandler_AnalysisFailure(t *testing.T) {
	h, journey, responses := newTestHandler()
	journey.analyzeErr = &domain.AnalysisError{Cause: errors.New("vision down")}
	h.settings.Update(1, func(s *domain.ChatSettings) { s.PendingLocation = &domain.Coordinates{} })

	h.HandleUpdate(context.Background(), photo(1))

	assert.Equal(t, analysisFailedText, (<-responses).Text)
}

func TestHandler_AlbumAndOpen(t *testing.T) {
	h, journey, responses := newTestHandler()
	ctx := context.Background()

	h.HandleUpdate(ctx, message(1, func(m *tgbotapi.Message) { m.Text = "/album" }))
	assert.Equal(t, emptyAlbumText, (<-responses).Text)

	journey.album = []services.AlbumEntry{
		{ID: "20241026_101500", Record: domain.Record{PlaceName: "Kinkaku-ji"}},
		{ID: "20240101_000000", Record: domain.Record{PlaceName: "Nara <Park>"}},
	}
	h.HandleUpdate(ctx, message(1, func(m *tgbotapi.Message) { m.Text = "/album@guide_bot" }))
	resp := <-responses
	assert.Contains(t, resp.Text, "<code>20241026_101500</code> Kinkaku-ji")
	assert.Contains(t, resp.Text, "Nara &lt;Park&gt;")

	h.HandleUpdate(ctx, message(1, func(m *tgbotapi.Message) { m.Text = "/open" }))
	assert.Equal(t, openUsageText, (<-responses).Text)

	h.HandleUpdate(ctx, message(1, func(m *tgbotapi.Message) { m.Text = "/open 20240101_000000" }))
	resp = <-responses
	assert.Contains(t, resp.Text, "<b>Nara &amp; Park</b>")

	journey.openErr = domain.ErrNotFound
	h.HandleUpdate(ctx, message(1, func(m *tgbotapi.Message) { m.Text = "/open nope" }))
	assert.Contains(t, (<-responses).Text, "No album entry")
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "telegram:-100123", SessionID(-100123))
}

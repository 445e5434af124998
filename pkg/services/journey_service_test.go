package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jphacks/os-2412/pkg/domain"
)

type journeyFixture struct {
	svc         *journeyService
	vision      *fakeVision
	chat        *fakeChatProvider
	speaker     *fakeSpeaker
	transcriber *fakeTranscriber
	records     *memoryRecords
	sessions    *memorySessions
	media       *memoryMedia
}

func newJourneyFixture(t *testing.T) *journeyFixture {
	t.Helper()
	f := &journeyFixture{
		vision:      &fakeVision{narration: "A golden temple.", placeName: "Kinkaku-ji"},
		chat:        &fakeChatProvider{},
		speaker:     &fakeSpeaker{},
		transcriber: &fakeTranscriber{text: "What is inside?"},
		records:     newMemoryRecords(),
		sessions:    newMemorySessions(),
		media:       newMemoryMedia(),
	}
	analyzer := NewAnalysisService(f.vision, "English")
	analyzer.now = fixedClock(time.Date(2024, 10, 26, 10, 15, 0, 0, time.UTC))
	f.svc = NewJourneyService(
		analyzer,
		NewConversationService(f.chat, f.speaker, "English"),
		f.speaker,
		f.transcriber,
		f.records,
		f.sessions,
		f.media,
	)
	return f
}

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F', 0}

func TestJourney_AnalyzeThenChat(t *testing.T) {
	f := newJourneyFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Analyze(ctx, "s1", AnalyzeInput{Image: jpeg, Coordinates: kyoto, WithAudio: true})
	require.NoError(t, err)
	assert.Equal(t, "20241026_101500", entry.ID)
	assert.Equal(t, "Kinkaku-ji", entry.Record.PlaceName)
	assert.Equal(t, "/static/uploads/image_1.jpeg", entry.Record.ImagePath)
	assert.Equal(t, "/static/uploads/audio_1.mp3", entry.Record.AudioPath)

	stored, err := f.records.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Record, *stored)

	view, err := f.svc.Active(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, view.Context.ID)
	require.Len(t, view.Log, 1)
	assert.Equal(t, "A golden temple.", view.Log[0].Content)

	reply, err := f.svc.SendMessage(ctx, "s1", "Who built it?", false)
	require.NoError(t, err)
	assert.Len(t, reply.Log, 3)
}

func TestJourney_AnalyzeFailurePersistsNothing(t *testing.T) {
	f := newJourneyFixture(t)
	f.vision.placeErr = errProvider
	ctx := context.Background()

	_, err := f.svc.Analyze(ctx, "s1", AnalyzeInput{Image: jpeg, Coordinates: kyoto})

	var ae *domain.AnalysisError
	require.ErrorAs(t, err, &ae)
	all, _ := f.records.GetAll(ctx)
	assert.Empty(t, all)
	assert.Empty(t, f.media.files)
	_, err = f.svc.Active(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNoActiveContext)
}

func TestJourney_AnalyzeKeepsRecordWhenAudioFails(t *testing.T) {
	f := newJourneyFixture(t)
	f.speaker.err = &domain.SynthesisError{Cause: errProvider}

	entry, err := f.svc.Analyze(context.Background(), "s1", AnalyzeInput{Image: jpeg, Coordinates: kyoto, WithAudio: true})

	require.NoError(t, err)
	assert.Empty(t, entry.Record.AudioPath)
}

func TestJourney_NewAnalysisReplacesConversation(t *testing.T) {
	f := newJourneyFixture(t)
	ctx := context.Background()

	first, err := f.svc.Analyze(ctx, "s1", AnalyzeInput{Image: jpeg, Coordinates: kyoto})
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, "s1", "hello", false)
	require.NoError(t, err)

	f.vision.narration = "A famous wooden stage."
	f.vision.placeName = "Kiyomizu-dera"
	second, err := f.svc.Analyze(ctx, "s1", AnalyzeInput{Image: jpeg, Coordinates: domain.Coordinates{Latitude: 34.9949, Longitude: 135.785}})
	require.NoError(t, err)
	assert.Equal(t, first.ID+"_2", second.ID)

	view, err := f.svc.Active(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Kiyomizu-dera", view.Context.PlaceName)
	assert.Len(t, view.Log, 1)
}

func TestJourney_OpenReactivatesRecord(t *testing.T) {
	f := newJourneyFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Analyze(ctx, "s1", AnalyzeInput{Image: jpeg, Coordinates: kyoto})
	require.NoError(t, err)

	view, err := f.svc.Open(ctx, "s2", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, view.Context.ID)
	assert.Equal(t, kyoto, view.Context.Coordinates)
	require.Len(t, view.Log, 1)
	assert.Equal(t, domain.TurnRoleAssistant, view.Log[0].Role)

	_, err = f.svc.Open(ctx, "s2", "19990101_000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJourney_SessionsAreIsolated(t *testing.T) {
	f := newJourneyFixture(t)
	ctx := context.Background()

	_, err := f.svc.Analyze(ctx, "s1", AnalyzeInput{Image: jpeg, Coordinates: kyoto})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, "s2", "hello", false)

	var oe *domain.OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, domain.NoActiveContext, oe.Kind)
}

func TestJourney_SendVoice(t *testing.T) {
	t.Run("transcribes then chats", func(t *testing.T) {
		f := newJourneyFixture(t)
		ctx := context.Background()
		_, err := f.svc.Analyze(ctx, "s1", AnalyzeInput{Image: jpeg, Coordinates: kyoto})
		require.NoError(t, err)

		reply, err := f.svc.SendVoice(ctx, "s1", []byte("ogg"), "ogg", false)

		require.NoError(t, err)
		assert.Equal(t, "What is inside?", reply.Transcript)
		require.Len(t, reply.Log, 3)
		assert.Equal(t, "What is inside?", reply.Log[1].Content)
	})

	t.Run("no context skips transcription", func(t *testing.T) {
		f := newJourneyFixture(t)

		_, err := f.svc.SendVoice(context.Background(), "s1", []byte("ogg"), "ogg", false)

		assert.ErrorIs(t, err, domain.ErrNoActiveContext)
		assert.Zero(t, f.transcriber.hits)
	})
}

func TestJourney_AlbumNewestFirst(t *testing.T) {
	f := newJourneyFixture(t)
	ctx := context.Background()
	for _, id := range []string{"20240101_000000", "20241026_101500", "20240615_120000"} {
		ts, err := time.Parse(domain.RecordIDLayout, id)
		require.NoError(t, err)
		_, err = f.records.Save(ctx, domain.Record{Timestamp: ts, PlaceName: id})
		require.NoError(t, err)
	}

	album, err := f.svc.Album(ctx)

	require.NoError(t, err)
	require.Len(t, album, 3)
	assert.Equal(t, "20241026_101500", album[0].ID)
	assert.Equal(t, "20240615_120000", album[1].ID)
	assert.Equal(t, "20240101_000000", album[2].ID)
}

func TestJourney_LoadMedia(t *testing.T) {
	f := newJourneyFixture(t)
	entry, err := f.svc.Analyze(context.Background(), "s1", AnalyzeInput{Image: jpeg, Coordinates: kyoto})
	require.NoError(t, err)

	data, err := f.svc.LoadMedia(entry.Record.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, jpeg, data)

	_, err = f.svc.LoadMedia("")
	assert.Error(t, err)
}

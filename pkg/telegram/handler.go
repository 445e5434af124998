package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"path"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"github.com/jphacks/os-2412/pkg/domain"
	"github.com/jphacks/os-2412/pkg/logger"
	"github.com/jphacks/os-2412/pkg/render"
	"github.com/jphacks/os-2412/pkg/services"
)

const (
	greetingText = "Hi! I am your travel guide.\n\n" +
		"1. Share your location 📍\n" +
		"2. Send a photo of what you see\n" +
		"3. Ask me anything about the place\n\n" +
		"/album lists past places, /open <code>id</code> resumes one, /voice toggles spoken replies."
	needLocationText   = "Share your location first, then send the photo again."
	locationSavedText  = "Location saved. Now send a photo of the place."
	needPhotoText      = "Send a photo of a place first, or /open one from your /album."
	analysisFailedText = "Could not analyze the photo, please try again."
	providerFailedText = "The guide is unavailable right now, please ask again in a moment."
	emptyAlbumText     = "Your album is empty."
	openUsageText      = "Usage: /open <code>id</code>"
	genericFailureText = "Something went wrong, please try again."

	albumPageSize = 20
)

type JourneyService interface {
	Analyze(ctx context.Context, sessionID string, in services.AnalyzeInput) (*services.AlbumEntry, error)
	Open(ctx context.Context, sessionID, id string) (*services.ChatView, error)
	Album(ctx context.Context) ([]services.AlbumEntry, error)
	SendMessage(ctx context.Context, sessionID, utterance string, withAudio bool) (*domain.Reply, error)
	SendVoice(ctx context.Context, sessionID string, audio []byte, ext string, withAudio bool) (*services.VoiceReply, error)
	LoadMedia(ref string) ([]byte, error)
}

type SettingsRepository interface {
	Get(chatID int64) domain.ChatSettings
	Update(chatID int64, fn func(*domain.ChatSettings)) domain.ChatSettings
}

type FileDownloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

type handler struct {
	journey    JourneyService
	settings   SettingsRepository
	downloader FileDownloader
	responseCh chan<- domain.Response
}

func NewHandler(
	journey JourneyService,
	settings SettingsRepository,
	downloader FileDownloader,
	responseCh chan<- domain.Response,
) *handler {
	return &handler{
		journey:    journey,
		settings:   settings,
		downloader: downloader,
		responseCh: responseCh,
	}
}

// SessionID is the conversation session a Telegram chat maps to.
func SessionID(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

func (h *handler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	switch {
	case msg.Location != nil:
		h.saveLocation(ctx, msg.Chat.ID, msg.Location)

	case len(msg.Photo) > 0:
		h.analyzePhoto(ctx, msg.Chat.ID, msg.Photo[len(msg.Photo)-1].FileID)

	case msg.Voice != nil:
		h.chatByVoice(ctx, msg.Chat.ID, msg.Voice.FileID)

	case isCommand(msg.Text):
		h.handleCommand(ctx, msg.Chat.ID, msg.Text)

	case strings.TrimSpace(msg.Text) != "":
		h.chat(ctx, msg.Chat.ID, msg.Text)
	}
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

func (h *handler) handleCommand(ctx context.Context, chatID int64, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.Split(fields[0], "@")[0])
	args := fields[1:]

	switch cmd {
	case "/start", "/help":
		h.reply(chatID, greetingText)

	case "/album":
		h.showAlbum(ctx, chatID)

	case "/open":
		if len(args) != 1 {
			h.reply(chatID, openUsageText)
			return
		}
		h.open(ctx, chatID, args[0])

	case "/voice":
		s := h.settings.Update(chatID, func(s *domain.ChatSettings) {
			s.VoiceReplies = !s.VoiceReplies
		})
		h.reply(chatID, lo.Ternary(s.VoiceReplies, "Spoken replies are on 🔊", "Spoken replies are off 🔇"))

	default:
		slog.WarnContext(ctx, "Unhandled command", "cmd", cmd)
		h.reply(chatID, greetingText)
	}
}

func (h *handler) saveLocation(ctx context.Context, chatID int64, loc *tgbotapi.Location) {
	coords := domain.Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude}
	h.settings.Update(chatID, func(s *domain.ChatSettings) {
		s.PendingLocation = &coords
	})

	slog.InfoContext(ctx, "Location saved", "latitude", coords.Latitude, "longitude", coords.Longitude)

	h.reply(chatID, locationSavedText)
}

func (h *handler) analyzePhoto(ctx context.Context, chatID int64, fileID string) {
	settings := h.settings.Get(chatID)
	if settings.PendingLocation == nil {
		h.reply(chatID, needLocationText)
		return
	}

	image, err := h.downloader.DownloadFile(ctx, fileID)
	if err != nil {
		h.fail(chatID, genericFailureText, fmt.Errorf("downloading photo: %w", err))
		return
	}

	entry, err := h.journey.Analyze(ctx, SessionID(chatID), services.AnalyzeInput{
		Image:       image,
		Coordinates: *settings.PendingLocation,
		WithAudio:   settings.VoiceReplies,
	})
	if err != nil {
		h.fail(chatID, userMessage(err), err)
		return
	}

	h.responseCh <- domain.Response{
		ChatID: chatID,
		Text:   formatNarration(entry),
		Audio:  h.loadAudio(ctx, entry.Record.AudioPath),
	}
}

func (h *handler) chat(ctx context.Context, chatID int64, text string) {
	reply, err := h.journey.SendMessage(ctx, SessionID(chatID), text, h.settings.Get(chatID).VoiceReplies)
	if err != nil {
		h.fail(chatID, userMessage(err), err)
		return
	}

	h.responseCh <- domain.Response{
		ChatID: chatID,
		Text:   render.TelegramHTML(reply.Text),
		Audio:  h.loadAudio(ctx, reply.AudioRef),
	}
}

func (h *handler) chatByVoice(ctx context.Context, chatID int64, fileID string) {
	audio, err := h.downloader.DownloadFile(ctx, fileID)
	if err != nil {
		h.fail(chatID, genericFailureText, fmt.Errorf("downloading voice message: %w", err))
		return
	}

	reply, err := h.journey.SendVoice(ctx, SessionID(chatID), audio, "ogg", h.settings.Get(chatID).VoiceReplies)
	if err != nil {
		h.fail(chatID, userMessage(err), err)
		return
	}

	h.responseCh <- domain.Response{
		ChatID: chatID,
		Text:   fmt.Sprintf("🗣 <i>%s</i>\n\n%s", html.EscapeString(reply.Transcript), render.TelegramHTML(reply.Text)),
		Audio:  h.loadAudio(ctx, reply.AudioRef),
	}
}

func (h *handler) showAlbum(ctx context.Context, chatID int64) {
	album, err := h.journey.Album(ctx)
	if err != nil {
		h.fail(chatID, genericFailureText, err)
		return
	}
	if len(album) == 0 {
		h.reply(chatID, emptyAlbumText)
		return
	}

	lines := lo.Map(lo.Slice(album, 0, albumPageSize), func(e services.AlbumEntry, _ int) string {
		return fmt.Sprintf("<code>%s</code> %s", e.ID, html.EscapeString(e.Record.PlaceName))
	})
	h.reply(chatID, "📒 Album\n\n"+strings.Join(lines, "\n"))
}

func (h *handler) open(ctx context.Context, chatID int64, id string) {
	view, err := h.journey.Open(ctx, SessionID(chatID), id)
	if err != nil {
		h.fail(chatID, userMessage(err), err)
		return
	}

	h.reply(chatID, fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(view.Context.PlaceName), render.TelegramHTML(view.Context.Narration)))
}

func (h *handler) loadAudio(ctx context.Context, ref string) *domain.File {
	if ref == "" {
		return nil
	}
	data, err := h.journey.LoadMedia(ref)
	if err != nil {
		slog.WarnContext(ctx, "Loading audio for reply", "ref", ref, logger.Err(err))
		return nil
	}
	return &domain.File{Name: path.Base(ref), Data: data}
}

func (h *handler) reply(chatID int64, text string) {
	h.responseCh <- domain.Response{ChatID: chatID, Text: text}
}

func (h *handler) fail(chatID int64, text string, err error) {
	h.responseCh <- domain.Response{ChatID: chatID, Text: text, Err: err}
}

func formatNarration(e *services.AlbumEntry) string {
	return fmt.Sprintf("<b>%s</b>\n\n%s\n\n<i>/open %s</i>",
		html.EscapeString(e.Record.PlaceName),
		render.TelegramHTML(e.Record.Narration),
		e.ID,
	)
}

func userMessage(err error) string {
	var (
		ae *domain.AnalysisError
		oe *domain.OrchestratorError
	)
	switch {
	case errors.As(err, &ae):
		return analysisFailedText
	case errors.As(err, &oe) && oe.Kind == domain.NoActiveContext:
		return needPhotoText
	case errors.As(err, &oe):
		return providerFailedText
	case errors.Is(err, domain.ErrNotFound):
		return "No album entry with that id. See /album."
	default:
		return genericFailureText
	}
}

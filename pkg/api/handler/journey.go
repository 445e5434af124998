package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/jphacks/os-2412/pkg/api/response"
	"github.com/jphacks/os-2412/pkg/domain"
	"github.com/jphacks/os-2412/pkg/logger"
	"github.com/jphacks/os-2412/pkg/services"
)

type JourneyService interface {
	Analyze(ctx context.Context, sessionID string, in services.AnalyzeInput) (*services.AlbumEntry, error)
	Album(ctx context.Context) ([]services.AlbumEntry, error)
	Record(ctx context.Context, id string) (*services.AlbumEntry, error)
	Open(ctx context.Context, sessionID, id string) (*services.ChatView, error)
	Active(ctx context.Context, sessionID string) (*services.ChatView, error)
	SendMessage(ctx context.Context, sessionID, utterance string, withAudio bool) (*domain.Reply, error)
	SendVoice(ctx context.Context, sessionID string, audio []byte, ext string, withAudio bool) (*services.VoiceReply, error)
}

type analyzeRequest struct {
	Image     string   `json:"image"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	WithAudio *bool    `json:"with_audio"`
}

type messageRequest struct {
	Message   string `json:"message"`
	WithAudio bool   `json:"with_audio"`
}

// recordView flattens an album entry into the record document plus its id.
type recordView struct {
	ID string `json:"id"`
	domain.Record
}

type recordResponse struct {
	Success bool `json:"success"`
	recordView
}

type albumResponse struct {
	Success bool         `json:"success"`
	Records []recordView `json:"records"`
}

type chatResponse struct {
	Success bool `json:"success"`
	*services.ChatView
}

type replyResponse struct {
	Success bool `json:"success"`
	*domain.Reply
}

type voiceReplyResponse struct {
	Success bool `json:"success"`
	*services.VoiceReply
}

type journey struct {
	service        JourneyService
	maxUploadBytes int64
	writer         response.JSONResponseWriter
}

func NewJourney(service JourneyService, maxUploadBytes int64) *journey {
	return &journey{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		writer:         response.JSONResponseWriter{},
	}
}

func (j *journey) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, j.maxUploadBytes)).Decode(&req); err != nil {
		j.badRequest(w, r, fmt.Errorf("decoding request: %w", err))
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		j.badRequest(w, r, err)
		return
	}

	coords, err := coordinates(req.Latitude, req.Longitude)
	if err != nil {
		j.badRequest(w, r, err)
		return
	}

	entry, err := j.service.Analyze(r.Context(), SessionIDFromContext(r.Context()), services.AnalyzeInput{
		Image:       image,
		Coordinates: coords,
		WithAudio:   req.WithAudio == nil || *req.WithAudio,
	})
	if err != nil {
		j.writeError(w, r, err)
		return
	}

	j.writer.WriteSuccessResponse(w, http.StatusOK, toRecordResponse(*entry))
}

func (j *journey) Album(w http.ResponseWriter, r *http.Request) {
	entries, err := j.service.Album(r.Context())
	if err != nil {
		j.writeError(w, r, err)
		return
	}

	j.writer.WriteSuccessResponse(w, http.StatusOK, albumResponse{
		Success: true,
		Records: lo.Map(entries, func(e services.AlbumEntry, _ int) recordView {
			return recordView{ID: e.ID, Record: e.Record}
		}),
	})
}

func (j *journey) Record(w http.ResponseWriter, r *http.Request) {
	entry, err := j.service.Record(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		j.writeError(w, r, err)
		return
	}

	j.writer.WriteSuccessResponse(w, http.StatusOK, toRecordResponse(*entry))
}

func (j *journey) Open(w http.ResponseWriter, r *http.Request) {
	view, err := j.service.Open(r.Context(), SessionIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		j.writeError(w, r, err)
		return
	}

	j.writer.WriteSuccessResponse(w, http.StatusOK, chatResponse{Success: true, ChatView: view})
}

func (j *journey) Active(w http.ResponseWriter, r *http.Request) {
	view, err := j.service.Active(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		j.writeError(w, r, err)
		return
	}

	j.writer.WriteSuccessResponse(w, http.StatusOK, chatResponse{Success: true, ChatView: view})
}

func (j *journey) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, j.maxUploadBytes)).Decode(&req); err != nil {
		j.badRequest(w, r, fmt.Errorf("decoding request: %w", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		j.badRequest(w, r, errors.New("message is required"))
		return
	}

	reply, err := j.service.SendMessage(r.Context(), SessionIDFromContext(r.Context()), req.Message, req.WithAudio)
	if err != nil {
		j.writeError(w, r, err)
		return
	}

	j.writer.WriteSuccessResponse(w, http.StatusOK, replyResponse{Success: true, Reply: reply})
}

func (j *journey) Voice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, j.maxUploadBytes)
	if err := r.ParseMultipartForm(j.maxUploadBytes); err != nil {
		j.badRequest(w, r, fmt.Errorf("parsing form: %w", err))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		j.badRequest(w, r, fmt.Errorf("audio file is required: %w", err))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		j.badRequest(w, r, fmt.Errorf("reading audio: %w", err))
		return
	}

	withAudio, _ := strconv.ParseBool(r.FormValue("with_audio"))
	ext := lo.Ternary(filepath.Ext(header.Filename) != "", filepath.Ext(header.Filename), ".webm")

	reply, err := j.service.SendVoice(r.Context(), SessionIDFromContext(r.Context()), audio, ext, withAudio)
	if err != nil {
		j.writeError(w, r, err)
		return
	}

	j.writer.WriteSuccessResponse(w, http.StatusOK, voiceReplyResponse{Success: true, VoiceReply: reply})
}

func (j *journey) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	slog.WarnContext(r.Context(), "Rejected request", logger.Err(err))
	j.writer.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
}

func (j *journey) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "status", status, logger.Err(err))
	} else {
		slog.InfoContext(r.Context(), "Request refused", "status", status, logger.Err(err))
	}
	j.writer.WriteErrorResponse(w, status, err.Error())
}

// StatusOf maps a service error onto the HTTP status reported to clients.
func StatusOf(err error) int {
	var (
		ae *domain.AnalysisError
		oe *domain.OrchestratorError
	)
	switch {
	case errors.Is(err, domain.ErrNoActiveContext),
		errors.As(err, &oe) && oe.Kind == domain.NoActiveContext:
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &ae), errors.As(err, &oe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("image is required")
	}
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data URL")
		}
		s = payload
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("image is empty")
	}
	return data, nil
}

func coordinates(lat, lon *float64) (domain.Coordinates, error) {
	if lat == nil || lon == nil {
		return domain.Coordinates{}, errors.New("latitude and longitude are required")
	}
	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		return domain.Coordinates{}, fmt.Errorf("coordinates out of range: %v, %v", *lat, *lon)
	}
	return domain.Coordinates{Latitude: *lat, Longitude: *lon}, nil
}

func toRecordResponse(e services.AlbumEntry) recordResponse {
	return recordResponse{Success: true, recordView: recordView{ID: e.ID, Record: e.Record}}
}

package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/jphacks/os-2412/pkg/domain"
)

type Config struct {
	Token          string
	BaseURL        string
	VisionModel    string
	ChatModel      string
	SpeechModel    string
	SpeechVoice    string
	RequestTimeout time.Duration
}

type client struct {
	api            *openai.Client
	visionModel    string
	chatModel      string
	speechModel    openai.SpeechModel
	speechVoice    openai.SpeechVoice
	requestTimeout time.Duration
}

func NewClient(cfg Config) (*client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	apiCfg := openai.DefaultConfig(cfg.Token)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{}

	c := &client{
		api:            openai.NewClientWithConfig(apiCfg),
		visionModel:    cfg.VisionModel,
		chatModel:      cfg.ChatModel,
		speechModel:    openai.SpeechModel(cfg.SpeechModel),
		speechVoice:    openai.SpeechVoice(cfg.SpeechVoice),
		requestTimeout: cfg.RequestTimeout,
	}
	if c.visionModel == "" {
		c.visionModel = domain.DefaultVisionModel
	}
	if c.chatModel == "" {
		c.chatModel = domain.DefaultChatModel
	}
	if c.speechModel == "" {
		c.speechModel = domain.DefaultSpeechModel
	}
	if c.speechVoice == "" {
		c.speechVoice = domain.DefaultSpeechVoice
	}

	return c, nil
}

// DescribeImage runs a single vision-grounded completion. The request is
// expected to carry the image inline in one of its user messages.
func (c *client) DescribeImage(ctx context.Context, req domain.CompletionRequest) (string, error) {
	return c.complete(ctx, c.visionModel, req)
}

// CreateChatCompletion runs a text conversation completion.
func (c *client) CreateChatCompletion(ctx context.Context, req domain.CompletionRequest) (string, error) {
	return c.complete(ctx, c.chatModel, req)
}

func (c *client) complete(ctx context.Context, model string, req domain.CompletionRequest) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	slog.DebugContext(ctx, "Calling OpenAI for chat completion", "model", model, "messagesCount", len(req.Messages), "maxTokens", req.MaxTokens)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  toChatMessages(req.Messages),
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", c.wrapError(ctx, "creating chat completion", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no completion response from API")
	}

	return resp.Choices[0].Message.Content, nil
}

// SynthesizeSpeech converts text to audio with the configured voice.
func (c *client) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          c.speechModel,
		Input:          text,
		Voice:          c.speechVoice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, c.wrapError(ctx, "creating speech", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, c.wrapError(ctx, "reading speech audio", err)
	}

	return data, nil
}

// TranscribeAudio turns a voice recording into text with Whisper.
func (c *client) TranscribeAudio(ctx context.Context, audioFilePath string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioFilePath,
	})
	if err != nil {
		return "", c.wrapError(ctx, "creating transcription", err)
	}

	return resp.Text, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func (c *client) wrapError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toChatMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{Role: toRole(m.Role)}

		if m.Image == nil {
			msg.Content = m.Text
			out = append(out, msg)
			continue
		}

		if m.Text != "" {
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: m.Text,
			})
		}
		msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: m.Image.DataURL()},
		})
		out = append(out, msg)
	}
	return out
}

func toRole(r domain.MessageRole) string {
	switch r {
	case domain.MessageRoleSystem:
		return openai.ChatMessageRoleSystem
	case domain.MessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

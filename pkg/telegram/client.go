package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jphacks/os-2412/pkg/domain"
	"github.com/jphacks/os-2412/pkg/logger"
	"github.com/jphacks/os-2412/pkg/render"
)

const deliveryFailedText = "Could not deliver the reply, please try again."

type client struct {
	token     string
	bot       *tgbotapi.BotAPI
	updatesCh tgbotapi.UpdatesChannel
}

func NewClient(token string) (*client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot api instance: %w", err)
	}

	slog.Info("Authorized on telegram", "account", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	return &client{
		token:     token,
		bot:       bot,
		updatesCh: bot.GetUpdatesChan(u),
	}, nil
}

func (c *client) GetUpdates() tgbotapi.UpdatesChannel {
	return c.updatesCh
}

func (c *client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *client) StartTyping(ctx context.Context, chatID int64) {
	if _, err := c.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		slog.WarnContext(ctx, "Sending typing action", logger.Err(err))
	}
}

// SendResponse delivers text as HTML, followed by the audio when present.
func (c *client) SendResponse(ctx context.Context, response *domain.Response) {
	if response.Err != nil {
		slog.ErrorContext(ctx, "Replying with failure", "chatID", response.ChatID, logger.Err(response.Err))
	}

	if response.Text != "" {
		msg := tgbotapi.NewMessage(response.ChatID, response.Text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := c.bot.Send(msg); err != nil {
			slog.WarnContext(ctx, "Sending HTML message failed, retrying as plain text", logger.Err(err))
			c.sendPlain(ctx, response.ChatID, render.PlainText(response.Text))
		}
	}

	if response.Audio != nil {
		audio := tgbotapi.NewAudio(response.ChatID, tgbotapi.FileBytes{
			Name:  response.Audio.Name,
			Bytes: response.Audio.Data,
		})
		if _, err := c.bot.Send(audio); err != nil {
			slog.ErrorContext(ctx, "Sending audio", logger.Err(err))
		}
	}
}

func (c *client) sendPlain(ctx context.Context, chatID int64, text string) {
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.ErrorContext(ctx, "Sending plain message", logger.Err(err))
		if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, deliveryFailedText)); err != nil {
			slog.ErrorContext(ctx, "Sending failure notification", logger.Err(err))
		}
	}
}

// DownloadFile fetches the content of a file the user sent.
func (c *client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(c.token), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.bot.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func(body io.ReadCloser) {
		if closeErr := body.Close(); closeErr != nil {
			slog.ErrorContext(ctx, "Closing body", logger.Err(closeErr))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return data, nil
}

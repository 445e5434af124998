package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jphacks/os-2412/pkg/domain"
	"github.com/jphacks/os-2412/pkg/logger"
)

type ChatProvider interface {
	CreateChatCompletion(ctx context.Context, req domain.CompletionRequest) (string, error)
}

type Speaker interface {
	Speak(ctx context.Context, text, prefix string) (string, error)
}

type conversationService struct {
	provider ChatProvider
	speaker  Speaker
	language string
	now      func() time.Time
}

func NewConversationService(provider ChatProvider, speaker Speaker, language string) *conversationService {
	return &conversationService{
		provider: provider,
		speaker:  speaker,
		language: language,
		now:      time.Now,
	}
}

// SendMessage runs one exchange against the active context of state.
//
// The user turn is appended before the provider is called and stays in the
// log when the call fails. Audio is best effort: a synthesis failure leaves
// AudioRef empty and does not fail the reply.
func (c *conversationService) SendMessage(ctx context.Context, state *domain.ConversationState, utterance string, withAudio bool) (*domain.Reply, error) {
	if state == nil {
		return nil, &domain.OrchestratorError{Kind: domain.NoActiveContext, Cause: domain.ErrNoActiveContext}
	}

	var reply domain.Reply

	err := state.Exchange(func(active domain.ConversationContext, log *domain.ConversationLog) error {
		log.Append(domain.Turn{Role: domain.TurnRoleUser, Content: utterance, Timestamp: c.now()})

		prompt := BuildChatPrompt(active, log.Turns(), c.language)

		slog.InfoContext(ctx, "Generating guide reply", "contextID", active.ID, "messagesCount", len(prompt))

		text, err := c.provider.CreateChatCompletion(ctx, domain.CompletionRequest{
			Messages:  prompt,
			MaxTokens: domain.ReplyMaxTokens,
		})
		if err != nil {
			return &domain.OrchestratorError{Kind: domain.ProviderFailure, Cause: err}
		}

		log.Append(domain.Turn{Role: domain.TurnRoleAssistant, Content: text, Timestamp: c.now()})

		reply.Text = text
		reply.Log = log.Turns()
		return nil
	})
	if err != nil {
		var oe *domain.OrchestratorError
		if !errors.As(err, &oe) {
			err = &domain.OrchestratorError{Kind: domain.NoActiveContext, Cause: err}
		}
		slog.WarnContext(ctx, "Chat exchange failed", logger.Err(err))
		return nil, err
	}

	if withAudio {
		ref, err := c.speaker.Speak(ctx, reply.Text, "chat_audio")
		if err != nil {
			slog.WarnContext(ctx, "Reply audio omitted", logger.Err(err))
		} else {
			reply.AudioRef = ref
		}
	}

	return &reply, nil
}

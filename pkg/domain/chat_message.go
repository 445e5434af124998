package domain

import "encoding/base64"

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a provider message. Image is only set on user messages that
// carry an inline picture next to the text.
type Message struct {
	Role  MessageRole
	Text  string
	Image *ImageRef
}

type ImageRef struct {
	MIMEType string
	Data     []byte
}

// DataURL renders the image as an inline base64 reference.
func (i ImageRef) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

type CompletionRequest struct {
	Messages  []Message
	MaxTokens int
}

func RoleOf(t TurnRole) MessageRole {
	if t == TurnRoleAssistant {
		return MessageRoleAssistant
	}
	return MessageRoleUser
}

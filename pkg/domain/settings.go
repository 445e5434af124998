package domain

const (
	DefaultVisionModel = "gpt-4o-mini"
	DefaultChatModel   = "gpt-4o-mini"
	DefaultSpeechModel = "tts-1"
	DefaultSpeechVoice = "nova"

	NarrationMaxTokens = 500
	PlaceNameMaxTokens = 100
	ReplyMaxTokens     = 500
)

// ChatSettings are per-chat preferences kept by the Telegram front end.
type ChatSettings struct {
	PendingLocation *Coordinates
	VoiceReplies    bool
}

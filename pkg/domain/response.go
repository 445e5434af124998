package domain

// Reply is the outcome of one orchestrated exchange. AudioRef is empty when
// no audio was requested or synthesis failed.
type Reply struct {
	Text     string `json:"message"`
	Log      []Turn `json:"history"`
	AudioRef string `json:"audio_file,omitempty"`
}

// Response is what a chat front end sends back to a user.
type Response struct {
	ChatID int64
	Text   string
	Audio  *File
	Err    error
}

type File struct {
	Name string
	Data []byte
}

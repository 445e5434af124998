package domain

import (
	"strconv"
	"time"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// FormatCoordinate renders a coordinate the way it is interpolated into
// prompts: shortest decimal form, no exponent.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AnalysisResult is immutable once produced.
type AnalysisResult struct {
	Narration string
	PlaceName string
	Coordinates
	CreatedAt time.Time
}

// Record is the persisted album entry for one analysis. JSON keys match the
// metadata documents written by earlier versions of the app.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	ImagePath string    `json:"image_path"`
	AudioPath string    `json:"audio_path,omitempty"`
	Narration string    `json:"description"`
	PlaceName string    `json:"place_name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

func (r Record) Context(id string) ConversationContext {
	return ConversationContext{
		ID:        id,
		PlaceName: r.PlaceName,
		Narration: r.Narration,
		Coordinates: Coordinates{
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		},
	}
}

// RecordIDLayout is the timestamp layout record ids are derived from.
const RecordIDLayout = "20060102_150405"

func RecordID(t time.Time) string {
	return t.Format(RecordIDLayout)
}

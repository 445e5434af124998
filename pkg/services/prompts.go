package services

import (
	"fmt"

	"github.com/jphacks/os-2412/pkg/domain"
)

const (
	narrationPromptTemplate = "This photo was taken at latitude %[1]s, longitude %[2]s. " +
		"Describe in detail what the image shows and the place where it was taken, mentioning the place by name. " +
		"Do not include the latitude or longitude in the description. " +
		"Be specific about the historical background, nearby sightseeing spots, dangerous areas, local safety and anything a visitor should be careful about. " +
		"Write in %[3]s, in the friendly tone of a guide talking to tourists."

	placeNamePromptTemplate = "Answer with only the name of the place at latitude %[1]s, longitude %[2]s shown in this photo, " +
		"as a single word or short phrase with no explanation."

	guidePersonaTemplate = "You are the tour guide for %[1]s. Reply in %[3]s. " +
		"Answer based on the following description:\n%[2]s"
)

func narrationPrompt(c domain.Coordinates, language string) string {
	return fmt.Sprintf(narrationPromptTemplate, domain.FormatCoordinate(c.Latitude), domain.FormatCoordinate(c.Longitude), language)
}

func placeNamePrompt(c domain.Coordinates) string {
	return fmt.Sprintf(placeNamePromptTemplate, domain.FormatCoordinate(c.Latitude), domain.FormatCoordinate(c.Longitude))
}

// BuildChatPrompt assembles the provider prompt for one exchange: the guide
// persona anchored to the context, then every turn of the log in insertion
// order. It depends on nothing but its arguments.
func BuildChatPrompt(c domain.ConversationContext, turns []domain.Turn, language string) []domain.Message {
	messages := make([]domain.Message, 0, len(turns)+1)
	messages = append(messages, domain.Message{
		Role: domain.MessageRoleSystem,
		Text: fmt.Sprintf(guidePersonaTemplate, c.PlaceName, c.Narration, language),
	})

	for _, t := range turns {
		messages = append(messages, domain.Message{
			Role: domain.RoleOf(t.Role),
			Text: t.Content,
		})
	}

	return messages
}

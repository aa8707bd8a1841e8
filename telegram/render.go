package telegram

import (
	"errors"
	"strconv"
	"strings"

	"github.com/surya-d-naidu/HealthCareBot/conversation"
	"github.com/surya-d-naidu/HealthCareBot/modelapi"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `Hello, I'm Dr. Garuda. Pick a topic to begin:
/health - health analysis
/companion - friendly companion
/emergency - emergency support
/clear - forget this conversation`

const defaultPhotoMessage = "Please take a look at this image."

func conversationID(chatID int64) string {
	return "telegram-" + strconv.FormatInt(chatID, 10)
}

func topicForCommand(command string) (conversation.Topic, bool) {
	switch command {
	case "health":
		return conversation.TopicHealthAnalysis, true
	case "companion":
		return conversation.TopicFriendlyCompanion, true
	case "emergency":
		return conversation.TopicEmergencySupport, true
	}
	return "", false
}

func messageKind(m *tgbotapi.Message) string {
	switch {
	case m.Voice != nil:
		return "voice"
	case len(m.Photo) > 0:
		return "photo"
	case m.Text != "":
		return "text"
	}
	return "unsupported"
}

func largestPhoto(sizes []tgbotapi.PhotoSize) (tgbotapi.PhotoSize, bool) {
	if len(sizes) == 0 {
		return tgbotapi.PhotoSize{}, false
	}
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best, true
}

func photoMessage(caption string) string {
	if c := strings.TrimSpace(caption); c != "" {
		return c
	}
	return defaultPhotoMessage
}

// renderReply puts the crisis resources ahead of the model text on
// emergency replies.
func renderReply(reply *conversation.Reply) string {
	if reply.Emergency && reply.Resources != nil {
		return conversation.EmergencyNotice(*reply.Resources) + "\n\n" + reply.Text
	}
	return reply.Text
}

func failureText(err error, reply *conversation.Reply) string {
	switch {
	case errors.Is(err, conversation.ErrTopicMismatch):
		return "This conversation is on a different topic. Use /clear or pick a topic to start over."
	case errors.Is(err, conversation.ErrInvalidInput):
		return helpText
	case reply != nil && reply.Text != "":
		return reply.Text
	}
	return modelapi.APOLOGY_MESSAGE
}

package dispatch

import (
	"time"

	"github.com/mojilabs/mojibridge/internal/classify"
)

// Event is the normalized outbound representation of one processed row.
// It is built per row and handed to the transport immediately; the bridge
// never persists it.
type Event struct {
	EventID string
	ChatID  string
	UserID  string
	Text    string
	TS      time.Time
	FromMe  bool

	// Intent is nil for plain forwarded messages.
	Intent *classify.Intent
}

// route returns the downstream path for the event's intent.
func (e *Event) route() string {
	if e.Intent == nil {
		return "/events/message"
	}
	switch e.Intent.Kind {
	case classify.KindRename:
		return "/events/rename-request"
	case classify.KindStatus:
		return "/events/status-request"
	case classify.KindSocialShare:
		return "/events/social-share"
	case classify.KindInteraction:
		return "/events/interaction-request"
	case classify.KindReactionSticker:
		return "/events/send-sticker"
	case classify.KindSticker:
		return "/events/sticker-request"
	case classify.KindMeme:
		return "/events/meme-request"
	default:
		return "/events/message"
	}
}

// body returns the wire payload for the event's route. Each intent carries
// only its own parameters; the plain message carries text and timing.
func (e *Event) body() any {
	type base struct {
		EventID string `json:"eventId"`
		ChatID  string `json:"chatId"`
		UserID  string `json:"userId"`
	}
	b := base{EventID: e.EventID, ChatID: e.ChatID, UserID: e.UserID}

	if e.Intent == nil {
		return struct {
			base
			Text     string `json:"text"`
			TS       string `json:"ts"`
			IsFromMe bool   `json:"isFromMe"`
		}{b, e.Text, e.TS.Format(time.RFC3339), e.FromMe}
	}

	switch e.Intent.Kind {
	case classify.KindRename:
		return struct {
			base
			NewName string `json:"newName"`
		}{b, e.Intent.NewName}
	case classify.KindInteraction:
		return struct {
			base
			UserMessage string `json:"userMessage"`
		}{b, e.Intent.UserMessage}
	case classify.KindSticker:
		return struct {
			base
			Prompt string `json:"prompt"`
			Style  string `json:"style"`
		}{b, e.Intent.Prompt, e.Intent.Style}
	case classify.KindMeme:
		return struct {
			base
			Topic string `json:"topic"`
		}{b, e.Intent.Topic}
	default:
		// status, social share, reaction sticker: no parameters.
		return b
	}
}

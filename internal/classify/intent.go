package classify

// Kind names a recognized command intent.
type Kind string

const (
	KindRename          Kind = "rename"
	KindStatus          Kind = "status"
	KindSocialShare     Kind = "social_share"
	KindInteraction     Kind = "interaction"
	KindReactionSticker Kind = "reaction_sticker"
	KindSticker         Kind = "sticker"
	KindMeme            Kind = "meme"
	KindPlain           Kind = "plain"
)

// Intent is a structured command extracted from message text. Only the
// fields relevant to the kind are set.
type Intent struct {
	Kind Kind

	NewName     string // rename
	UserMessage string // interaction
	Prompt      string // sticker
	Style       string // sticker
	Topic       string // meme
	Text        string // plain: the unmodified message text
}

// IsCommand reports whether the intent is anything other than a plain
// forwarded message.
func (i *Intent) IsCommand() bool {
	return i.Kind != KindPlain
}

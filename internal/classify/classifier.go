package classify

import (
	"regexp"
	"strings"
)

// Classifier evaluates an ordered list of intent rules over message text.
// Rules are tried highest priority first and the first match wins, so text
// matching several command shapes resolves deterministically by rule order,
// never by pattern specificity or match position.
type Classifier struct {
	rules []rule
}

type rule struct {
	kind     Kind
	patterns []*regexp.Regexp
	extract  func(text string, match []string) *Intent
}

var (
	renamePatterns = compile(
		`@moji\s+name\s+is\s+(.+)`,
		`@moji\s+rename\s+to\s+(.+)`,
		`@moji\s+call\s+me\s+(.+)`,
		`@moji\s+my\s+name\s+is\s+(.+)`,
	)
	statusPatterns = compile(
		`@moji\s+status`,
		`@moji\s+how\s+are\s+you`,
		`@moji\s+info`,
	)
	socialPatterns = compile(
		`@moji\s+share\s+update`,
		`@moji\s+post\s+to\s+twitter`,
		`@moji\s+share\s+to\s+x`,
	)
	interactionPatterns = compile(
		`@moji\s+talk[:\s]*(.+)`,
		`@moji\s+tell\s+me\s+about\s+yourself`,
		`@moji\s+what\s+do\s+you\s+like`,
	)
	reactionPatterns = compile(
		`@moji\s+send\s+sticker`,
	)
	stickerPatterns = compile(
		`@moji\s+sticker[:\s]+(.+)`,
		`@moji\s+make\s+a\s+sticker\s+of\s+(.+)`,
		`@moji\s+generate\s+sticker[:\s]+(.+)`,
	)
	memePatterns = compile(
		`@moji\s+share\s+a\s+meme\s+about\s+(.+)`,
		`@moji\s+meme\s+me[:\s]+(.+)`,
		`moji\s+meme[:\s]+(.+)`,
	)

	stylePattern = regexp.MustCompile(`(?i)(cute|funny|sad|excited)`)
	mojiPrefix   = regexp.MustCompile(`(?i)@moji\s+`)
)

// DefaultStyle is applied when a sticker prompt carries no style tag.
const DefaultStyle = "cute"

// New builds the classifier with the standard rule priority:
// rename > status > social share > interaction > reaction sticker >
// sticker > meme > plain.
func New() *Classifier {
	return &Classifier{rules: []rule{
		{KindRename, renamePatterns, func(_ string, m []string) *Intent {
			return &Intent{Kind: KindRename, NewName: strings.TrimSpace(m[1])}
		}},
		{KindStatus, statusPatterns, nil},
		{KindSocialShare, socialPatterns, nil},
		{KindInteraction, interactionPatterns, func(text string, m []string) *Intent {
			// Phrasings without an explicit object consume the whole
			// trailing text after the mention.
			msg := ""
			if len(m) > 1 {
				msg = strings.TrimSpace(m[1])
			}
			if msg == "" {
				msg = strings.TrimSpace(mojiPrefix.ReplaceAllString(text, ""))
			}
			return &Intent{Kind: KindInteraction, UserMessage: msg}
		}},
		{KindReactionSticker, reactionPatterns, nil},
		{KindSticker, stickerPatterns, func(_ string, m []string) *Intent {
			prompt := strings.TrimSpace(m[1])
			style := DefaultStyle
			if sm := stylePattern.FindStringSubmatch(prompt); sm != nil {
				style = strings.ToLower(sm[1])
			}
			return &Intent{Kind: KindSticker, Prompt: prompt, Style: style}
		}},
		{KindMeme, memePatterns, func(_ string, m []string) *Intent {
			return &Intent{Kind: KindMeme, Topic: strings.TrimSpace(m[1])}
		}},
	}}
}

// Classify maps message text to an intent. Falls through to a plain message
// carrying the unmodified text when no command pattern matches.
func (c *Classifier) Classify(text string) *Intent {
	for _, r := range c.rules {
		for _, p := range r.patterns {
			m := p.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if r.extract == nil {
				return &Intent{Kind: r.kind}
			}
			return r.extract(text, m)
		}
	}
	return &Intent{Kind: KindPlain, Text: text}
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

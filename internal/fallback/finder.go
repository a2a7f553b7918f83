// Package fallback retrieves message text through the platform automation
// layer when the primary store never materializes it. This happens for
// self-authored rows: the row appears in the store immediately but its text
// column can stay NULL forever.
package fallback

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mojilabs/mojibridge/internal/store"
	"go.uber.org/zap"
)

// Timeout is the hard bound on one automation lookup. The osascript call
// talks to a GUI process and can hang indefinitely; exceeding the bound
// kills the process so the poll loop never stalls on it.
const Timeout = 5 * time.Second

// notFound is returned by the script when no usable text exists.
const notFound = "NOT_FOUND"

// Finder runs automation lookups against the Messages application.
type Finder struct {
	bin     string
	args    func(script string) []string
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a finder backed by osascript.
func New(logger *zap.Logger) *Finder {
	return &Finder{
		bin:     "osascript",
		args:    func(script string) []string { return []string{"-e", script} },
		timeout: Timeout,
		logger:  logger,
	}
}

// FindText attempts to recover the text of a row by asking the Messages
// application for the most recent non-empty message in the chat. Invoked at
// most once per ambiguous row; the caller enforces that.
func (f *Finder) FindText(ctx context.Context, chat store.Chat, row store.MessageRow) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	script := lastMessageScript(chat)
	out, err := exec.CommandContext(ctx, f.bin, f.args(script)...).Output()
	if ctx.Err() == context.DeadlineExceeded {
		f.logger.Warn("automation lookup timed out",
			zap.Int64("row_id", row.RowID),
			zap.Duration("timeout", f.timeout))
		return "", fmt.Errorf("automation lookup timed out after %s", f.timeout)
	}
	if err != nil {
		return "", fmt.Errorf("automation lookup: %w", err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" || text == notFound || strings.HasPrefix(text, "ERROR") {
		return "", fmt.Errorf("automation lookup found no text for row %d", row.RowID)
	}
	return text, nil
}

// lastMessageScript builds the AppleScript that walks the chat's recent
// messages and returns the newest one with non-empty text.
func lastMessageScript(chat store.Chat) string {
	target := chat.Identifier
	if target == "" {
		target = chat.GUID
	}
	variants := handleVariants(target)

	var cond []string
	for _, v := range variants {
		cond = append(cond, fmt.Sprintf("participantId contains %q", v))
	}

	return fmt.Sprintf(`
tell application "Messages"
	set targetChat to null
	set targetService to 1st service whose service type = iMessage
	repeat with aChat in chats of targetService
		try
			repeat with aParticipant in participants of aChat
				set participantId to id of aParticipant
				if %s then
					set targetChat to aChat
					exit repeat
				end if
			end repeat
			if targetChat is not null then exit repeat
		end try
	end repeat
	if targetChat is not null then
		set chatMessages to messages of targetChat
		set messageCount to count of chatMessages
		set msgIndex to messageCount
		repeat while msgIndex > 0 and msgIndex > (messageCount - 5)
			try
				set msgText to text of item msgIndex of chatMessages
				if msgText is not "" and msgText is not missing value then return msgText
			end try
			set msgIndex to msgIndex - 1
		end repeat
	end if
	return "%s"
end tell`, strings.Join(cond, " or "), notFound)
}

// handleVariants returns the identifier in the formats the automation layer
// may report participants in: raw, without "+", without country code, and
// digits only.
func handleVariants(identifier string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	add(identifier)
	add(strings.ReplaceAll(strings.ReplaceAll(identifier, "+", ""), " ", ""))
	add(strings.ReplaceAll(strings.TrimPrefix(identifier, "+1"), " ", ""))
	add(strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, identifier))
	return out
}

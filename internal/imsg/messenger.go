// Package imsg sends outbound messages through the platform automation
// layer. The bridge itself never replies to rows; this is the control
// surface the decision service calls back into.
package imsg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// sendTimeout bounds one automation send. Sends go through the same GUI
// process as lookups and can hang the same way.
const sendTimeout = 5 * time.Second

// Messenger delivers outbound text and files to a chat.
type Messenger interface {
	SendText(ctx context.Context, chatID, text string) error
	SendFile(ctx context.Context, chatID, path string) error
}

// Scripted is an osascript-backed Messenger.
type Scripted struct {
	bin     string
	args    func(script string) []string
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a messenger backed by osascript.
func New(logger *zap.Logger) *Scripted {
	return &Scripted{
		bin:     "osascript",
		args:    func(script string) []string { return []string{"-e", script} },
		timeout: sendTimeout,
		logger:  logger,
	}
}

// SendText delivers a text message to the chat.
func (s *Scripted) SendText(ctx context.Context, chatID, text string) error {
	script := fmt.Sprintf(`
tell application "Messages"
	set targetService to 1st service whose service type = iMessage
	set targetChat to a reference to chat id %q of targetService
	send %q to targetChat
end tell`, chatID, text)
	return s.run(ctx, chatID, script)
}

// SendFile delivers a file attachment to the chat. The path must be local
// and readable by the Messages application.
func (s *Scripted) SendFile(ctx context.Context, chatID, path string) error {
	script := fmt.Sprintf(`
tell application "Messages"
	set targetService to 1st service whose service type = iMessage
	set targetChat to a reference to chat id %q of targetService
	set theFile to POSIX file %q
	send theFile to targetChat
end tell`, chatID, path)
	return s.run(ctx, chatID, script)
}

func (s *Scripted) run(ctx context.Context, chatID, script string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, s.bin, s.args(script)...).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("automation send timed out after %s", s.timeout)
	}
	if err != nil {
		return fmt.Errorf("automation send: %w: %s", err, strings.TrimSpace(string(out)))
	}

	s.logger.Info("message sent", zap.String("chat_id", chatID))
	return nil
}

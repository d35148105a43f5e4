// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/kchat/internal/model"
	"github.com/jeranaias/kchat/internal/util"
)

// DefaultChunkRunes is how many runes Echo emits per chunk.
const DefaultChunkRunes = 4

// titleWidth bounds generated titles.
const titleWidth = 32

// ErrNoPrompt is returned when there is nothing to reply to.
var ErrNoPrompt = errors.New("no prompt to reply to")

// =============================================================================
// RESPONDER INTERFACE
// =============================================================================

// Chunk is one piece of a streamed reply. A chunk with a non-nil Err ends
// the stream.
type Chunk struct {
	Text string
	Err  error
}

// Responder produces assistant replies.
type Responder interface {
	// Stream starts a reply to prompts. The channel is closed when the
	// reply is complete or ctx is cancelled.
	Stream(ctx context.Context, prompts []model.Prompt) (<-chan Chunk, error)

	// Title names a conversation from its prompts.
	Title(ctx context.Context, prompts []model.Prompt) (string, error)
}

// =============================================================================
// ECHO RESPONDER
// =============================================================================

// Echo replies by quoting the newest user prompt.
type Echo struct {
	delay      time.Duration
	chunkRunes int
}

// NewEcho creates an echo responder that waits delay between chunks.
func NewEcho(delay time.Duration) *Echo {
	if delay < 0 {
		delay = 0
	}
	return &Echo{delay: delay, chunkRunes: DefaultChunkRunes}
}

// Delay returns the pause between chunks.
func (e *Echo) Delay() time.Duration {
	return e.delay
}

// Reply builds the full reply text for prompts.
func (e *Echo) Reply(prompts []model.Prompt) (string, error) {
	last := lastUserPrompt(prompts)
	if last == "" {
		return "", ErrNoPrompt
	}
	noun := "message"
	if len(prompts) != 1 {
		noun = "messages"
	}
	return fmt.Sprintf("You said (with %d %s of context):\n\n%s", len(prompts), noun, last), nil
}

// Stream implements Responder.
func (e *Echo) Stream(ctx context.Context, prompts []model.Prompt) (<-chan Chunk, error) {
	reply, err := e.Reply(prompts)
	if err != nil {
		return nil, err
	}
	chunks := Split(reply, e.chunkRunes)

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for i, text := range chunks {
			if i > 0 && e.delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(e.delay):
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- Chunk{Text: text}:
			}
		}
	}()
	return out, nil
}

// Title implements Responder. The title is the first user prompt on one
// line, cut to fit the sidebar.
func (e *Echo) Title(ctx context.Context, prompts []model.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, p := range prompts {
		if p.Role != model.SenderUser.String() {
			continue
		}
		if line := strings.Join(strings.Fields(p.Content), " "); line != "" {
			return util.TruncateWidth(line, titleWidth), nil
		}
	}
	return "", ErrNoPrompt
}

func lastUserPrompt(prompts []model.Prompt) string {
	for i := len(prompts) - 1; i >= 0; i-- {
		if prompts[i].Role == model.SenderUser.String() && strings.TrimSpace(prompts[i].Content) != "" {
			return prompts[i].Content
		}
	}
	return ""
}

// Split cuts text into pieces of at most n runes.
func Split(text string, n int) []string {
	if n <= 0 {
		n = DefaultChunkRunes
	}
	runes := []rune(text)
	out := make([]string, 0, (len(runes)+n-1)/n)
	for start := 0; start < len(runes); start += n {
		end := min(start+n, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

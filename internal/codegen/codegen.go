// Package codegen turns natural-language prompts into code snippets using an
// LLM. Replies must be a JSON object with "code" and "description" keys.
package codegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"nerdbook/internal/logging"
)

var (
	// ErrEmptyPrompt is returned when the prompt is blank.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrInvalidResponse is returned when a reply is not a usable snippet.
	ErrInvalidResponse = errors.New("invalid response from code generator")
)

// Snippet is generated code with a short explanation.
type Snippet struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Generator maps a prompt to a snippet.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Snippet, error)
}

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Completer is an LLM provider: it answers a conversation under a system prompt.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
	Name() string
}

// =============================================================================
// HISTORY
// =============================================================================

// DefaultHistoryLimit is the number of turns kept when no limit is configured.
const DefaultHistoryLimit = 5

// History is a bounded conversation. Only the most recent turns are kept.
type History struct {
	mu       sync.Mutex
	limit    int
	messages []Message
}

// NewHistory creates a history keeping at most limit turns.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Add appends a turn and truncates to the limit.
func (h *History) Add(role Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, Message{Role: role, Content: content})
	if len(h.messages) > h.limit {
		h.messages = append([]Message(nil), h.messages[len(h.messages)-h.limit:]...)
	}
}

// Messages returns a copy of the kept turns, oldest first.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// With returns the kept turns followed by turns, truncated to the limit,
// without recording anything.
func (h *History) With(turns ...Message) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, 0, len(h.messages)+len(turns))
	out = append(out, h.messages...)
	out = append(out, turns...)
	if len(out) > h.limit {
		out = out[len(out)-h.limit:]
	}
	return out
}

// Len returns the number of kept turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Clear forgets every turn.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// =============================================================================
// BOT
// =============================================================================

// Bot is a Generator backed by a Completer. It keeps the conversation so
// follow-up prompts can refer to earlier snippets, and asks once more with a
// "PARSE ERROR" turn when a reply cannot be parsed.
type Bot struct {
	completer Completer
	system    string
	history   *History

	// serializes conversations so turns are not interleaved
	mu sync.Mutex
}

// NewBot creates a bot producing code in language ("javascript" or "go").
func NewBot(c Completer, language string, historyLimit int) *Bot {
	return &Bot{
		completer: c,
		system:    SystemPrompt(language),
		history:   NewHistory(historyLimit),
	}
}

// History exposes the conversation.
func (b *Bot) History() *History { return b.history }

// Generate asks the completer for a snippet.
func (b *Bot) Generate(ctx context.Context, prompt string) (Snippet, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Snippet{}, ErrEmptyPrompt
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryCodegen, "generate")
	defer timer.Stop()

	// A turn is recorded only together with its reply, so a failed completion
	// never leaves two user turns in a row.
	reply, err := b.completer.Complete(ctx, b.system, b.history.With(Message{Role: RoleUser, Content: prompt}))
	if err != nil {
		logging.CodegenError("[%s] completion failed: %v", b.completer.Name(), err)
		return Snippet{}, err
	}
	b.history.Add(RoleUser, prompt)
	b.history.Add(RoleAssistant, reply)

	snippet, perr := ParseSnippet(reply)
	if perr == nil {
		logging.Codegen("[%s] generated %d bytes of code", b.completer.Name(), len(snippet.Code))
		return snippet, nil
	}

	logging.CodegenDebug("[%s] unparseable reply, retrying: %v", b.completer.Name(), perr)
	repair := "PARSE ERROR: " + perr.Error()
	reply, err = b.completer.Complete(ctx, b.system, b.history.With(Message{Role: RoleUser, Content: repair}))
	if err != nil {
		logging.CodegenError("[%s] repair completion failed: %v", b.completer.Name(), err)
		return Snippet{}, err
	}
	b.history.Add(RoleUser, repair)
	b.history.Add(RoleAssistant, reply)

	snippet, perr = ParseSnippet(reply)
	if perr != nil {
		logging.CodegenError("[%s] repair reply unparseable: %v", b.completer.Name(), perr)
		return Snippet{}, perr
	}
	return snippet, nil
}

// ParseSnippet decodes a reply. A surrounding Markdown code fence is accepted.
func ParseSnippet(reply string) (Snippet, error) {
	text := stripFence(strings.TrimSpace(reply))
	if text == "" {
		return Snippet{}, fmt.Errorf("%w: empty reply", ErrInvalidResponse)
	}

	var s Snippet
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return Snippet{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if strings.TrimSpace(s.Code) == "" || strings.TrimSpace(s.Description) == "" {
		return Snippet{}, fmt.Errorf(`%w: response does not include required fields: "code" and "description"`, ErrInvalidResponse)
	}
	return s, nil
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// drop the info string ("json")
		text = text[nl+1:]
	}
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}

// conversation drops leading assistant turns; providers expect the
// conversation to open with the user.
func conversation(messages []Message) []Message {
	for len(messages) > 0 && messages[0].Role != RoleUser {
		messages = messages[1:]
	}
	return messages
}

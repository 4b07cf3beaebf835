package compaction

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/youssefsiam38/ctxoffload/types"
)

// BoundaryKind names a way of choosing the compaction window
type BoundaryKind string

const (
	// BoundarySinceLastText compacts only what follows the most recent user or
	// assistant text turn. This is the default.
	BoundarySinceLastText BoundaryKind = "since-last-assistant-or-user-text"

	// BoundaryEntireConversation compacts everything but the final message.
	BoundaryEntireConversation BoundaryKind = "entire-conversation"

	// BoundaryFirstNMessages compacts everything but the final message and
	// the N messages before it.
	BoundaryFirstNMessages BoundaryKind = "first-n-messages"
)

// Boundary selects the compaction window. The zero value is SinceLastText.
type Boundary struct {
	kind BoundaryKind
	n    int
}

// SinceLastText returns the default boundary, equal to the zero value
func SinceLastText() Boundary {
	return Boundary{}
}

// EntireConversation returns a boundary covering the whole transcript
func EntireConversation() Boundary {
	return Boundary{kind: BoundaryEntireConversation}
}

// FirstNMessages returns a boundary that keeps the latest n messages before
// the final one intact. Negative n is treated as 0.
func FirstNMessages(n int) Boundary {
	if n < 0 {
		n = 0
	}
	return Boundary{kind: BoundaryFirstNMessages, n: n}
}

// Kind returns the boundary kind
func (b Boundary) Kind() BoundaryKind {
	if b.kind == "" {
		return BoundarySinceLastText
	}
	return b.kind
}

// N returns the message count of a FirstNMessages boundary
func (b Boundary) N() int {
	return b.n
}

// String renders the boundary in the form accepted by ParseBoundary
func (b Boundary) String() string {
	if b.Kind() == BoundaryFirstNMessages {
		return fmt.Sprintf("%s:%d", BoundaryFirstNMessages, b.n)
	}
	return string(b.Kind())
}

// MarshalText implements encoding.TextMarshaler
func (b Boundary) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (b *Boundary) UnmarshalText(text []byte) error {
	parsed, err := ParseBoundary(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBoundary parses "since-last-assistant-or-user-text",
// "entire-conversation" or "first-n-messages:<n>". An empty string yields
// the default boundary.
func ParseBoundary(s string) (Boundary, error) {
	s = strings.TrimSpace(s)
	switch BoundaryKind(s) {
	case "", BoundarySinceLastText:
		return SinceLastText(), nil
	case BoundaryEntireConversation:
		return EntireConversation(), nil
	}

	kind, count, ok := strings.Cut(s, ":")
	if !ok || BoundaryKind(kind) != BoundaryFirstNMessages {
		return Boundary{}, fmt.Errorf("%w: %q", ErrInvalidBoundary, s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil {
		return Boundary{}, fmt.Errorf("%w: %q: %v", ErrInvalidBoundary, s, err)
	}
	return FirstNMessages(n), nil
}

// Window is the half-open message range [Start, EndExclusive) eligible for rewriting
type Window struct {
	Start        int `json:"start"`
	EndExclusive int `json:"endExclusive"`
}

// Len returns the number of messages in the window
func (w Window) Len() int {
	if w.EndExclusive <= w.Start {
		return 0
	}
	return w.EndExclusive - w.Start
}

// Contains reports whether index i is inside the window
func (w Window) Contains(i int) bool {
	return i >= w.Start && i < w.EndExclusive
}

// ResolveWindow computes the compaction window for messages. The final
// message is never part of the window.
func ResolveWindow(messages []types.Message, boundary Boundary) Window {
	l := len(messages)
	if l <= 1 {
		return Window{}
	}

	switch boundary.Kind() {
	case BoundaryFirstNMessages:
		end := l - boundary.n - 1
		if end > l-1 {
			end = l - 1
		}
		if end < 0 {
			end = 0
		}
		return Window{Start: 0, EndExclusive: end}

	case BoundaryEntireConversation:
		return Window{Start: 0, EndExclusive: l - 1}

	default:
		start := 0
		for i := l - 2; i >= 0; i-- {
			m := messages[i]
			if (m.Role == types.RoleUser || m.Role == types.RoleAssistant) && m.HasText() {
				start = i + 1
				break
			}
		}
		return Window{Start: start, EndExclusive: l - 1}
	}
}

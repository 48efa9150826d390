// Package notify delivers blocking user notices raised by the navigation
// guard.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/skala/skip-session/internal/ports"
)

// Writer prints each notice on its own line.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
	logger *slog.Logger
}

var _ ports.Notifier = (*Writer)(nil)

// NewWriter returns a Writer that prints to w with an optional prefix.
func NewWriter(w io.Writer, prefix string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{w: w, prefix: prefix, logger: logger}
}

func (n *Writer) Notify(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.w, "%s%s\n", n.prefix, message); err != nil {
		n.logger.WarnContext(ctx, "notice not delivered", "error", err)
	}
}

// Func adapts a function to ports.Notifier (useful for tests).
type Func func(ctx context.Context, message string)

// Notify implements ports.Notifier.
func (f Func) Notify(ctx context.Context, message string) {
	if f == nil {
		return
	}
	f(ctx, message)
}

// Fanout delivers every notice to each notifier in order.
type Fanout []ports.Notifier

// Notify implements ports.Notifier.
func (f Fanout) Notify(ctx context.Context, message string) {
	for _, n := range f {
		if n != nil {
			n.Notify(ctx, message)
		}
	}
}

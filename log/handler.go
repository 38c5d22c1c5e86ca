package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

const timeFormat = "01-02|15:04:05.000"

const (
	colorRed     = 31
	colorYellow  = 33
	colorGreen   = 32
	colorCyan    = 36
	colorMagenta = 35
)

// TerminalHandler prints one human readable line per record:
//
//	INFO [01-02|15:04:05.000] message        key=value key=value
type TerminalHandler struct {
	mu       *sync.Mutex
	wr       io.Writer
	lvl      slog.Level
	useColor bool
	attrs    []slog.Attr
}

// NewTerminalHandlerWithLevel returns a handler that drops records below lvl.
func NewTerminalHandlerWithLevel(wr io.Writer, lvl slog.Level, useColor bool) *TerminalHandler {
	return &TerminalHandler{mu: new(sync.Mutex), wr: wr, lvl: lvl, useColor: useColor}
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.lvl
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	buf := &bytes.Buffer{}
	lvl := LevelAlignedString(r.Level)
	if h.useColor {
		fmt.Fprintf(buf, "\x1b[%dm%s\x1b[0m", levelColor(r.Level), lvl)
	} else {
		buf.WriteString(lvl)
	}
	fmt.Fprintf(buf, "[%s] %-40s", r.Time.Format(timeFormat), r.Message)
	for _, a := range h.attrs {
		writeAttr(buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(buf, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.wr.Write(buf.Bytes())
	return err
}

func writeAttr(buf *bytes.Buffer, a slog.Attr) {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindUint64:
		fmt.Fprintf(buf, " %s=%#x", a.Key, v.Uint64())
	case slog.KindTime:
		fmt.Fprintf(buf, " %s=%s", a.Key, v.Time().Format(time.RFC3339))
	default:
		fmt.Fprintf(buf, " %s=%v", a.Key, v.Any())
	}
}

func levelColor(l slog.Level) int {
	switch {
	case l >= LevelCrit:
		return colorMagenta
	case l >= slog.LevelError:
		return colorRed
	case l >= slog.LevelWarn:
		return colorYellow
	case l >= slog.LevelInfo:
		return colorGreen
	default:
		return colorCyan
	}
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TerminalHandler{
		mu:       h.mu,
		wr:       h.wr,
		lvl:      h.lvl,
		useColor: h.useColor,
		attrs:    append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// WithGroup is not supported; groups are flattened.
func (h *TerminalHandler) WithGroup(string) slog.Handler {
	return h
}

type discardHandler struct{}

// DiscardHandler returns a no-op handler
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

func (h *discardHandler) Handle(_ context.Context, r slog.Record) error {
	return nil
}

func (h *discardHandler) Enabled(_ context.Context, level slog.Level) bool {
	return false
}

func (h *discardHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &discardHandler{}
}

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiCodeReset     = "\033[0m"
	ansiCodeRed       = "\033[31m"
	ansiCodeGreen     = "\033[32m"
	ansiCodeYellow    = "\033[33m"
	ansiCodeCyan      = "\033[36m"
	ansiCodeGray      = "\033[90m"
	ansiCodeUnderline = "\033[4m"
)

//nolint:gochecknoglobals
var ansiCodeMap = map[slog.Level]string{
	slog.LevelDebug: ansiCodeCyan,
	slog.LevelInfo:  ansiCodeGreen,
	slog.LevelWarn:  ansiCodeYellow,
	slog.LevelError: ansiCodeRed,
}

// ConsoleHandler implements slog.Handler with a human-readable, optionally colored,
// one record per line format. Records are attributed to the logger named by the
// "logger" attribute, which PkgLevels can raise or lower per dotted name prefix.
type ConsoleHandler struct {
	// Output is the destination for log output (typically os.Stdout or os.Stderr)
	Output io.Writer
	// Level is the minimum level for log records to be processed
	Level slog.Leveler
	// PkgLevels maps logger name prefixes to minimum log levels
	PkgLevels map[string]slog.Level
	// Color enables ANSI escape codes
	Color bool
	// Source appends the calling function and file to each record
	Source bool

	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// NewConsoleHandler creates a ConsoleHandler writing to output. Colors are enabled
// according to mode: "always", "never", or "auto" for terminals only.
func NewConsoleHandler(output io.Writer, level slog.Leveler, pkgLevels map[string]slog.Level, mode string) *ConsoleHandler {
	//nolint:exhaustruct
	return &ConsoleHandler{
		Output:    output,
		Level:     level,
		PkgLevels: pkgLevels,
		Color:     useColor(output, mode),
		Source:    true,
	}
}

func useColor(output io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}

	file, ok := output.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	if r.Level < h.levelFor(loggerName(attrs)) {
		return nil
	}

	var sb strings.Builder

	sb.WriteString(h.paint(ansiCodeGray, r.Time.Format("15:04:05.000000")))
	sb.WriteString(" " + h.paint(ansiCodeMap[r.Level], "["+r.Level.String()+"]"))
	sb.WriteString(" " + r.Message)

	if len(attrs) > 0 {
		var prefix string
		if len(h.groups) > 0 {
			prefix = strings.Join(h.groups, ".") + "."
		}

		sb.WriteString(" " + h.paint(ansiCodeGray, "|"))
		h.renderAttrs(&sb, prefix, attrs)
	}

	if h.Source && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		fn := frame.Function[strings.LastIndexByte(frame.Function, '/')+1:]

		sb.WriteString("\n-> " + h.paint(ansiCodeGray, fn+"()"))
		sb.WriteString(" in " + h.paint(ansiCodeUnderline, frame.File+":"+strconv.Itoa(frame.Line)))
	}

	_, err := fmt.Fprintln(h.Output, sb.String())

	return err //nolint:wrapcheck
}

// levelFor returns the minimum level for the logger name, taking the most specific
// PkgLevels entry that is a dotted prefix of name. The empty key matches every name.
func (h *ConsoleHandler) levelFor(name string) slog.Level {
	for key := name; ; {
		if level, ok := h.PkgLevels[key]; ok {
			return level
		}

		if key == "" {
			return h.Level.Level()
		}

		if i := strings.LastIndexByte(key, '.'); i >= 0 {
			key = key[:i]
		} else {
			key = ""
		}
	}
}

// minLevel is the lowest level any logger may emit at.
func (h *ConsoleHandler) minLevel() slog.Level {
	level := h.Level.Level()

	for _, pkgLevel := range h.PkgLevels {
		level = min(level, pkgLevel)
	}

	return level
}

func (h *ConsoleHandler) paint(code, s string) string {
	if !h.Color || code == "" {
		return s
	}

	return code + s + ansiCodeReset
}

func (h *ConsoleHandler) renderAttrs(sb *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			h.renderAttrs(sb, prefix+attr.Key+".", attr.Value.Group())

			continue
		}

		sb.WriteString(" " + prefix + attr.Key + "=" + h.paint(ansiCodeGray, attr.Value.String()))
	}
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	clone := *h
	clone.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)

	return &clone
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	clone := *h
	clone.groups = append(h.groups[:len(h.groups):len(h.groups)], name)

	return &clone
}

// Enabled implements slog.Handler.Enabled.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel()
}

func loggerName(attrs []slog.Attr) string {
	for _, attr := range attrs {
		if attr.Key == "logger" {
			return attr.Value.String()
		}
	}

	return ""
}

package context

import (
	"context"
)

const contextKeyCommand = contextKey("command")

// CommandFromContext extracts the name of the command being executed from the context.
// Returns the command name and true if present, or empty string and false if not present.
func CommandFromContext(ctx context.Context) (string, bool) {
	command, ok := ctx.Value(contextKeyCommand).(string)

	return command, ok
}

// WithCommand creates a new context carrying the name of the command being executed,
// so that every log record emitted while serving it can be attributed.
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, contextKeyCommand, command)
}

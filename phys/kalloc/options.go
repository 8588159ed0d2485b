package kalloc

import (
	"io"
	"log/slog"
	"os"
)

// logEnvVar enables debug logging to stderr when set and no Logger is given.
const logEnvVar = "PAGEKIT_LOG_ALLOC"

// Options configures an Allocator. The zero value and nil are both valid
// and select the defaults documented on each field.
type Options struct {
	// Fatal receives precondition violations.
	// Default: Halt
	Fatal FatalHandler

	// Logger receives allocator events (boot range, exhaustion, copy-on-write
	// copies, violations).
	// Default: discard, or a debug-level stderr logger when PAGEKIT_LOG_ALLOC is set
	Logger *slog.Logger

	// FatalOnCowOOM routes an out-of-memory CowAlloc through Fatal instead
	// of returning ErrOutOfMemory. Use it for fault handlers that have no
	// way to back out of a half-handled fault.
	// Default: false
	FatalOnCowOOM bool
}

// withDefaults returns a copy of o with unset fields filled in.
func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Fatal == nil {
		out.Fatal = Halt
	}
	if out.Logger == nil {
		out.Logger = defaultLogger()
	}
	return out
}

func defaultLogger() *slog.Logger {
	if os.Getenv(logEnvVar) == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

package remote

import (
	"context"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/juls0730/fluxops/models"
	"go.uber.org/zap"
)

// Quote escapes a single value for interpolation into a POSIX shell command.
func Quote(s string) string {
	return shellescape.Quote(s)
}

// Join builds a command line from a program name and its arguments, quoting
// each of them.
func Join(name string, args ...string) string {
	return shellescape.QuoteCommand(append([]string{name}, args...))
}

func And(parts ...string) string {
	return joinNonEmpty(" && ", parts)
}

func Or(parts ...string) string {
	return joinNonEmpty(" || ", parts)
}

func joinNonEmpty(sep string, parts []string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, sep)
}

func InDir(dir, command string) string {
	return "cd " + Quote(dir) + " && " + command
}

// Privileged prefixes command with sudo unless the server user is root.
func Privileged(server models.Server, command string) string {
	if server.IsRoot() {
		return command
	}

	return "sudo " + command
}

func WithStderr(command string) string {
	return command + " 2>&1"
}

// Step is one opportunistic sub-operation of a larger action.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// BestEffort runs every step in order. A failing step is logged and skipped,
// it never stops the steps after it. The failures are returned for callers
// that want to report them.
func BestEffort(ctx context.Context, logger *zap.SugaredLogger, steps ...Step) []error {
	var failures []error
	for _, step := range steps {
		if err := step.Run(ctx); err != nil {
			logger.Debugw("Best-effort step failed", "step", step.Name, "error", err)
			failures = append(failures, err)
		}
	}

	return failures
}

package onboard

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Resolver supplies a value the user did not pass as a flag or env var.
type Resolver interface {
	Resolve(label, def string) (string, error)
}

// Chooser is implemented by resolvers that can offer a fixed list of options.
type Chooser interface {
	Choose(label string, options []string, def string) (string, error)
}

// Waiter is implemented by resolvers that can show progress around a slow call.
type Waiter interface {
	Wait(label string, fn func() error) error
}

// MissingValueError is returned when a value is required but nobody can be asked.
type MissingValueError struct {
	Label string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("missing required value: %s (run interactively or pass flags)", e.Label)
}

// NonInteractiveResolver fails for every value, default or not.
type NonInteractiveResolver struct{}

func (NonInteractiveResolver) Resolve(label, _ string) (string, error) {
	return "", &MissingValueError{Label: label}
}

// DefaultResolver prompts on a terminal and refuses otherwise.
func DefaultResolver(in *os.File, out io.Writer) Resolver {
	fd := in.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return NewPromptResolver(in, out)
	}
	return NonInteractiveResolver{}
}

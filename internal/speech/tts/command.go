package tts

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoCommand is returned when a Command renderer has nothing to run.
var ErrNoCommand = errors.New("speech command is empty")

// Command renders text with a local program that reads the text on stdin,
// for example "festival --tts".
type Command struct {
	name string
	args []string
}

// NewCommand creates a renderer running argv.
func NewCommand(argv []string) (*Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrNoCommand
	}

	return &Command{
		name: argv[0],
		args: argv[1:],
	}, nil
}

// Render runs the command and waits for it to exit. The process is killed when ctx is done.
func (c *Command) Render(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, c.name, c.args...) //nolint:gosec // The command comes from the operator's configuration.
	cmd.Stdin = strings.NewReader(text)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("%s failed: %w: %s", c.name, err, strings.TrimSpace(string(output)))
	}

	return nil
}

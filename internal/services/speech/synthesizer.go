package speech

import (
	"context"
	"fmt"
	"strings"

	"echopath/internal/logger"
	"echopath/internal/utils"
)

// Synthesizer turns one sentence into audible speech. Speak returns once
// playback has finished or failed.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
	Name() string
}

// Compile-time interface checks.
var (
	_ Synthesizer = (*Command)(nil)
	_ Synthesizer = (*NoOp)(nil)
)

// Command speaks through a local text-to-speech binary.
type Command struct {
	engine string
	voice  string
	run    func(ctx context.Context, name string, args ...string) (string, error)
}

// NewCommand supports say (macOS), espeak, espeak-ng and spd-say.
func NewCommand(engine, voice string) (*Command, error) {
	switch engine {
	case "say", "espeak", "espeak-ng", "spd-say":
	default:
		return nil, fmt.Errorf("unsupported speech engine: %s", engine)
	}
	return &Command{engine: engine, voice: voice, run: utils.RunCommand}, nil
}

func (c *Command) Name() string {
	return c.engine
}

func (c *Command) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty text")
	}
	if _, err := c.run(ctx, c.engine, c.args(text)...); err != nil {
		return fmt.Errorf("%s: %w", c.engine, err)
	}
	return nil
}

func (c *Command) args(text string) []string {
	// Keep a leading dash from being parsed as a flag.
	if strings.HasPrefix(text, "-") {
		text = " " + text
	}

	var args []string
	switch c.engine {
	case "say":
		if c.voice != "" {
			args = append(args, "-v", c.voice)
		}
	case "espeak", "espeak-ng":
		if c.voice != "" {
			args = append(args, "-v", c.voice)
		}
	case "spd-say":
		// -w blocks until the utterance is finished, like say and espeak do.
		args = append(args, "-w")
		if c.voice != "" {
			args = append(args, "-y", c.voice)
		}
	}
	return append(args, text)
}

// NoOp is a synthesizer that only logs. Used when speech is disabled.
type NoOp struct {
	log *logger.Logger
}

func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

func (n *NoOp) Name() string {
	return "none"
}

func (n *NoOp) Speak(ctx context.Context, text string) error {
	n.log.Info("[TTS] speech disabled, would say %q", text)
	return nil
}

// New selects a synthesizer for the configured engine.
func New(engine, voice string, log *logger.Logger) (Synthesizer, error) {
	if engine == "none" {
		return NewNoOp(log), nil
	}
	return NewCommand(engine, voice)
}

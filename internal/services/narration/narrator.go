package narration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"echopath/internal/logger"
)

// Enqueuer accepts a sentence for speech without blocking.
type Enqueuer interface {
	Enqueue(text string) error
}

// Result describes what was handed to the speech queue.
type Result struct {
	Message  string
	Fallback bool
}

// Narrator turns a prompt into a spoken sentence. On any summarizer failure
// the prompt itself is spoken.
type Narrator struct {
	summarizer Summarizer
	queue      Enqueuer
	persona    string
	timeout    time.Duration
	logger     *logger.Logger
}

// NewNarrator creates a narrator. An empty persona selects DefaultPersona; a
// zero timeout leaves the summarizer unbounded.
func NewNarrator(summarizer Summarizer, queue Enqueuer, persona string, timeout time.Duration, logger *logger.Logger) *Narrator {
	if persona == "" {
		persona = DefaultPersona
	}
	return &Narrator{
		summarizer: summarizer,
		queue:      queue,
		persona:    persona,
		timeout:    timeout,
		logger:     logger,
	}
}

// Narrate summarizes the prompt and enqueues the result. It returns an error
// only when the queue refuses the message.
func (n *Narrator) Narrate(ctx context.Context, prompt string) (Result, error) {
	res := Result{Message: prompt, Fallback: true}

	text, err := n.summarize(ctx, prompt)
	if err != nil {
		n.logger.Warning("[LLM] Error querying %s, speaking prompt instead: %v", n.summarizer.Name(), err)
	} else {
		n.logger.Info("[LLM] Response received: %s", text)
		res = Result{Message: text}
	}

	if err := n.queue.Enqueue(res.Message); err != nil {
		return res, fmt.Errorf("enqueue narration: %w", err)
	}
	return res, nil
}

func (n *Narrator) summarize(ctx context.Context, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summarizer panic: %v", r)
		}
	}()

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	full := n.persona + prompt
	n.logger.Info("[LLM] Full prompt: %s", full)
	text, err = n.summarizer.Summarize(ctx, full)
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (n *Narrator) Summarizer() Summarizer {
	return n.summarizer
}

// Package narration turns the factual object prompt into one short spoken
// sentence using a local language model.
package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"echopath/internal/utils"
)

// DefaultPersona is prepended to every prompt.
const DefaultPersona = "You are a helpful assistant for a smart AI cane project designed for blind or visually impaired people. " +
	"The cane has an integrated camera that detects objects in real-time and informs the user via voice messages to their earbuds. " +
	"Given a list of objects, generate a single, clear sentence of 8 to 10 words max that describes these objects. " +
	"Do not add any details not provided. "

// ErrEmptyResponse is returned when the model produced nothing usable.
var ErrEmptyResponse = errors.New("empty response from summarizer")

// Summarizer produces a sentence for a fully assembled prompt.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
	Name() string
}

var (
	_ Summarizer = (*OllamaCLI)(nil)
	_ Summarizer = (*OllamaHTTP)(nil)
	_ Summarizer = (*Echo)(nil)
)

// OllamaCLI runs `ollama run <model> <prompt>` as a subprocess.
type OllamaCLI struct {
	model  string
	binary string
	run    func(ctx context.Context, name string, args ...string) (string, error)
}

func NewOllamaCLI(model string) *OllamaCLI {
	return &OllamaCLI{model: model, binary: "ollama", run: utils.RunCommand}
}

func (o *OllamaCLI) Name() string {
	return "ollama-cli:" + o.model
}

func (o *OllamaCLI) Summarize(ctx context.Context, prompt string) (string, error) {
	out, err := o.run(ctx, o.binary, "run", o.model, prompt)
	if err != nil {
		return "", fmt.Errorf("ollama run %s: %w", o.model, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// OllamaHTTP calls the generate endpoint of a running Ollama server.
type OllamaHTTP struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaHTTP(baseURL, model string) *OllamaHTTP {
	return &OllamaHTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

func (o *OllamaHTTP) Name() string {
	return "ollama-http:" + o.model
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (o *OllamaHTTP) Summarize(ctx context.Context, prompt string) (string, error) {
	jsonData, err := json.Marshal(generateRequest{Model: o.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Echo never produces a sentence, so the narrator speaks the factual prompt
// verbatim. Used when no model is available.
type Echo struct{}

func (Echo) Name() string { return "none" }

func (Echo) Summarize(ctx context.Context, prompt string) (string, error) {
	return "", ErrEmptyResponse
}

// New selects a summarizer backend: cli, http or none.
func New(backend, model, url string) (Summarizer, error) {
	switch backend {
	case "cli":
		return NewOllamaCLI(model), nil
	case "http":
		return NewOllamaHTTP(url, model), nil
	case "none":
		return Echo{}, nil
	default:
		return nil, fmt.Errorf("unsupported summarizer backend: %s", backend)
	}
}

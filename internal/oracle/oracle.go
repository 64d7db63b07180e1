// Package oracle wraps the optional text-generation backend. Nothing in the
// aggregation or decision path depends on it succeeding.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/runnerr0/focuslens/internal/config"
)

// maxResponseChars bounds what a generated message may contain.
const maxResponseChars = 280

// ErrEmptyResponse is returned when the backend answers with nothing showable.
var ErrEmptyResponse = errors.New("oracle returned no usable text")

// Generator turns a prompt into text. Implementations may fail.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New builds the Generator named by cfg. A disabled oracle yields nil.
func New(cfg config.OracleConfig) (Generator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		o, err := NewOllama(cfg)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}

// Ollama calls a local Ollama server's generate endpoint.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama creates an Ollama client from cfg.
func NewOllama(cfg config.OracleConfig) (*Ollama, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ollama URL not configured")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model not configured")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Ollama{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate sends prompt and returns the trimmed response text.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: o.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	return clean(out.Response)
}

// clean normalizes generated text and rejects responses that cannot be shown.
func clean(s string) (string, error) {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, `"`)
	if s == "" {
		return "", ErrEmptyResponse
	}
	if r := []rune(s); len(r) > maxResponseChars {
		s = strings.TrimSpace(string(r[:maxResponseChars-1])) + "…"
	}
	return s, nil
}

// Ask calls g with a bounded timeout and returns fallback on any failure.
// The second return reports whether the text came from g.
func Ask(ctx context.Context, g Generator, timeout time.Duration, prompt, fallback string) (string, bool) {
	if g == nil {
		return fallback, false
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := g.Generate(ctx, prompt)
		ch <- result{text, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil || strings.TrimSpace(r.text) == "" {
			return fallback, false
		}
		return r.text, true
	case <-ctx.Done():
		return fallback, false
	}
}

// Package execution is a mock code runner for the classroom editor.
// It never compiles nor interprets anything: it recognizes literal
// print calls and otherwise answers with a canned message.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	NoCodeMessage       = "No code to execute."
	DefaultDelay        = time.Second
	unknownLanguageTmpl = "Code executed successfully (%s)"
)

type Request struct {
	Source   string   `json:"source"`
	Language Language `json:"language"`
}

type Result struct {
	Output   string   `json:"output"`
	Language Language `json:"language"`
}

type Engine struct {
	log   *slog.Logger
	delay time.Duration
}

type Option func(*Engine)

// WithDelay sets the simulated compile and run latency.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = d
	}
}

func NewEngine(log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{log: log, delay: DefaultDelay}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute waits for the simulated latency and returns the mock output.
// The only error is the cancellation of ctx.
func (e *Engine) Execute(ctx context.Context, req Request) (Result, error) {
	timer := time.NewTimer(e.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-timer.C:
	}
	result := e.Interpret(req)
	e.log.Debug("Mock execution completed", "language", req.Language, "output_length", len(result.Output))
	return result, nil
}

// Interpret computes the output immediately.
func (e *Engine) Interpret(req Request) Result {
	return Result{Output: interpret(req.Source, req.Language), Language: req.Language}
}

func interpret(source string, language Language) string {
	if strings.TrimSpace(source) == "" {
		return NoCodeMessage
	}
	d, ok := dialects[language.Normalize()]
	if !ok {
		return fmt.Sprintf(unknownLanguageTmpl, language)
	}
	for _, rule := range d.rules {
		if !strings.Contains(source, rule.keyword) {
			continue
		}
		if lines := rule.extract(source); len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
		return rule.greeting
	}
	return d.fallback
}

// Package greeter provides the optional, best-effort personalization used by
// the conversation: a welcome line after the name is captured and a
// completion line once the card is ready.
//
// Two strategies implement wizard.Personalizer:
//   - Static never produces text, so the conversation uses its fixed prompts.
//   - LLM asks a Generator and substitutes a fixed fallback on any failure.
package greeter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/idcard-assistant/internal/tokens"
	"github.com/tjfontaine/idcard-assistant/internal/wizard"
)

const (
	defaultTimeout   = 3 * time.Second
	defaultMaxTokens = 40
	tracerName       = "github.com/tjfontaine/idcard-assistant/internal/greeter"
)

// ErrOverBudget is reported when generated text is longer than the token budget.
var ErrOverBudget = errors.New("generated text exceeds token budget")

// ErrEmptyText is reported when the generator returns nothing usable.
var ErrEmptyText = errors.New("generated text is empty")

// ErrTruncated is reported when the provider stopped mid-reply at its token limit.
var ErrTruncated = errors.New("generated text was cut off")

// Generator produces a short reply for a system/user prompt pair.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// FallbackGreeting is used when a configured greeting cannot be generated.
func FallbackGreeting(name string) string {
	return fmt.Sprintf("Welcome to the ID card generator, %s!", name)
}

// FallbackCompletion is used when a configured completion message cannot be generated.
func FallbackCompletion(name string) string {
	return fmt.Sprintf("All set, %s! Your ID card is ready to download.", name)
}

// Static is the unconfigured strategy.
type Static struct{}

var _ wizard.Personalizer = Static{}

func (Static) Greeting(context.Context, string) (string, bool) { return "", false }

func (Static) Completion(context.Context, wizard.Profile) (string, bool) { return "", false }

// LLM personalizes messages with a Generator. Every call is bounded by the
// configured timeout, even if the Generator ignores its context.
type LLM struct {
	gen       Generator
	timeout   time.Duration
	maxTokens int
	counter   tokens.Counter
	logger    *slog.Logger
	tracer    trace.Tracer
}

var _ wizard.Personalizer = (*LLM)(nil)

// Option configures an LLM personalizer.
type Option func(*LLM)

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) Option {
	return func(l *LLM) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithMaxTokens sets the token budget generated text must fit in.
func WithMaxTokens(n int) Option {
	return func(l *LLM) {
		if n > 0 {
			l.maxTokens = n
		}
	}
}

// WithCounter sets the token counter used to enforce the budget.
func WithCounter(c tokens.Counter) Option {
	return func(l *LLM) {
		if c != nil {
			l.counter = c
		}
	}
}

// WithLogger sets the logger used to report swallowed failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *LLM) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLLM creates the configured strategy.
func NewLLM(gen Generator, opts ...Option) *LLM {
	l := &LLM{
		gen:       gen,
		timeout:   defaultTimeout,
		maxTokens: defaultMaxTokens,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.counter == nil {
		l.counter = tokens.ForModel("")
	}
	return l
}

// Greeting always produces text: generated, or the fixed fallback.
func (l *LLM) Greeting(ctx context.Context, name string) (string, bool) {
	return l.personalize(ctx, "greeting", greetingPrompt(name), FallbackGreeting(name)), true
}

// Completion always produces text: generated, or the fixed fallback.
func (l *LLM) Completion(ctx context.Context, profile wizard.Profile) (string, bool) {
	return l.personalize(ctx, "completion", completionPrompt(profile.Name), FallbackCompletion(profile.Name)), true
}

type generation struct {
	text string
	err  error
}

func (l *LLM) personalize(ctx context.Context, kind, prompt, fallback string) string {
	ctx, span := l.tracer.Start(ctx, "greeter."+kind)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		text, err := l.gen.Generate(ctx, systemPrompt, prompt)
		done <- generation{text: text, err: err}
	}()

	var res generation
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	text, err := l.accept(res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("greeter.fallback", true))
		l.logger.WarnContext(ctx, "personalization failed, using fallback",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return fallback
	}

	span.SetAttributes(attribute.Bool("greeter.fallback", false))
	return text
}

func (l *LLM) accept(res generation) (string, error) {
	if res.err != nil {
		return "", res.err
	}

	text := cleanText(res.text)
	if text == "" {
		return "", ErrEmptyText
	}

	if n := l.counter.Count(text); n > l.maxTokens {
		return "", fmt.Errorf("%w: %d > %d", ErrOverBudget, n, l.maxTokens)
	}

	return text, nil
}

// cleanText trims whitespace and a pair of wrapping quotes models like to add.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

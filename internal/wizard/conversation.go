package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrBusy is returned when an input arrives while another is in flight.
	ErrBusy = errors.New("another input is still being processed")

	// ErrWrongStage is returned when an input does not belong to the current stage.
	ErrWrongStage = errors.New("input not accepted at this stage")

	// ErrEmptyPhoto is returned by SubmitPhoto for an empty reference.
	ErrEmptyPhoto = errors.New("photo reference is empty")
)

// Personalizer supplies optional flavor text. Implementations enforce their
// own time limit and never fail; ok=false means there is nothing to add.
type Personalizer interface {
	Greeting(ctx context.Context, name string) (text string, ok bool)
	Completion(ctx context.Context, profile Profile) (text string, ok bool)
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithLogger sets the logger used for transition logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conversation) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp transcript entries.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) {
		if now != nil {
			c.now = now
		}
	}
}

// Snapshot is a consistent copy of a conversation's observable state.
type Snapshot struct {
	Stage      Stage   `json:"stage"`
	Profile    Profile `json:"profile"`
	Transcript []Entry `json:"transcript"`
	Busy       bool    `json:"busy"`
}

// Conversation drives one guided conversation. Inputs are processed one at a
// time; an input that arrives while another is in flight gets ErrBusy.
type Conversation struct {
	personalizer Personalizer
	logger       *slog.Logger
	now          func() time.Time

	busy atomic.Bool

	mu      sync.Mutex
	epoch   uint64
	stage   Stage
	profile Profile
	log     transcript
}

// New starts a conversation at the name stage. A nil Personalizer disables
// personalized messages.
func New(p Personalizer, opts ...Option) *Conversation {
	c := &Conversation{
		personalizer: p,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()
	return c
}

// Reset discards the profile and transcript and starts over. A collaborator
// response still in flight for the old conversation is dropped.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.stage = StageAwaitingName
	c.profile = Profile{}
	c.log = transcript{now: c.now}
	c.log.system(PromptFor(StageAwaitingName))
}

// Submit handles one line of free text. A rejected input appends the reason
// to the transcript and returns the outcome with a nil error; errors are
// reserved for caller contract violations (ErrBusy, ErrWrongStage).
func (c *Conversation) Submit(ctx context.Context, raw string) (Outcome, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrBusy
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	stage := c.stage
	if !stage.AcceptsText() {
		c.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: text input while %s", ErrWrongStage, stage)
	}

	outcome := Validate(stage, raw)
	if !outcome.Accepted {
		c.log.append(outcome.Reason, OriginatorSystem, KindPlain)
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "input rejected", slog.String("stage", string(stage)))
		return outcome, nil
	}

	value := strings.TrimSpace(raw)
	c.log.append(raw, OriginatorUser, KindPlain)
	c.record(stage, value)
	next := Next(stage)
	c.stage = next
	epoch := c.epoch
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "stage advanced",
		slog.String("from", string(stage)),
		slog.String("to", string(next)),
	)

	// The greeting follows the captured name and precedes the email prompt.
	var greeting string
	var hasGreeting bool
	if stage == StageAwaitingName && c.personalizer != nil {
		greeting, hasGreeting = c.personalizer.Greeting(ctx, value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		c.logger.DebugContext(ctx, "dropping late response after reset")
		return outcome, nil
	}
	if hasGreeting {
		c.log.append(greeting, OriginatorSystem, KindPlain)
	}
	c.log.system(PromptFor(next))
	return outcome, nil
}

// SubmitPhoto records the photo reference and completes the conversation.
// It is only valid while awaiting the photo; otherwise it returns
// ErrWrongStage and changes nothing.
func (c *Conversation) SubmitPhoto(ctx context.Context, ref string) error {
	if ref == "" {
		return ErrEmptyPhoto
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	if c.stage != StageAwaitingPhoto {
		stage := c.stage
		c.mu.Unlock()
		return fmt.Errorf("%w: photo while %s", ErrWrongStage, stage)
	}
	c.profile.Photo = ref
	c.log.append(photoAckText, OriginatorUser, KindPhotoAck)
	c.stage = Next(StageAwaitingPhoto)
	profile := c.profile
	epoch := c.epoch
	c.mu.Unlock()

	message := PromptFor(StageComplete).Text
	if c.personalizer != nil {
		if text, ok := c.personalizer.Completion(ctx, profile); ok {
			message = text
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		c.logger.DebugContext(ctx, "dropping late response after reset")
		return nil
	}
	c.log.append(message, OriginatorSystem, KindPlain)
	c.logger.InfoContext(ctx, "conversation complete", slog.String("name", profile.Name))
	return nil
}

func (c *Conversation) record(stage Stage, value string) {
	switch stage {
	case StageAwaitingName:
		c.profile.Name = value
	case StageAwaitingEmail:
		c.profile.Email = value
	case StageAwaitingAge:
		c.profile.Age = value
	}
}

// Stage returns the current stage.
func (c *Conversation) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Profile returns a copy of the collected profile.
func (c *Conversation) Profile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Transcript returns a copy of the transcript.
func (c *Conversation) Transcript() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.snapshot()
}

// Busy reports whether an input is being processed.
func (c *Conversation) Busy() bool {
	return c.busy.Load()
}

// Snapshot returns stage, profile and transcript taken under one lock.
//
// While an accepted input waits on the Personalizer the lock is released, so a
// snapshot with Busy set may already show the next stage without its prompt
// (or the completion message) in the transcript. Once Busy is false the
// transcript has caught up with the stage.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Stage:      c.stage,
		Profile:    c.profile,
		Transcript: c.log.snapshot(),
		Busy:       c.busy.Load(),
	}
}

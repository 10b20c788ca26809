package wizard

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubPersonalizer struct {
	greeting     string
	completion   string
	ok           bool
	greetCalls   int
	lastName     string
	lastProfile  Profile
	completeCall int
}

func (s *stubPersonalizer) Greeting(ctx context.Context, name string) (string, bool) {
	s.greetCalls++
	s.lastName = name
	return s.greeting, s.ok
}

func (s *stubPersonalizer) Completion(ctx context.Context, p Profile) (string, bool) {
	s.completeCall++
	s.lastProfile = p
	return s.completion, s.ok
}

// blockingPersonalizer parks inside Greeting/Completion until released.
type blockingPersonalizer struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingPersonalizer() *blockingPersonalizer {
	return &blockingPersonalizer{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (b *blockingPersonalizer) Greeting(ctx context.Context, name string) (string, bool) {
	b.entered <- struct{}{}
	<-b.release
	return "late hello", true
}

func (b *blockingPersonalizer) Completion(ctx context.Context, p Profile) (string, bool) {
	b.entered <- struct{}{}
	<-b.release
	return "late done", true
}

func mustSubmit(t *testing.T, c *Conversation, input string) Outcome {
	t.Helper()
	out, err := c.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("Submit(%q) error = %v", input, err)
	}
	return out
}

func lastEntry(t *testing.T, c *Conversation) Entry {
	t.Helper()
	entries := c.Transcript()
	if len(entries) == 0 {
		t.Fatal("transcript is empty")
	}
	return entries[len(entries)-1]
}

func TestNew_SeedsNamePrompt(t *testing.T) {
	c := New(nil)

	if c.Stage() != StageAwaitingName {
		t.Fatalf("Stage() = %s, want %s", c.Stage(), StageAwaitingName)
	}
	entries := c.Transcript()
	if len(entries) != 1 {
		t.Fatalf("transcript length = %d, want 1", len(entries))
	}
	if entries[0].Text != PromptFor(StageAwaitingName).Text || entries[0].Originator != OriginatorSystem {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[0].ID == "" {
		t.Error("entry has no ID")
	}
}

func TestConversation_EndToEnd(t *testing.T) {
	fixed := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	c := New(nil, WithClock(func() time.Time { return fixed }))

	mustSubmit(t, c, "Dana")
	if c.Stage() != StageAwaitingEmail {
		t.Fatalf("Stage() = %s, want %s", c.Stage(), StageAwaitingEmail)
	}
	if c.Profile().Name != "Dana" {
		t.Errorf("Profile().Name = %q, want Dana", c.Profile().Name)
	}
	entries := c.Transcript()
	if len(entries) != 3 {
		t.Fatalf("transcript length = %d, want 3", len(entries))
	}
	if entries[1].Originator != OriginatorUser || entries[1].Text != "Dana" {
		t.Errorf("echo entry = %+v", entries[1])
	}
	if entries[2].Text != PromptFor(StageAwaitingEmail).Text {
		t.Errorf("prompt entry = %+v", entries[2])
	}
	if !entries[2].CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", entries[2].CreatedAt, fixed)
	}

	out := mustSubmit(t, c, "not-an-email")
	if out.Accepted {
		t.Fatal("invalid email accepted")
	}
	if c.Stage() != StageAwaitingEmail {
		t.Errorf("Stage() = %s after rejection", c.Stage())
	}
	if c.Profile().Email != "" {
		t.Errorf("Profile().Email = %q after rejection", c.Profile().Email)
	}
	if got := len(c.Transcript()); got != 4 {
		t.Errorf("transcript length = %d, want 4", got)
	}
	if e := lastEntry(t, c); e.Text != reasonEmail || e.Originator != OriginatorSystem {
		t.Errorf("rejection entry = %+v", e)
	}

	mustSubmit(t, c, "dana@example.com")
	if c.Stage() != StageAwaitingAge {
		t.Fatalf("Stage() = %s, want %s", c.Stage(), StageAwaitingAge)
	}

	mustSubmit(t, c, "29")
	if c.Stage() != StageAwaitingPhoto {
		t.Fatalf("Stage() = %s, want %s", c.Stage(), StageAwaitingPhoto)
	}
	if e := lastEntry(t, c); e.Kind != KindPhotoRequest || e.Originator != OriginatorSystem {
		t.Errorf("latest entry = %+v, want photo-request", e)
	}

	ref := "data:image/png;base64,AAAA"
	if err := c.SubmitPhoto(context.Background(), ref); err != nil {
		t.Fatalf("SubmitPhoto() error = %v", err)
	}
	if c.Stage() != StageComplete {
		t.Fatalf("Stage() = %s, want %s", c.Stage(), StageComplete)
	}

	p := c.Profile()
	want := Profile{Name: "Dana", Email: "dana@example.com", Age: "29", Photo: ref}
	if p != want {
		t.Errorf("Profile() = %+v, want %+v", p, want)
	}

	entries = c.Transcript()
	ack := entries[len(entries)-2]
	if ack.Kind != KindPhotoAck || ack.Originator != OriginatorUser || ack.Text != photoAckText {
		t.Errorf("photo ack entry = %+v", ack)
	}
	if e := lastEntry(t, c); e.Text != PromptFor(StageComplete).Text {
		t.Errorf("completion entry = %q, want fixed completion prompt", e.Text)
	}
}

func TestConversation_RejectionIsIdempotent(t *testing.T) {
	c := New(nil)

	before := c.Snapshot()
	for i := 1; i <= 2; i++ {
		out := mustSubmit(t, c, "A")
		if out.Accepted || out.Reason != reasonName {
			t.Fatalf("attempt %d outcome = %+v", i, out)
		}
		snap := c.Snapshot()
		if snap.Stage != before.Stage || snap.Profile != before.Profile {
			t.Fatalf("attempt %d changed state: %+v", i, snap)
		}
		if got, want := len(snap.Transcript), len(before.Transcript)+i; got != want {
			t.Fatalf("attempt %d transcript length = %d, want %d", i, got, want)
		}
	}
}

func TestConversation_GreetingBetweenNameAndEmailPrompt(t *testing.T) {
	p := &stubPersonalizer{greeting: "Hey Dana, welcome!", ok: true}
	c := New(p)

	mustSubmit(t, c, "  Dana ")

	if p.greetCalls != 1 || p.lastName != "Dana" {
		t.Fatalf("greeting calls = %d, name = %q", p.greetCalls, p.lastName)
	}
	entries := c.Transcript()
	if len(entries) != 4 {
		t.Fatalf("transcript length = %d, want 4", len(entries))
	}
	if entries[2].Text != "Hey Dana, welcome!" || entries[2].Originator != OriginatorSystem {
		t.Errorf("greeting entry = %+v", entries[2])
	}
	if entries[3].Text != PromptFor(StageAwaitingEmail).Text {
		t.Errorf("entry after greeting = %+v", entries[3])
	}

	mustSubmit(t, c, "dana@example.com")
	if p.greetCalls != 1 {
		t.Errorf("greeting requested again on later stage: %d calls", p.greetCalls)
	}
}

func TestConversation_NoGreetingWhenNothingProduced(t *testing.T) {
	p := &stubPersonalizer{ok: false}
	c := New(p)

	mustSubmit(t, c, "Dana")

	if got := len(c.Transcript()); got != 3 {
		t.Errorf("transcript length = %d, want 3", got)
	}
	if c.Stage() != StageAwaitingEmail {
		t.Errorf("Stage() = %s, want %s", c.Stage(), StageAwaitingEmail)
	}
}

func TestConversation_PersonalizedCompletion(t *testing.T) {
	p := &stubPersonalizer{greeting: "hi", completion: "All set, Dana!", ok: true}
	c := New(p)
	for _, in := range []string{"Dana", "dana@example.com", "29"} {
		mustSubmit(t, c, in)
	}

	if err := c.SubmitPhoto(context.Background(), "ref"); err != nil {
		t.Fatalf("SubmitPhoto() error = %v", err)
	}
	if p.lastProfile.Photo != "ref" || p.lastProfile.Age != "29" {
		t.Errorf("Completion saw profile %+v", p.lastProfile)
	}
	if e := lastEntry(t, c); e.Text != "All set, Dana!" {
		t.Errorf("completion entry = %q", e.Text)
	}
}

func TestConversation_WrongStageText(t *testing.T) {
	c := New(nil)
	for _, in := range []string{"Dana", "dana@example.com", "29"} {
		mustSubmit(t, c, in)
	}

	before := c.Snapshot()
	_, err := c.Submit(context.Background(), "hello?")
	if !errors.Is(err, ErrWrongStage) {
		t.Fatalf("Submit() in photo stage error = %v, want ErrWrongStage", err)
	}
	after := c.Snapshot()
	if after.Stage != before.Stage || len(after.Transcript) != len(before.Transcript) {
		t.Errorf("state changed on wrong-stage input")
	}

	if err := c.SubmitPhoto(context.Background(), "ref"); err != nil {
		t.Fatalf("SubmitPhoto() error = %v", err)
	}
	if _, err := c.Submit(context.Background(), "more"); !errors.Is(err, ErrWrongStage) {
		t.Errorf("Submit() when complete error = %v, want ErrWrongStage", err)
	}
}

func TestConversation_WrongStagePhoto(t *testing.T) {
	c := New(nil)

	err := c.SubmitPhoto(context.Background(), "ref")
	if !errors.Is(err, ErrWrongStage) {
		t.Fatalf("SubmitPhoto() error = %v, want ErrWrongStage", err)
	}
	if c.Profile().HasPhoto() {
		t.Error("photo recorded outside photo stage")
	}
	if got := len(c.Transcript()); got != 1 {
		t.Errorf("transcript length = %d, want 1", got)
	}
}

func TestConversation_EmptyPhoto(t *testing.T) {
	c := New(nil)
	for _, in := range []string{"Dana", "dana@example.com", "29"} {
		mustSubmit(t, c, in)
	}

	if err := c.SubmitPhoto(context.Background(), ""); !errors.Is(err, ErrEmptyPhoto) {
		t.Fatalf("SubmitPhoto(\"\") error = %v, want ErrEmptyPhoto", err)
	}
	if c.Stage() != StageAwaitingPhoto {
		t.Errorf("Stage() = %s, want %s", c.Stage(), StageAwaitingPhoto)
	}
}

func TestConversation_BusyRejectsSecondInput(t *testing.T) {
	p := newBlockingPersonalizer()
	c := New(p)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "Dana")
		done <- err
	}()

	<-p.entered
	if !c.Busy() {
		t.Fatal("Busy() = false while input in flight")
	}
	if _, err := c.Submit(context.Background(), "dana@example.com"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Submit() error = %v, want ErrBusy", err)
	}

	close(p.release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	if c.Busy() {
		t.Error("Busy() = true after input finished")
	}
	if c.Profile().Email != "" {
		t.Error("email written by rejected concurrent input")
	}
	if c.Stage() != StageAwaitingEmail {
		t.Errorf("Stage() = %s, want %s", c.Stage(), StageAwaitingEmail)
	}
}

func TestSnapshot_WhileInputInFlight(t *testing.T) {
	p := newBlockingPersonalizer()
	c := New(p)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "Dana")
		done <- err
	}()

	<-p.entered
	mid := c.Snapshot()
	if !mid.Busy {
		t.Error("Busy = false while input in flight")
	}
	if mid.Stage != StageAwaitingEmail {
		t.Errorf("Stage = %s, want %s", mid.Stage, StageAwaitingEmail)
	}
	if last := mid.Transcript[len(mid.Transcript)-1]; last.Originator != OriginatorUser || last.Text != "Dana" {
		t.Errorf("last entry = %+v, want the user's name with no prompt yet", last)
	}

	close(p.release)
	if err := <-done; err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	after := c.Snapshot()
	if after.Busy {
		t.Error("Busy = true after input finished")
	}
	if last := after.Transcript[len(after.Transcript)-1]; last.Text != PromptFor(StageAwaitingEmail).Text {
		t.Errorf("last entry = %q, want the email prompt", last.Text)
	}
}

func TestConversation_LateResponseDroppedAfterReset(t *testing.T) {
	p := newBlockingPersonalizer()
	c := New(p)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "Dana")
		done <- err
	}()

	<-p.entered
	c.Reset()
	close(p.release)
	if err := <-done; err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	snap := c.Snapshot()
	if snap.Stage != StageAwaitingName {
		t.Errorf("Stage = %s, want %s", snap.Stage, StageAwaitingName)
	}
	if snap.Profile != (Profile{}) {
		t.Errorf("Profile = %+v, want empty", snap.Profile)
	}
	if len(snap.Transcript) != 1 {
		t.Fatalf("transcript length = %d, want 1", len(snap.Transcript))
	}
	for _, e := range snap.Transcript {
		if e.Text == "late hello" {
			t.Error("late greeting appended after reset")
		}
	}
}

func TestConversation_Reset(t *testing.T) {
	c := New(nil)
	mustSubmit(t, c, "Dana")
	mustSubmit(t, c, "dana@example.com")

	c.Reset()

	if c.Stage() != StageAwaitingName {
		t.Errorf("Stage() = %s, want %s", c.Stage(), StageAwaitingName)
	}
	if c.Profile() != (Profile{}) {
		t.Errorf("Profile() = %+v, want empty", c.Profile())
	}
	if got := len(c.Transcript()); got != 1 {
		t.Errorf("transcript length = %d, want 1", got)
	}
}

func TestConversation_TranscriptIsACopy(t *testing.T) {
	c := New(nil)
	entries := c.Transcript()
	entries[0].Text = "tampered"

	if c.Transcript()[0].Text == "tampered" {
		t.Error("caller mutated the transcript")
	}
}

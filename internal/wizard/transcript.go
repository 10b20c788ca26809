package wizard

import (
	"time"

	"github.com/google/uuid"
)

// Originator identifies who produced a transcript entry.
type Originator string

const (
	OriginatorSystem Originator = "system"
	OriginatorUser   Originator = "user"
)

// Kind tells the presentation layer how to render an entry.
type Kind string

const (
	KindPlain        Kind = "plain"
	KindPhotoRequest Kind = "photo-request"
	KindPhotoAck     Kind = "photo-ack"
)

const photoAckText = "Photo uploaded successfully!"

// Entry is one immutable line of the transcript.
type Entry struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Originator Originator `json:"originator"`
	Kind       Kind       `json:"kind"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Profile is the record collected over the conversation. Photo is an opaque
// reference (normally a data URI) and is empty until the photo stage.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   string `json:"age"`
	Photo string `json:"photo,omitempty"`
}

// HasPhoto reports whether a photo reference has been set.
func (p Profile) HasPhoto() bool { return p.Photo != "" }

// transcript is append-only; readers get copies.
type transcript struct {
	entries []Entry
	now     func() time.Time
}

func (t *transcript) append(text string, from Originator, kind Kind) Entry {
	e := Entry{
		ID:         "msg_" + uuid.New().String(),
		Text:       text,
		Originator: from,
		Kind:       kind,
		CreatedAt:  t.now(),
	}
	t.entries = append(t.entries, e)
	return e
}

func (t *transcript) system(p Prompt) Entry {
	return t.append(p.Text, OriginatorSystem, p.Kind)
}

func (t *transcript) snapshot() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

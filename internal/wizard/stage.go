// Package wizard implements the guided ID card conversation: the stage
// sequence, per-stage input validation, and the driver that owns one
// conversation's profile and transcript.
package wizard

// Stage is a discrete step in the fixed conversation sequence.
type Stage string

const (
	StageAwaitingName  Stage = "awaiting_name"
	StageAwaitingEmail Stage = "awaiting_email"
	StageAwaitingAge   Stage = "awaiting_age"
	StageAwaitingPhoto Stage = "awaiting_photo"
	StageComplete      Stage = "complete"
)

// Stages lists every stage in progression order.
var Stages = []Stage{
	StageAwaitingName,
	StageAwaitingEmail,
	StageAwaitingAge,
	StageAwaitingPhoto,
	StageComplete,
}

// AcceptsText reports whether free-text input is meaningful in s.
func (s Stage) AcceptsText() bool {
	switch s {
	case StageAwaitingName, StageAwaitingEmail, StageAwaitingAge:
		return true
	default:
		return false
	}
}

// Next returns the stage that follows current. Complete is terminal and maps
// to itself; only Conversation.Reset goes back to the start.
func Next(current Stage) Stage {
	switch current {
	case StageAwaitingName:
		return StageAwaitingEmail
	case StageAwaitingEmail:
		return StageAwaitingAge
	case StageAwaitingAge:
		return StageAwaitingPhoto
	case StageAwaitingPhoto, StageComplete:
		return StageComplete
	default:
		return StageAwaitingName
	}
}

// Prompt is the canonical system message shown on entering a stage.
type Prompt struct {
	Text string
	Kind Kind
}

const restartPrompt = "Let's start over. What's your name?"

// PromptFor returns the prompt for stage.
func PromptFor(stage Stage) Prompt {
	switch stage {
	case StageAwaitingName:
		return Prompt{Text: "Hi there! I'm your ID card assistant. What's your name?", Kind: KindPlain}
	case StageAwaitingEmail:
		return Prompt{Text: "Great! What's your email address?", Kind: KindPlain}
	case StageAwaitingAge:
		return Prompt{Text: "How old are you?", Kind: KindPlain}
	case StageAwaitingPhoto:
		return Prompt{Text: "Almost done! Please upload a photo for your ID card.", Kind: KindPhotoRequest}
	case StageComplete:
		return Prompt{Text: "Thank you! Your ID card has been generated. You can download it below.", Kind: KindPlain}
	default:
		return Prompt{Text: restartPrompt, Kind: KindPlain}
	}
}

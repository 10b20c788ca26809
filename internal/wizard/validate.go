package wizard

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	minNameLength = 2
	minAge        = 1
	maxAge        = 119
)

const (
	reasonName  = "Please enter a valid name (at least 2 characters)."
	reasonEmail = "Please enter a valid email address."
	reasonAge   = "Please enter a valid age between 1 and 119."
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Outcome is the result of validating one input against a stage.
type Outcome struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func accept() Outcome { return Outcome{Accepted: true} }

func reject(reason string) Outcome { return Outcome{Reason: reason} }

// Validate checks raw against the rules for stage. It is pure.
func Validate(stage Stage, raw string) Outcome {
	switch stage {
	case StageAwaitingName:
		if utf8.RuneCountInString(strings.TrimSpace(raw)) < minNameLength {
			return reject(reasonName)
		}
		return accept()
	case StageAwaitingEmail:
		if !emailPattern.MatchString(raw) {
			return reject(reasonEmail)
		}
		return accept()
	case StageAwaitingAge:
		if _, ok := parseAge(raw); !ok {
			return reject(reasonAge)
		}
		return accept()
	default:
		// Photo checks belong to the uploader.
		return accept()
	}
}

// parseAge reads the leading decimal integer of raw, so "29 years" and "12.5"
// parse as 29 and 12. Input without a leading integer is rejected.
func parseAge(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	sign := 1
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	// Anything longer than a few digits is out of range anyway.
	digits := s[:end]
	if len(digits) > 6 {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	n *= sign
	return n, n >= minAge && n <= maxAge
}

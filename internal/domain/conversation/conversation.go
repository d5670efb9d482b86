// Package conversation is the paraphrase-then-confirm state machine placed in front of filter extraction.
package conversation

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kailas-cloud/patentscope/internal/domain"
)

// State of a session.
type State string

const (
	// AwaitingInput waits for a free-text search request.
	AwaitingInput State = "awaiting_input"
	// AwaitingConfirmation waits for a yes/no reply to the paraphrase.
	AwaitingConfirmation State = "awaiting_confirmation"
	// Proposal is terminal: the request was accepted and handed to the planner.
	Proposal State = "proposal"
)

// Turn is one utterance in the conversation log.
type Turn struct {
	Speaker domain.Role `json:"speaker"`
	Text    string      `json:"text"`
}

// Session holds one conversation. It is not safe for concurrent use; callers serialize turns.
type Session struct {
	id         string
	confirm    bool
	state      State
	turns      []Turn
	original   string
	paraphrase string
	createdAt  time.Time
	updatedAt  time.Time
}

// New creates a session in AwaitingInput. confirm enables the paraphrase step.
func New(id string, confirm bool, now time.Time) *Session {
	return &Session{
		id:        id,
		confirm:   confirm,
		state:     AwaitingInput,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ConfirmMode reports whether user requests are paraphrased and confirmed before planning.
func (s *Session) ConfirmMode() bool { return s.confirm }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Turns returns a copy of the conversation log.
func (s *Session) Turns() []Turn { return append([]Turn(nil), s.turns...) }

// Original returns the pending user request, verbatim.
func (s *Session) Original() string { return s.original }

// Paraphrase returns the confirmation question generated for the pending request.
func (s *Session) Paraphrase() string { return s.paraphrase }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the time of the last transition.
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }

// Input records a new search request. Valid only in AwaitingInput.
func (s *Session) Input(text string, now time.Time) error {
	if err := s.expect(AwaitingInput); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty request: %w", domain.ErrInvalidInput)
	}
	s.turns = append(s.turns, Turn{Speaker: domain.RoleUser, Text: text})
	s.original = text
	s.paraphrase = ""
	s.updatedAt = now
	return nil
}

// Paraphrased records the confirmation question and moves to AwaitingConfirmation.
func (s *Session) Paraphrased(paraphrase string, now time.Time) error {
	if err := s.expect(AwaitingInput); err != nil {
		return err
	}
	if s.original == "" {
		return fmt.Errorf("no pending request: %w", domain.ErrInvalidTransition)
	}
	s.turns = append(s.turns, Turn{Speaker: domain.RoleAssistant, Text: paraphrase})
	s.paraphrase = paraphrase
	s.state = AwaitingConfirmation
	s.updatedAt = now
	return nil
}

// Reply interprets a yes/no answer to the paraphrase. Anything not affirmative counts as "no":
// the session goes back to AwaitingInput with apology appended. "yes" moves to Proposal.
func (s *Session) Reply(text, apology string, now time.Time) (bool, error) {
	if err := s.expect(AwaitingConfirmation); err != nil {
		return false, err
	}
	s.turns = append(s.turns, Turn{Speaker: domain.RoleUser, Text: strings.TrimSpace(text)})
	s.updatedAt = now

	if IsAffirmative(text) {
		s.state = Proposal
		return true, nil
	}

	s.clearPending()
	s.say(apology)
	s.state = AwaitingInput
	return false, nil
}

// Propose moves a pending request straight to Proposal, skipping confirmation.
func (s *Session) Propose(now time.Time) error {
	if err := s.expect(AwaitingInput); err != nil {
		return err
	}
	if s.original == "" {
		return fmt.Errorf("no pending request: %w", domain.ErrInvalidTransition)
	}
	s.state = Proposal
	s.updatedAt = now
	return nil
}

// Reject abandons the pending request and asks for new input.
// Used when the accepted request could not be turned into a filter.
func (s *Session) Reject(message string, now time.Time) {
	s.clearPending()
	s.say(message)
	s.state = AwaitingInput
	s.updatedAt = now
}

// Suspend returns an accepted request to AwaitingConfirmation so that "yes" can be sent again.
// Without confirm mode the request is dropped instead.
func (s *Session) Suspend(now time.Time) {
	s.updatedAt = now
	if !s.confirm || s.paraphrase == "" {
		s.clearPending()
		s.state = AwaitingInput
		return
	}
	s.state = AwaitingConfirmation
}

// Say appends an assistant message without changing state.
func (s *Session) Say(text string, now time.Time) {
	s.say(text)
	s.updatedAt = now
}

// Reset clears the log and pending request and returns to AwaitingInput.
func (s *Session) Reset(now time.Time) {
	s.turns = nil
	s.clearPending()
	s.state = AwaitingInput
	s.updatedAt = now
}

func (s *Session) say(text string) {
	if text != "" {
		s.turns = append(s.turns, Turn{Speaker: domain.RoleAssistant, Text: text})
	}
}

func (s *Session) clearPending() {
	s.original = ""
	s.paraphrase = ""
}

func (s *Session) expect(want State) error {
	if s.state != want {
		return fmt.Errorf("session %s is %s, not %s: %w", s.id, s.state, want, domain.ErrInvalidTransition)
	}
	return nil
}

var affirmatives = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "ok": {}, "okay": {}, "sure": {},
	"correct": {}, "right": {}, "yes please": {},
	"はい": {}, "うん": {}, "ええ": {}, "そうです": {}, "お願いします": {}, "はい、お願いします": {},
	"oui": {}, "ja": {}, "sí": {}, "si": {}, "да": {},
}

// IsAffirmative reports whether text is an accepting reply.
// Matching is case-insensitive and ignores surrounding whitespace and trailing punctuation.
func IsAffirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRightFunc(t, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	_, ok := affirmatives[t]
	return ok
}

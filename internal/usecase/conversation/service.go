// Package conversation drives the paraphrase-then-confirm loop in front of the search planner.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/domain"
	conv "github.com/kailas-cloud/patentscope/internal/domain/conversation"
	"github.com/kailas-cloud/patentscope/internal/logger"
	"github.com/kailas-cloud/patentscope/internal/usecase/search"
)

// Messages are the fixed assistant replies of the loop.
type Messages struct {
	// Apology is appended when the user rejects the paraphrase.
	Apology string
	// Reentry is appended when the accepted request could not be turned into a filter.
	Reentry string
}

// Outcome reports what a turn did.
type Outcome struct {
	State conv.State
	// Reply is the assistant text produced by this turn, empty when a plan was produced.
	Reply string
	// Plan is set when the turn reached Proposal.
	Plan *search.Plan
}

// Service runs turns against a caller-owned session. It keeps no state of its own.
type Service struct {
	llm            Completer
	planner        Planner
	proposalPrompt string
	messages       Messages
	now            func() time.Time
}

// New creates the loop. proposalPrompt instructs the model to restate the request as a yes/no question.
func New(llm Completer, planner Planner, proposalPrompt string, messages Messages) *Service {
	return &Service{
		llm:            llm,
		planner:        planner,
		proposalPrompt: proposalPrompt,
		messages:       messages,
		now:            time.Now,
	}
}

// Turn feeds one user utterance into sess. The caller guarantees one turn per session at a time.
func (s *Service) Turn(ctx context.Context, sess *conv.Session, text string) (Outcome, error) {
	ctx = logger.With(ctx, zap.String("session_id", sess.ID()))

	switch sess.State() {
	case conv.AwaitingInput:
		return s.input(ctx, sess, text)
	case conv.AwaitingConfirmation:
		return s.reply(ctx, sess, text)
	default:
		return Outcome{State: sess.State()}, fmt.Errorf(
			"session %s already produced a proposal, reset it first: %w", sess.ID(), domain.ErrInvalidTransition)
	}
}

func (s *Service) input(ctx context.Context, sess *conv.Session, text string) (Outcome, error) {
	if err := sess.Input(text, s.now()); err != nil {
		return Outcome{State: sess.State()}, err
	}

	if !sess.ConfirmMode() {
		if err := sess.Propose(s.now()); err != nil {
			return Outcome{State: sess.State()}, err
		}
		return s.plan(ctx, sess)
	}

	paraphrase, err := s.llm.Complete(ctx, s.proposalPrompt, domain.UserTurn(sess.Original()), 0)
	if err != nil {
		sess.Reject("", s.now())
		return Outcome{State: sess.State()}, fmt.Errorf("paraphrase request: %w", err)
	}
	paraphrase = strings.TrimSpace(paraphrase)

	if err := sess.Paraphrased(paraphrase, s.now()); err != nil {
		return Outcome{State: sess.State()}, err
	}
	return Outcome{State: sess.State(), Reply: paraphrase}, nil
}

func (s *Service) reply(ctx context.Context, sess *conv.Session, text string) (Outcome, error) {
	accepted, err := sess.Reply(text, s.messages.Apology, s.now())
	if err != nil {
		return Outcome{State: sess.State()}, err
	}
	if !accepted {
		logger.FromContext(ctx).Debug("Paraphrase rejected")
		return Outcome{State: sess.State(), Reply: s.messages.Apology}, nil
	}
	return s.plan(ctx, sess)
}

// plan runs the planner once on the user's original words.
func (s *Service) plan(ctx context.Context, sess *conv.Session) (Outcome, error) {
	p, err := s.planner.Plan(ctx, sess.Original())
	if err == nil {
		logger.FromContext(ctx).Info("Request accepted", zap.Int("drift", len(p.Drift)))
		return Outcome{State: sess.State(), Plan: &p}, nil
	}

	if errors.Is(err, domain.ErrMalformedFilter) {
		sess.Reject(s.messages.Reentry, s.now())
		return Outcome{State: sess.State(), Reply: s.messages.Reentry}, err
	}

	sess.Suspend(s.now())
	return Outcome{State: sess.State()}, err
}

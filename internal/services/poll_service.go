package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cuotas/internal/core"
	"cuotas/internal/storage"
)

var (
	ErrPollNotOpen     = errors.New("poll is not open")
	ErrPollStillOpen   = errors.New("poll has not been closed")
	ErrUnitHasVoted    = errors.New("unit has already voted")
	ErrUnitWrongClient = errors.New("unit does not belong to poll's client")
)

// PollService runs budget-approval polls: one vote per unit, tally on close.
type PollService struct {
	storage *storage.SQLiteRepository
}

func NewPollService(storage *storage.SQLiteRepository) *PollService {
	return &PollService{storage: storage}
}

// Create opens a new poll. A zero closesAt leaves the poll open until closed
// by hand.
func (s *PollService) Create(ctx context.Context, clientID, title, description string, closesAt *time.Time) (core.Poll, error) {
	poll := core.Poll{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		Title:       title,
		Description: description,
		Status:      core.PollOpen,
		ClosesAt:    closesAt,
		CreatedAt:   time.Now(),
	}
	if err := poll.Validate(); err != nil {
		return core.Poll{}, err
	}
	if _, err := s.storage.GetClient(ctx, clientID); err != nil {
		return core.Poll{}, fmt.Errorf("load client: %w", err)
	}
	if err := s.storage.CreatePoll(ctx, poll); err != nil {
		return core.Poll{}, fmt.Errorf("create poll: %w", err)
	}
	return poll, nil
}

// Vote records one unit's choice. Votes are final, and a poll past its close
// date no longer accepts them.
func (s *PollService) Vote(ctx context.Context, pollID, unitID string, choice core.VoteChoice) error {
	vote := core.Vote{PollID: pollID, UnitID: unitID, Choice: choice, CastAt: time.Now()}
	if err := vote.Validate(); err != nil {
		return err
	}

	poll, err := s.storage.GetPoll(ctx, pollID)
	if err != nil {
		return fmt.Errorf("load poll: %w", err)
	}
	if poll.Status != core.PollOpen {
		return ErrPollNotOpen
	}
	if poll.ClosesAt != nil && time.Now().After(*poll.ClosesAt) {
		return ErrPollNotOpen
	}

	unit, err := s.storage.GetUnit(ctx, unitID)
	if err != nil {
		return fmt.Errorf("load unit: %w", err)
	}
	if unit.ClientID != poll.ClientID {
		return ErrUnitWrongClient
	}

	if err := s.storage.CastVote(ctx, vote); err != nil {
		if storage.IsDuplicateVote(err) {
			return ErrUnitHasVoted
		}
		return fmt.Errorf("cast vote: %w", err)
	}
	return nil
}

// Close ends a poll and returns the final tally.
func (s *PollService) Close(ctx context.Context, pollID string) (core.PollResult, error) {
	poll, err := s.storage.GetPoll(ctx, pollID)
	if err != nil {
		return core.PollResult{}, fmt.Errorf("load poll: %w", err)
	}
	if poll.Status == core.PollClosed {
		return s.storage.TallyVotes(ctx, pollID)
	}

	now := time.Now()
	if err := s.storage.UpdatePollStatus(ctx, pollID, core.PollClosed, &now); err != nil {
		return core.PollResult{}, fmt.Errorf("close poll: %w", err)
	}
	return s.storage.TallyVotes(ctx, pollID)
}

// Results tallies the votes cast so far.
func (s *PollService) Results(ctx context.Context, pollID string) (core.Poll, core.PollResult, error) {
	poll, err := s.storage.GetPoll(ctx, pollID)
	if err != nil {
		return core.Poll{}, core.PollResult{}, fmt.Errorf("load poll: %w", err)
	}
	result, err := s.storage.TallyVotes(ctx, pollID)
	if err != nil {
		return core.Poll{}, core.PollResult{}, err
	}
	return poll, result, nil
}

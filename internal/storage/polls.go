package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cuotas/internal/core"
)

func (r *SQLiteRepository) CreatePoll(ctx context.Context, p core.Poll) error {
	var closesAt any
	if p.ClosesAt != nil {
		closesAt = fmtTime(*p.ClosesAt)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO polls (id, client_id, title, description, status, closes_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ClientID, p.Title, p.Description, string(p.Status), closesAt, fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("create poll: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetPoll(ctx context.Context, id string) (core.Poll, error) {
	var (
		p                  core.Poll
		status             string
		closesAt, closedAt sql.NullString
		createdAt          string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, title, description, status, closes_at, closed_at, created_at
		FROM polls WHERE id = ?`, id).
		Scan(&p.ID, &p.ClientID, &p.Title, &p.Description, &status, &closesAt, &closedAt, &createdAt)
	if err == sql.ErrNoRows {
		return core.Poll{}, ErrNotFound
	}
	if err != nil {
		return core.Poll{}, fmt.Errorf("get poll: %w", err)
	}
	p.Status = core.PollStatus(status)
	p.CreatedAt = parseStoredTime(createdAt)
	if closesAt.Valid {
		t := parseStoredTime(closesAt.String)
		p.ClosesAt = &t
	}
	if closedAt.Valid {
		t := parseStoredTime(closedAt.String)
		p.ClosedAt = &t
	}
	return p, nil
}

func (r *SQLiteRepository) ListPolls(ctx context.Context, clientID string) ([]core.Poll, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, title, description, status, closes_at, closed_at, created_at
		FROM polls WHERE client_id = ? ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()

	var polls []core.Poll
	for rows.Next() {
		var (
			p                  core.Poll
			status             string
			closesAt, closedAt sql.NullString
			createdAt          string
		)
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Title, &p.Description, &status, &closesAt, &closedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		p.Status = core.PollStatus(status)
		p.CreatedAt = parseStoredTime(createdAt)
		if closesAt.Valid {
			t := parseStoredTime(closesAt.String)
			p.ClosesAt = &t
		}
		if closedAt.Valid {
			t := parseStoredTime(closedAt.String)
			p.ClosedAt = &t
		}
		polls = append(polls, p)
	}
	return polls, rows.Err()
}

func (r *SQLiteRepository) UpdatePollStatus(ctx context.Context, id string, status core.PollStatus, closedAt *time.Time) error {
	var closed any
	if closedAt != nil {
		closed = fmtTime(*closedAt)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE polls SET status = ?, closed_at = ? WHERE id = ?`,
		string(status), closed, id)
	if err != nil {
		return fmt.Errorf("update poll status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update poll status rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CastVote records one unit's vote. The (poll, unit) primary key rejects a
// second vote from the same unit.
func (r *SQLiteRepository) CastVote(ctx context.Context, v core.Vote) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO poll_votes (poll_id, unit_id, choice, cast_at)
		VALUES (?, ?, ?, ?)`,
		v.PollID, v.UnitID, string(v.Choice), fmtTime(v.CastAt))
	if err != nil {
		return fmt.Errorf("cast vote: %w", err)
	}
	return nil
}

// IsDuplicateVote reports whether err is the primary-key violation raised
// when a unit votes twice on the same poll.
func IsDuplicateVote(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *SQLiteRepository) TallyVotes(ctx context.Context, pollID string) (core.PollResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT choice, COUNT(*) FROM poll_votes WHERE poll_id = ? GROUP BY choice`, pollID)
	if err != nil {
		return core.PollResult{}, fmt.Errorf("tally votes: %w", err)
	}
	defer rows.Close()

	result := core.PollResult{PollID: pollID}
	for rows.Next() {
		var (
			choice string
			count  int
		)
		if err := rows.Scan(&choice, &count); err != nil {
			return core.PollResult{}, fmt.Errorf("scan tally: %w", err)
		}
		switch core.VoteChoice(choice) {
		case core.VoteYes:
			result.Yes = count
		case core.VoteNo:
			result.No = count
		case core.VoteAbstain:
			result.Abstain = count
		}
		result.Total += count
	}
	return result, rows.Err()
}

package http

import (
	"net/http"
	"strings"
	"time"

	"cuotas/internal/core"
)

type pollJSON struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	ClosesAt    string `json:"closes_at,omitempty"`
	ClosedAt    string `json:"closed_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type pollResultJSON struct {
	Yes     int `json:"yes"`
	No      int `json:"no"`
	Abstain int `json:"abstain"`
	Total   int `json:"total"`
}

func toPollJSON(p core.Poll) pollJSON {
	out := pollJSON{
		ID:          p.ID,
		ClientID:    p.ClientID,
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
	if p.ClosesAt != nil {
		out.ClosesAt = p.ClosesAt.Format(time.RFC3339)
	}
	if p.ClosedAt != nil {
		out.ClosedAt = p.ClosedAt.Format(time.RFC3339)
	}
	return out
}

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ClosesAt    string `json:"closes_at"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var closesAt *time.Time
	if v := strings.TrimSpace(req.ClosesAt); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			// A bare date closes at the end of that day.
			d, derr := time.Parse("2006-01-02", v)
			if derr != nil {
				ErrorResponse(w, http.StatusBadRequest, "invalid closes_at, want RFC 3339 or YYYY-MM-DD")
				return
			}
			t = d.Add(24*time.Hour - time.Second)
		}
		closesAt = &t
	}

	poll, err := s.polls.Create(r.Context(), clientID, strings.TrimSpace(req.Title), strings.TrimSpace(req.Description), closesAt)
	if err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusCreated, toPollJSON(poll))
}

func (s *Server) handleListPolls(w http.ResponseWriter, r *http.Request) {
	polls, err := s.repo.ListPolls(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]pollJSON, 0, len(polls))
	for _, p := range polls {
		out = append(out, toPollJSON(p))
	}
	JSONResponse(w, http.StatusOK, out)
}

func (s *Server) handlePollResults(w http.ResponseWriter, r *http.Request) {
	poll, result, err := s.polls.Results(r.Context(), r.PathValue("pollID"))
	if err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, struct {
		Poll    pollJSON       `json:"poll"`
		Results pollResultJSON `json:"results"`
	}{
		Poll:    toPollJSON(poll),
		Results: pollResultJSON{Yes: result.Yes, No: result.No, Abstain: result.Abstain, Total: result.Total},
	})
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("pollID")

	var req struct {
		UnitID string `json:"unit_id"`
		Choice string `json:"choice"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.polls.Vote(r.Context(), pollID, strings.TrimSpace(req.UnitID), core.VoteChoice(strings.ToLower(strings.TrimSpace(req.Choice)))); err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusCreated, struct {
		PollID string `json:"poll_id"`
		UnitID string `json:"unit_id"`
		Choice string `json:"choice"`
	}{PollID: pollID, UnitID: req.UnitID, Choice: strings.ToLower(strings.TrimSpace(req.Choice))})
}

func (s *Server) handleClosePoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("pollID")
	result, err := s.polls.Close(r.Context(), pollID)
	if err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, struct {
		PollID  string         `json:"poll_id"`
		Status  string         `json:"status"`
		Results pollResultJSON `json:"results"`
	}{
		PollID:  pollID,
		Status:  string(core.PollClosed),
		Results: pollResultJSON{Yes: result.Yes, No: result.No, Abstain: result.Abstain, Total: result.Total},
	})
}

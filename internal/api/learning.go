package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pencilsharp/pencilsharp/internal/curriculum"
	"github.com/pencilsharp/pencilsharp/internal/progress"
	"github.com/pencilsharp/pencilsharp/internal/report"
	"github.com/pencilsharp/pencilsharp/internal/session"
)

type selectionView struct {
	Subject string `json:"subject,omitempty"`
	Unit    *int   `json:"unit,omitempty"`
	Topic   string `json:"topic,omitempty"`
}

// stateView is returned by every mutating endpoint. A request whose
// preconditions were not met comes back with the state unchanged.
type stateView struct {
	Selection      selectionView         `json:"selection"`
	CurrentSubject *curriculum.Subject   `json:"current_subject,omitempty"`
	Progress       progress.UserProgress `json:"progress"`
}

func newStateView(c *session.Controller) stateView {
	var v stateView
	if s, ok := c.CurrentSubject(); ok {
		v.Selection.Subject = s.Name
		v.CurrentSubject = &s
	}
	if _, idx, ok := c.CurrentUnit(); ok {
		v.Selection.Unit = &idx
	}
	if t, ok := c.CurrentTopic(); ok {
		v.Selection.Topic = t.Name
	}
	v.Progress = c.Progress()
	return v
}

type progressView struct {
	Progress progress.UserProgress     `json:"progress"`
	Subjects []session.SubjectProgress `json:"subjects"`
}

func (s *Server) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	var resp struct {
		Subjects  []curriculum.Subject `json:"subjects"`
		Selection selectionView        `json:"selection"`
	}
	s.view(w, r, func(c *session.Controller) {
		resp.Subjects = c.Subjects()
		resp.Selection = newStateView(c).Selection
	}, func() any { return resp })
}

func (s *Server) handleSelectSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	s.mutate(w, r, func(c *session.Controller) { c.SelectSubject(req.Name) })
}

func (s *Server) handleSelectUnit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Index == nil {
		writeError(w, http.StatusBadRequest, "index is required")
		return
	}
	s.mutate(w, r, func(c *session.Controller) { c.SelectUnit(*req.Index) })
}

func (s *Server) handleSelectTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	s.mutate(w, r, func(c *session.Controller) { c.SelectTopic(req.Name) })
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, (*session.Controller).CompleteCurrentTopic)
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, (*session.Controller).UpdateStreak)
}

func (s *Server) handleResetDaily(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, (*session.Controller).ResetDailyCount)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var resp progressView
	s.view(w, r, func(c *session.Controller) {
		resp.Progress = c.Progress()
		for _, subj := range c.Subjects() {
			if sp, ok := c.SubjectProgress(subj.Name); ok {
				resp.Subjects = append(resp.Subjects, sp)
			}
		}
	}, func() any { return resp })
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())
	snap := report.Snapshot{Learner: acct.Email}
	err := s.sessions.View(r.Context(), acct.ID, func(c *session.Controller) {
		snap.Subjects = c.Subjects()
		snap.Progress = c.Progress()
	})
	if err != nil {
		s.sessionError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, snap); err != nil {
		slog.Error("report failed", "account_id", acct.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "report failed")
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="progress.xlsx"`)
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("report write interrupted", "account_id", acct.ID, "error", err)
	}
}

// mutate runs fn under the session lock, persists any change and replies
// with the resulting state.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*session.Controller)) {
	var v stateView
	err := s.sessions.Do(r.Context(), accountFrom(r.Context()).ID, func(c *session.Controller) error {
		fn(c)
		v = newStateView(c)
		return nil
	})
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) view(w http.ResponseWriter, r *http.Request, fn func(*session.Controller), resp func() any) {
	if err := s.sessions.View(r.Context(), accountFrom(r.Context()).ID, fn); err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp())
}

func (s *Server) sessionError(w http.ResponseWriter, err error) {
	slog.Error("session unavailable", "error", err)
	writeError(w, http.StatusServiceUnavailable, "session unavailable")
}

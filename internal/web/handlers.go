package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/verte-zerg/azdrill/internal/abc"
	"github.com/verte-zerg/azdrill/internal/model"
	"github.com/verte-zerg/azdrill/internal/quiz"
	"github.com/verte-zerg/azdrill/internal/stats"
	"github.com/verte-zerg/azdrill/internal/store"
)

var errNoSession = errors.New("no active session")

type stageRequest struct {
	Mode string `json:"mode"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type valuesRequest struct {
	Values []string `json:"values"`
}

type answerResponse struct {
	Feedback feedbackView `json:"feedback"`
	Session  sessionView  `json:"session"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		s.respondError(w, r, errNoSession)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s.session))
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, r, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := quiz.Start(r.Context(), s.deps.Items, s.deps.Sink, s.sessionOptions())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Mode != "" {
		mode, err := parseMode(req.Mode)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if err := session.SelectStage(mode); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	s.session = session
	s.logger.Info("session started", "session", session.ID(), "label", session.Label(), "mode", session.Mode().String())
	writeJSON(w, http.StatusCreated, newSessionView(session))
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		s.respondError(w, r, errNoSession)
		return
	}
	s.session = nil
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) selectStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.withSession(w, r, func(session *quiz.Session) error {
		if err := session.SelectStage(mode); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, newSessionView(session))
		return nil
	})
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(session *quiz.Session) error {
		if err := session.Advance(); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, newSessionView(session))
		return nil
	})
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.withSession(w, r, func(session *quiz.Session) error {
		fb, err := session.Submit(r.Context(), req.Answer)
		if errors.Is(err, quiz.ErrReviewCooldown) {
			retry := int(math.Ceil(session.ReviewRemaining().Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			return err
		}
		if err != nil {
			return err
		}
		if fb.Warning != nil {
			s.logger.Warn("failed to record result", "session", session.ID(), "error", fb.Warning)
		}
		if fb.Completed {
			s.logger.Info("session completed", "session", session.ID(), "saved", fb.Saved)
		}
		writeJSON(w, http.StatusOK, answerResponse{
			Feedback: newFeedbackView(fb),
			Session:  newSessionView(session),
		})
		return nil
	})
}

func (s *Server) review(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(session *quiz.Session) error {
		writeJSON(w, http.StatusOK, newItemViews(session.Review()))
		return nil
	})
}

func (s *Server) listValues(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Items.Load(r.Context())
	if err != nil {
		s.respondError(w, r, &quiz.CollaboratorError{Op: "load items", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, newMappingView(m))
}

func (s *Server) setValues(w http.ResponseWriter, r *http.Request) {
	key, ok := model.ParseKey(chi.URLParam(r, "key"))
	if !ok {
		s.respondError(w, r, fmt.Errorf("key %q: %w", chi.URLParam(r, "key"), quiz.ErrInvalidSelection))
		return
	}
	var req valuesRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	var values []string
	for _, v := range req.Values {
		values = append(values, abc.SplitValues(v)...)
	}
	s.updateMapping(w, r, func(m model.Mapping) {
		if len(values) == 0 {
			delete(m, key)
			return
		}
		m[key] = values
	})
}

func (s *Server) clearValues(w http.ResponseWriter, r *http.Request) {
	key, ok := model.ParseKey(chi.URLParam(r, "key"))
	if !ok {
		s.respondError(w, r, fmt.Errorf("key %q: %w", chi.URLParam(r, "key"), quiz.ErrInvalidSelection))
		return
	}
	s.updateMapping(w, r, func(m model.Mapping) {
		delete(m, key)
	})
}

// updateMapping holds the server lock across load and save so concurrent
// edits of different keys are not lost.
func (s *Server) updateMapping(w http.ResponseWriter, r *http.Request, fn func(model.Mapping)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := r.Context()
	m, err := s.deps.Items.Load(ctx)
	if err != nil {
		s.respondError(w, r, &quiz.CollaboratorError{Op: "load items", Err: err})
		return
	}
	if m == nil {
		m = model.Mapping{}
	}
	fn(m)
	if err := s.deps.Items.Save(ctx, m); err != nil {
		s.respondError(w, r, &quiz.CollaboratorError{Op: "save items", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, newMappingView(m))
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	if s.deps.Results == nil {
		writeJSON(w, http.StatusOK, []resultView{})
		return
	}
	last := 0
	if raw := r.URL.Query().Get("last"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, r, fmt.Errorf("last %q: %w", raw, quiz.ErrInvalidSelection))
			return
		}
		last = n
	}
	entries, err := s.deps.Results.Results(r.Context())
	if err != nil {
		s.respondError(w, r, &quiz.CollaboratorError{Op: "list results", Err: err})
		return
	}
	entries = stats.FilterEntries(entries, store.Filter{Label: r.URL.Query().Get("label"), Last: last})
	views := make([]resultView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, newResultView(entry))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) listSheets(w http.ResponseWriter, r *http.Request) {
	view := sheetsView{Sheets: []string{}}
	if s.deps.Catalog != nil {
		sheets, err := s.deps.Catalog.Sheets()
		if err != nil {
			s.respondError(w, r, &quiz.CollaboratorError{Op: "list sheets", Err: err})
			return
		}
		view.Active = s.deps.Catalog.Sheet()
		view.Sheets = append(view.Sheets, sheets...)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*quiz.Session) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		s.respondError(w, r, errNoSession)
		return
	}
	if err := fn(s.session); err != nil {
		s.respondError(w, r, err)
	}
}

func (s *Server) sessionOptions() quiz.Options {
	opts := s.deps.Options
	if s.deps.Catalog != nil && opts.Label == "" {
		opts.Label = s.deps.Catalog.Sheet()
	}
	return opts
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var collab *quiz.CollaboratorError
	switch {
	case errors.Is(err, quiz.ErrInvalidSelection), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errNoSession):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrWrongPhase), errors.Is(err, quiz.ErrNoData):
		return http.StatusConflict
	case errors.Is(err, quiz.ErrReviewCooldown):
		return http.StatusTooManyRequests
	case errors.As(err, &collab):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("malformed request body")

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func parseMode(s string) (model.Mode, error) {
	mode, err := model.ParseMode(s)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", err, quiz.ErrInvalidSelection)
	}
	return mode, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort write; the status is already sent.
		_ = err
	}
}

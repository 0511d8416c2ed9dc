package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/formtree/internal/logging"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/form"
	"github.com/aretw0/formtree/pkg/ports"
	"github.com/aretw0/formtree/pkg/schema"
	"github.com/aretw0/formtree/pkg/session"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrCapacity is returned when an occurrence or answer cannot be added.
var ErrCapacity = errors.New("maximum number of occurrences reached")

// Server serves form sessions.
type Server struct {
	Sessions *session.Manager
	Loader   ports.QuestionnaireLoader
	Streams  *StreamManager

	doc     *openapi3.T
	router  routers.Router
	logger  *slog.Logger
	version string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Questionnaire string                        `json:"questionnaire"`
	Response      *domain.QuestionnaireResponse `json:"response,omitempty"`
}

// AnswerInput sets one answer. A nil Index addresses the first answer; an Index equal to
// the current answer count appends one.
type AnswerInput struct {
	Ref   string `json:"ref"`
	Index *int   `json:"index,omitempty"`
	Value any    `json:"value"`
}

// SetAnswersRequest is the body of PUT /sessions/{id}/answers.
type SetAnswersRequest struct {
	Answers []AnswerInput `json:"answers"`
}

// AddItemRequest is the body of POST /sessions/{id}/items.
type AddItemRequest struct {
	Ref string `json:"ref"`
}

// ValidateRequest is the body of POST /sessions/{id}/validate.
type ValidateRequest struct {
	Submit bool `json:"submit"`
}

// AddItemResponse reports the key of the node or answer that was added.
type AddItemResponse struct {
	Key     string      `json:"key"`
	Session SessionView `json:"session"`
}

// NewServer creates a Server over sessions; loader backs GET /questionnaires and /events.
// It panics if the embedded OpenAPI document is invalid.
func NewServer(sessions *session.Manager, loader ports.QuestionnaireLoader, opts ...Option) *Server {
	doc, router, err := newRouter()
	if err != nil {
		panic(fmt.Sprintf("http: %v", err))
	}
	s := &Server{
		doc:      doc,
		router:   router,
		Sessions: sessions,
		Loader:   loader,
		Streams:  NewStreamManager(),
		logger:   logging.NewNop(),
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates a new HTTP handler for the session manager.
func NewHandler(sessions *session.Manager, loader ports.QuestionnaireLoader, opts ...Option) http.Handler {
	return NewServer(sessions, loader, opts...).Routes()
}

// Routes returns the router serving s.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	r.Use(s.validateRequests)

	r.Get("/openapi.yaml", s.ServeDocument)
	r.Get("/swagger", s.ServeSwagger)
	r.Get("/health", s.GetHealth)
	r.Get("/questionnaires", s.ListQuestionnaires)
	r.Get("/events", s.SubscribeEvents)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Put("/answers", s.SetAnswers)
			r.Post("/items", s.AddItem)
			r.Post("/validate", s.Validate)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"version":     s.version,
		"api_version": s.doc.Info.Version,
	})
}

// ListQuestionnaires handles GET /questionnaires.
func (s *Server) ListQuestionnaires(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Loader.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Questionnaire == "" && body.Response != nil {
		body.Questionnaire = body.Response.Questionnaire
	}
	if body.Questionnaire == "" {
		s.writeError(w, r, badRequest("questionnaire is required"))
		return
	}

	id, err := s.Sessions.Create(r.Context(), body.Questionnaire, body.Response)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, id, s.Sessions.View, func(*form.Form) error { return nil })
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, id, s.Sessions.View, func(*form.Form) error { return nil })
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAnswers handles PUT /sessions/{id}/answers. Answers are applied in order and the
// first failure stops the batch; earlier answers stay applied.
func (s *Server) SetAnswers(w http.ResponseWriter, r *http.Request) {
	var body SetAnswersRequest
	if !s.decode(w, r, &body) {
		return
	}
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, id, s.Sessions.Update, func(f *form.Form) error {
		for _, in := range body.Answers {
			if err := setAnswer(f, in); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddItem handles POST /sessions/{id}/items, adding an occurrence to a repeating group
// or an empty answer to a repeating question.
func (s *Server) AddItem(w http.ResponseWriter, r *http.Request) {
	var body AddItemRequest
	if !s.decode(w, r, &body) {
		return
	}
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var out AddItemResponse
	err = s.Sessions.Update(r.Context(), id, func(f *form.Form) error {
		key, err := addItem(f, body.Ref)
		if err != nil {
			return err
		}
		out = AddItemResponse{Key: key, Session: newSessionView(id, f)}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.broadcast(out.Session)
	s.writeJSON(w, http.StatusCreated, out)
}

// Validate handles POST /sessions/{id}/validate. With submit set, a valid form is marked
// completed; an invalid one answers 422 with the session view.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	var body ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, badRequest("invalid request body: "+err.Error()))
		return
	}
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var view SessionView
	err = s.Sessions.Update(r.Context(), id, func(f *form.Form) error {
		if body.Submit {
			if _, err := f.Submit(); err != nil && !isIssueList(err) {
				return err
			}
		} else {
			f.ValidateAll()
		}
		view = newSessionView(id, f)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.broadcast(view)

	status := http.StatusOK
	if body.Submit && !view.Valid {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, view)
}

// respond runs fn through op and writes the resulting session view.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, id string,
	op func(context.Context, string, func(*form.Form) error) error, fn func(*form.Form) error) {
	var view SessionView
	var ok bool
	err := op(r.Context(), id, func(f *form.Form) error {
		ferr := fn(f)
		view, ok = newSessionView(id, f), true
		return ferr
	})
	if ok && r.Method != http.MethodGet {
		s.broadcast(view)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, status, view)
}

func setAnswer(f *form.Form, in AnswerInput) error {
	if in.Index == nil {
		return f.SetAnswer(in.Ref, in.Value)
	}
	q, ok := lookup(f, in.Ref).(*form.Question)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotQuestion, in.Ref)
	}
	if *in.Index == len(q.Answers()) {
		a, err := q.AddAnswer(in.Value)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("%w: %s", ErrCapacity, in.Ref)
		}
		return nil
	}
	return q.SetAnswer(*in.Index, in.Value)
}

func addItem(f *form.Form, ref string) (string, error) {
	switch n := lookup(f, ref).(type) {
	case *form.RepeatingGroup:
		g := n.AddNode()
		if g == nil {
			return "", fmt.Errorf("%w: %s", ErrCapacity, ref)
		}
		return g.Key(), nil
	case *form.Question:
		if !n.Item().Repeats {
			return "", badRequest(fmt.Sprintf("%s does not repeat", ref))
		}
		a, err := n.AddAnswer(nil)
		if err != nil {
			return "", err
		}
		if a == nil {
			return "", fmt.Errorf("%w: %s", ErrCapacity, ref)
		}
		return a.Key(), nil
	case nil:
		return "", fmt.Errorf("%w: %s", domain.ErrNodeNotFound, ref)
	default:
		return "", badRequest(fmt.Sprintf("%s does not repeat", ref))
	}
}

// lookup resolves ref as a linkID visible from the root, then as a node key.
func lookup(f *form.Form, ref string) form.Node {
	if n := f.Find(ref); n != nil {
		return n
	}
	return f.Node(ref)
}

func isIssueList(err error) bool {
	var issues domain.IssueList
	return errors.As(err, &issues)
}

func (s *Server) broadcast(view SessionView) {
	payload, err := json.Marshal(view)
	if err != nil {
		s.logger.Error("session view encode failed", "session_id", view.ID, "err", err)
		return
	}
	s.Streams.Broadcast(view.ID, string(payload))
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, badRequest("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func statusOf(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, schema.ErrCoercion),
		errors.Is(err, domain.ErrNotQuestion),
		errors.Is(err, form.ErrAnswerIndex),
		errors.Is(err, form.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionnaireNotFound),
		errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, form.ErrReadOnly),
		errors.Is(err, ErrCapacity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

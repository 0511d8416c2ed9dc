package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/formtree/pkg/adapters/memory"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/dsl"
	"github.com/aretw0/formtree/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intakeLoader(t *testing.T) *memory.Loader {
	t.Helper()
	b := dsl.New("intake").Title("Intake")
	b.Add("name", domain.TypeString).Required()
	b.Add("age", domain.TypeInteger)
	b.Add("smoker", domain.TypeBoolean)
	b.Add("packs", domain.TypeInteger).EnableWhen("smoker", domain.OpEqual, domain.Bool(true))
	b.Add("phones", domain.TypeString).Repeats().MaxOccurs(2)
	b.Add("household", domain.TypeGroup).Repeats().Add("member", domain.TypeString)
	b.Add("total", domain.TypeInteger).ReadOnly()
	loader, err := b.Loader()
	require.NoError(t, err)
	return loader
}

type fixture struct {
	handler  http.Handler
	server   *Server
	sessions *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loader := intakeLoader(t)
	n := 0
	sessions := session.NewManager(loader, memory.NewStore(), session.WithIDGenerator(func() string {
		n++
		return "s" + string(rune('0'+n))
	}))
	t.Cleanup(sessions.Close)
	srv := NewServer(sessions, loader, WithVersion("test"))
	return &fixture{handler: srv.Routes(), server: srv, sessions: sessions}
}

func (fx *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.handler.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) SessionView {
	t.Helper()
	var v SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func findNode(v SessionView, key string) *NodeView {
	for i := range v.Nodes {
		if v.Nodes[i].Key == key {
			return &v.Nodes[i]
		}
	}
	return nil
}

func (fx *fixture) create(t *testing.T) string {
	t.Helper()
	w := fx.do(t, http.MethodPost, "/sessions", CreateSessionRequest{Questionnaire: "intake"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeView(t, w).ID
}

func TestHealthAndQuestionnaires(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test","api_version":"1.0.0"}`, w.Body.String())

	w = fx.do(t, http.MethodGet, "/questionnaires", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["intake"]`, w.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	fx := newFixture(t)
	id := fx.create(t)
	assert.Equal(t, "s1", id)

	w := fx.do(t, http.MethodPut, "/sessions/"+id+"/answers", SetAnswersRequest{Answers: []AnswerInput{
		{Ref: "name", Value: "Ada"},
		{Ref: "age", Value: 36},
		{Ref: "smoker", Value: true},
		{Ref: "packs", Value: 2},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decodeView(t, w)
	assert.True(t, view.Valid)
	assert.Equal(t, "intake", view.Response.Questionnaire)
	require.Len(t, view.Response.Item, 4)
	require.NotNil(t, view.Response.Item[1].Answer[0].ValueInteger)
	assert.Equal(t, int64(36), *view.Response.Item[1].Answer[0].ValueInteger)

	packs := findNode(view, "packs")
	require.NotNil(t, packs)
	assert.True(t, packs.Enabled)

	w = fx.do(t, http.MethodPut, "/sessions/"+id+"/answers", SetAnswersRequest{Answers: []AnswerInput{
		{Ref: "smoker", Value: false},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	view = decodeView(t, w)
	assert.False(t, findNode(view, "packs").Enabled)
	assert.Len(t, view.Response.Item, 3, "disabled answers are left out")

	w = fx.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeView(t, w).Response.Item, 3)

	w = fx.do(t, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = fx.do(t, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSession_Seeded(t *testing.T) {
	fx := newFixture(t)
	seed := &domain.QuestionnaireResponse{
		Questionnaire: "intake",
		Status:        domain.StatusInProgress,
		Item:          []domain.ResponseItem{{LinkID: "name", Answer: []domain.ResponseAnswer{{Value: domain.String("Grace")}}}},
	}

	w := fx.do(t, http.MethodPost, "/sessions", CreateSessionRequest{Response: seed})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	view := decodeView(t, w)
	require.Len(t, view.Response.Item, 1)
	assert.Equal(t, "Grace", view.Response.Item[0].Answer[0].ValueString)
}

func TestRepeatingItems(t *testing.T) {
	fx := newFixture(t)
	id := fx.create(t)

	w := fx.do(t, http.MethodPost, "/sessions/"+id+"/items", AddItemRequest{Ref: "household"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var added AddItemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	assert.Equal(t, "household[1]", added.Key)

	w = fx.do(t, http.MethodPut, "/sessions/"+id+"/answers", SetAnswersRequest{Answers: []AnswerInput{
		{Ref: added.Key + "/member", Value: "Bea"},
		{Ref: "phones", Value: "555-0100"},
		{Ref: "phones", Index: ptr(1), Value: "555-0101"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decodeView(t, w)
	phones := findNode(view, "phones")
	require.NotNil(t, phones)
	assert.Len(t, phones.Answers, 2)
	assert.False(t, phones.CanAdd)

	w = fx.do(t, http.MethodPost, "/sessions/"+id+"/items", AddItemRequest{Ref: "phones"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = fx.do(t, http.MethodPost, "/sessions/"+id+"/items", AddItemRequest{Ref: "name"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	fx := newFixture(t)
	id := fx.create(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown questionnaire", http.MethodPost, "/sessions", CreateSessionRequest{Questionnaire: "nope"}, http.StatusNotFound},
		{"missing questionnaire", http.MethodPost, "/sessions", CreateSessionRequest{}, http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/sessions/missing", nil, http.StatusNotFound},
		{"unknown node", http.MethodPut, "/sessions/" + id + "/answers", SetAnswersRequest{Answers: []AnswerInput{{Ref: "ghost", Value: 1}}}, http.StatusNotFound},
		{"coercion", http.MethodPut, "/sessions/" + id + "/answers", SetAnswersRequest{Answers: []AnswerInput{{Ref: "age", Value: "old"}}}, http.StatusBadRequest},
		{"not a question", http.MethodPut, "/sessions/" + id + "/answers", SetAnswersRequest{Answers: []AnswerInput{{Ref: "household", Value: "x"}}}, http.StatusBadRequest},
		{"read-only", http.MethodPut, "/sessions/" + id + "/answers", SetAnswersRequest{Answers: []AnswerInput{{Ref: "total", Value: 3}}}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := fx.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}

	w := fx.do(t, http.MethodPost, "/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "an empty body is rejected")
}

func TestOpenAPIDocument(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(t, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/sessions/{id}/answers:")

	w = fx.do(t, http.MethodGet, "/swagger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "url: '/openapi.yaml'")
}

func TestRequestValidation(t *testing.T) {
	fx := newFixture(t)
	id := fx.create(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{"answers not a list", http.MethodPut, "/sessions/" + id + "/answers", `{"answers": "name"}`, "/answers"},
		{"answer without ref", http.MethodPut, "/sessions/" + id + "/answers", `{"answers": [{"value": "Ada"}]}`, "ref"},
		{"negative index", http.MethodPut, "/sessions/" + id + "/answers", `{"answers": [{"ref": "phones", "index": -1, "value": "x"}]}`, "/answers/0/index"},
		{"empty item ref", http.MethodPost, "/sessions/" + id + "/items", `{"ref": ""}`, "/ref"},
		{"submit not a bool", http.MethodPost, "/sessions/" + id + "/validate", `{"submit": "yes"}`, "/submit"},
		{"malformed body", http.MethodPost, "/sessions", `{"questionnaire":`, "invalid request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			fx.handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.want)
		})
	}

	w := fx.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeView(t, w).Response.Item, "rejected requests change nothing")

	w = httptest.NewRecorder()
	fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/sessions/"+id+"/answers",
		strings.NewReader(`{"answers": [{"ref": "name", "value": "Ada"}, {"ref": "age", "value": null}]}`)))
	assert.Equal(t, http.StatusOK, w.Code, "a body without Content-Type is read as JSON; null values pass: %s", w.Body.String())

	w = fx.do(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "undocumented paths fall through to the router")
}

func TestValidate(t *testing.T) {
	fx := newFixture(t)
	id := fx.create(t)

	w := fx.do(t, http.MethodPost, "/sessions/"+id+"/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeView(t, w)
	assert.False(t, view.Valid)
	require.Len(t, view.Issues, 1)
	assert.Equal(t, domain.IssueRequired, view.Issues[0].Code)
	assert.Equal(t, "name", view.Issues[0].LinkID)

	w = fx.do(t, http.MethodPost, "/sessions/"+id+"/validate", ValidateRequest{Submit: true})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEqual(t, domain.StatusCompleted, decodeView(t, w).Response.Status)

	fx.do(t, http.MethodPut, "/sessions/"+id+"/answers", SetAnswersRequest{Answers: []AnswerInput{{Ref: "name", Value: "Ada"}}})
	w = fx.do(t, http.MethodPost, "/sessions/"+id+"/validate", ValidateRequest{Submit: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.StatusCompleted, decodeView(t, w).Response.Status)

	stored, err := fx.sessions.Store().Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status, "validation results are persisted")
}

func TestCORSPreflight(t *testing.T) {
	fx := newFixture(t)
	w := fx.do(t, http.MethodOptions, "/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStreamManager(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe("s1")

	assert.Equal(t, 1, sm.Broadcast("s1", "hello"))
	assert.Equal(t, 0, sm.Broadcast("s2", "ignored"))
	assert.Equal(t, "hello", <-ch)

	for i := 0; i < 20; i++ {
		sm.Broadcast("s1", "flood")
	}
	assert.Len(t, ch, 10, "slow subscribers drop messages")

	cancel()
	cancel()
	assert.Equal(t, 0, sm.Broadcast("s1", "after"))
}

func TestSubscribeEvents_Session(t *testing.T) {
	fx := newFixture(t)
	id := fx.create(t)
	ts := httptest.NewServer(fx.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?session_id="+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	fx.do(t, http.MethodPut, "/sessions/"+id+"/answers", SetAnswersRequest{Answers: []AnswerInput{{Ref: "name", Value: "Ada"}}})

	var data string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	require.NotEmpty(t, data)
	var view SessionView
	require.NoError(t, json.Unmarshal([]byte(data), &view))
	assert.Equal(t, id, view.ID)
	assert.Equal(t, "Ada", view.Response.Item[0].Answer[0].ValueString)
}

type watchableLoader struct {
	*memory.Loader
	events chan struct{}
}

func (w *watchableLoader) Watch(ctx context.Context) (<-chan struct{}, error) {
	return w.events, nil
}

func TestSubscribeEvents_Reload(t *testing.T) {
	loader := &watchableLoader{Loader: intakeLoader(t), events: make(chan struct{}, 1)}
	loader.events <- struct{}{}
	close(loader.events)

	sessions := session.NewManager(loader, memory.NewStore())
	defer sessions.Close()
	handler := NewHandler(sessions, loader)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, "event: reload")
}

func TestSubscribeEvents_ReloadUnsupported(t *testing.T) {
	fx := newFixture(t)
	w := httptest.NewRecorder()
	fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func ptr[T any](v T) *T { return &v }

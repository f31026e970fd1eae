package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/azdrill/internal/model"
	"github.com/verte-zerg/azdrill/internal/quiz"
)

type memStore struct {
	m   model.Mapping
	err error
}

func (s *memStore) Load(context.Context) (model.Mapping, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := model.Mapping{}
	for k, v := range s.m {
		out[k] = append([]string(nil), v...)
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, m model.Mapping) error {
	if s.err != nil {
		return s.err
	}
	s.m = m
	return nil
}

type memSink struct {
	records []string
	entries []model.ResultEntry
}

func (s *memSink) Record(_ context.Context, label, status string) error {
	s.records = append(s.records, label+":"+status)
	return nil
}

func (s *memSink) Results(context.Context) ([]model.ResultEntry, error) {
	return s.entries, nil
}

type fakeCatalog struct{}

func (fakeCatalog) Sheet() string             { return "Fruit" }
func (fakeCatalog) Sheets() ([]string, error) { return []string{"Fruit", "Cafes"}, nil }

func newTestServer(t *testing.T, store *memStore, mutate func(*Deps)) (*httptest.Server, *memSink) {
	t.Helper()
	sink := &memSink{}
	deps := Deps{
		Items:   store,
		Catalog: fakeCatalog{},
		Sink:    sink,
		Results: sink,
		Options: quiz.Options{Rand: rand.New(rand.NewSource(3))},
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := httptest.NewServer(NewServer(deps).Handler())
	t.Cleanup(srv.Close)
	return srv, sink
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected status %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

func fruitStore() *memStore {
	return &memStore{m: model.Mapping{"A": {"Apple"}, "B": {"Banana"}}}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, fruitStore(), nil)
	var body map[string]string
	expectStatus(t, doJSON(t, srv, http.MethodGet, "/healthz", nil, &body), http.StatusOK)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSessionLifecycleErrors(t *testing.T) {
	srv, _ := newTestServer(t, fruitStore(), nil)
	expectStatus(t, doJSON(t, srv, http.MethodGet, "/api/session", nil, nil), http.StatusNotFound)

	var view sessionView
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session", nil, &view), http.StatusCreated)
	if view.Phase != "stage-select" || view.Label != "Fruit" || view.Items != 2 {
		t.Fatalf("unexpected session %+v", view)
	}
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session/advance", nil, nil), http.StatusConflict)
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session/stage", stageRequest{Mode: "bogus"}, nil), http.StatusBadRequest)

	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session/stage", stageRequest{Mode: "practice"}, &view), http.StatusOK)
	if view.Phase != "practice" || len(view.Practice) != 2 || view.ShouldSaveResults {
		t.Fatalf("unexpected practice session %+v", view)
	}
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session/advance", nil, &view), http.StatusOK)
	if view.Phase != "done" {
		t.Fatalf("expected done, got %s", view.Phase)
	}

	expectStatus(t, doJSON(t, srv, http.MethodDelete, "/api/session", nil, nil), http.StatusNoContent)
	expectStatus(t, doJSON(t, srv, http.MethodDelete, "/api/session", nil, nil), http.StatusNotFound)
}

func TestStartWithoutData(t *testing.T) {
	srv, _ := newTestServer(t, &memStore{m: model.Mapping{"A": {"  "}}}, nil)
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session", nil, nil), http.StatusConflict)
}

func TestFinalReviewFlowRecordsResult(t *testing.T) {
	srv, sink := newTestServer(t, fruitStore(), nil)
	var view sessionView
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session", stageRequest{Mode: "final"}, &view), http.StatusCreated)
	if view.Prompt == nil || !reflect.DeepEqual(view.Prompt.Values, []string{"Apple"}) {
		t.Fatalf("unexpected prompt %+v", view.Prompt)
	}
	if view.Prompt.Key != "" {
		t.Fatalf("final review prompt must not reveal the key")
	}

	var resp answerResponse
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session/answer", answerRequest{Answer: "a"}, &resp), http.StatusOK)
	if resp.Feedback.Outcome != "correct" || resp.Feedback.Remaining != 1 {
		t.Fatalf("unexpected feedback %+v", resp.Feedback)
	}
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session/answer", answerRequest{Answer: "B"}, &resp), http.StatusOK)
	if !resp.Feedback.Completed || !resp.Feedback.Saved || resp.Session.Phase != "done" {
		t.Fatalf("expected completed session, got %+v", resp)
	}
	if !reflect.DeepEqual(sink.records, []string{"Fruit:Completed"}) {
		t.Fatalf("unexpected records %v", sink.records)
	}
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session/answer", answerRequest{Answer: "a"}, nil), http.StatusConflict)
}

func TestReviewCooldownRejectsAnswers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv, _ := newTestServer(t, fruitStore(), func(d *Deps) {
		d.Options.ReviewThreshold = 1
		d.Options.ReviewCooldown = 45 * time.Second
		d.Options.Now = func() time.Time { return now }
	})
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session", stageRequest{Mode: "final"}, nil), http.StatusCreated)

	var resp answerResponse
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session/answer", answerRequest{Answer: "z"}, &resp), http.StatusOK)
	if resp.Feedback.Outcome != "incorrect" || !resp.Feedback.Restarted || resp.Feedback.Expected != "A" {
		t.Fatalf("unexpected feedback %+v", resp.Feedback)
	}
	if len(resp.Feedback.Review) != 2 || resp.Feedback.ReviewUntil == nil {
		t.Fatalf("expected review with cooldown, got %+v", resp.Feedback)
	}

	r := doJSON(t, srv, http.MethodPost, "/api/session/answer", answerRequest{Answer: "a"}, nil)
	expectStatus(t, r, http.StatusTooManyRequests)
	if got := r.Header.Get("Retry-After"); got != "45" {
		t.Fatalf("expected Retry-After 45, got %q", got)
	}

	var items []itemView
	expectStatus(t, doJSON(t, srv, http.MethodGet, "/api/session/review", nil, &items), http.StatusOK)
	if len(items) != 2 || items[0].Value != "Apple" {
		t.Fatalf("unexpected review items %v", items)
	}
}

func TestValueEndpoints(t *testing.T) {
	store := fruitStore()
	srv, _ := newTestServer(t, store, nil)

	var table map[string][]string
	expectStatus(t, doJSON(t, srv, http.MethodGet, "/api/abc", nil, &table), http.StatusOK)
	if len(table) != 26 || !reflect.DeepEqual(table["A"], []string{"Apple"}) || len(table["Z"]) != 0 {
		t.Fatalf("unexpected table %v", table)
	}

	expectStatus(t, doJSON(t, srv, http.MethodPut, "/api/abc/c", valuesRequest{Values: []string{"Cherry, Cranberry"}}, &table), http.StatusOK)
	if !reflect.DeepEqual(store.m["C"], []string{"Cherry", "Cranberry"}) {
		t.Fatalf("unexpected stored values %v", store.m["C"])
	}
	expectStatus(t, doJSON(t, srv, http.MethodPut, "/api/abc/1", valuesRequest{Values: []string{"x"}}, nil), http.StatusBadRequest)

	expectStatus(t, doJSON(t, srv, http.MethodDelete, "/api/abc/C", nil, &table), http.StatusOK)
	if _, ok := store.m["C"]; ok {
		t.Fatalf("expected C to be cleared")
	}
}

func TestStoreFailureMapsToBadGateway(t *testing.T) {
	srv, _ := newTestServer(t, &memStore{err: errors.New("disk gone")}, nil)
	expectStatus(t, doJSON(t, srv, http.MethodGet, "/api/abc", nil, nil), http.StatusBadGateway)
	expectStatus(t, doJSON(t, srv, http.MethodPost, "/api/session", nil, nil), http.StatusBadGateway)
}

func TestResultsAndSheets(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv, sink := newTestServer(t, fruitStore(), nil)
	sink.entries = []model.ResultEntry{
		{ID: "3", RecordedAt: base.Add(2 * time.Hour), Label: "Fruit", Status: "Completed"},
		{ID: "2", RecordedAt: base.Add(time.Hour), Label: "Cafes", Status: "Completed"},
		{ID: "1", RecordedAt: base, Label: "Fruit", Status: "Completed"},
	}

	var results []resultView
	expectStatus(t, doJSON(t, srv, http.MethodGet, "/api/results?label=Fruit&last=1", nil, &results), http.StatusOK)
	if len(results) != 1 || results[0].ID != "3" {
		t.Fatalf("unexpected results %v", results)
	}
	expectStatus(t, doJSON(t, srv, http.MethodGet, "/api/results?last=x", nil, nil), http.StatusBadRequest)

	var sheets sheetsView
	expectStatus(t, doJSON(t, srv, http.MethodGet, "/api/sheets", nil, &sheets), http.StatusOK)
	if sheets.Active != "Fruit" || len(sheets.Sheets) != 2 {
		t.Fatalf("unexpected sheets %+v", sheets)
	}
}

func TestConcurrentValueUpdatesKeepEveryKey(t *testing.T) {
	store := &memStore{m: model.Mapping{}}
	srv, _ := newTestServer(t, store, nil)

	keys := model.Keys()
	errs := make(chan error, len(keys))
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key model.Key) {
			defer wg.Done()
			body, err := json.Marshal(valuesRequest{Values: []string{string(key) + "-value"}})
			if err != nil {
				errs <- err
				return
			}
			req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/abc/"+string(key), bytes.NewReader(body))
			if err != nil {
				errs <- err
				return
			}
			resp, err := srv.Client().Do(req)
			if err != nil {
				errs <- err
				return
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- errors.New(resp.Status)
			}
		}(key)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("put: %v", err)
	}

	if len(store.m) != len(keys) {
		t.Fatalf("expected %d keys after concurrent updates, got %d", len(keys), len(store.m))
	}
	for _, key := range keys {
		if want := []string{string(key) + "-value"}; !reflect.DeepEqual(store.m[key], want) {
			t.Fatalf("key %s: expected %v, got %v", key, want, store.m[key])
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veleth/ansuz/internal/apperr"
	"github.com/veleth/ansuz/internal/models"
	"github.com/veleth/ansuz/internal/reconcile"
	"github.com/veleth/ansuz/internal/source"
)

// fakeRunner satisfies Runner without any remote store.
type fakeRunner struct {
	report  reconcile.Report
	runErr  error
	preview []models.Card
	runs    int
}

func (f *fakeRunner) Run(ctx context.Context) (reconcile.Report, error) {
	f.runs++
	return f.report, f.runErr
}

func (f *fakeRunner) ExtractPreview(doc source.Source) []models.Card {
	return f.preview
}

func serve(t *testing.T, r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSyncReturnsReport(t *testing.T) {
	runner := &fakeRunner{report: reconcile.Report{Created: 2, Skipped: 1}}
	r := NewRouter(runner, nil, false, "", nil)

	rec := serve(t, r, httptest.NewRequest(http.MethodPost, "/sync", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var got reconcile.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Created != 2 || got.Skipped != 1 {
		t.Errorf("report = %+v", got)
	}
	if runner.runs != 1 {
		t.Errorf("runs = %d", runner.runs)
	}
}

func TestSyncUnreachableStoreIsBadGateway(t *testing.T) {
	runner := &fakeRunner{runErr: fmt.Errorf("probe: %w", apperr.ErrUnreachable)}
	r := NewRouter(runner, nil, false, "", nil)

	rec := serve(t, r, httptest.NewRequest(http.MethodPost, "/sync", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unreachable") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestExtractPreview(t *testing.T) {
	runner := &fakeRunner{preview: []models.Card{
		{Kind: models.KindShortAnswer, Prompt: "scratch\ndefinition", Answer: "a thing"},
	}}
	r := NewRouter(runner, nil, false, "", nil)

	body := strings.NewReader(`{"name": "scratch", "content": "definition: a thing"}`)
	req := httptest.NewRequest(http.MethodPost, "/extract", body)
	rec := serve(t, r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var got struct {
		Cards []models.Card `json:"cards"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Total != 1 || len(got.Cards) != 1 {
		t.Errorf("response = %+v", got)
	}
}

func TestExtractRejectsMissingContent(t *testing.T) {
	r := NewRouter(&fakeRunner{}, nil, false, "", nil)

	for _, body := range []string{`{}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(body))
		rec := serve(t, r, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestExtractEmptyResultIsArray(t *testing.T) {
	r := NewRouter(&fakeRunner{}, nil, false, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{"content": "plain prose"}`))
	rec := serve(t, r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"cards":[]`) {
		t.Errorf("body = %s, want empty array not null", rec.Body)
	}
}

func TestRunsWithoutLedger(t *testing.T) {
	r := NewRouter(&fakeRunner{}, nil, false, "", nil)

	rec := serve(t, r, httptest.NewRequest(http.MethodGet, "/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"runs":[]`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	r := NewRouter(&fakeRunner{}, nil, true, "secret", nil)

	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	if rec := serve(t, r, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/sync", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := serve(t, r, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/sync", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if rec := serve(t, r, req); rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
}

package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/component"
	"github.com/kailas-cloud/rankdex/internal/config"
	"github.com/kailas-cloud/rankdex/internal/domain"
	"github.com/kailas-cloud/rankdex/internal/metrics"
	healthuc "github.com/kailas-cloud/rankdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/rankdex/internal/usecase/ingest"
	retrieveuc "github.com/kailas-cloud/rankdex/internal/usecase/retrieve"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

// emitBackend returns n synthetic candidates and accepts documents.
type emitBackend struct {
	name     string
	n        int
	ingested []domain.Document
}

func (b *emitBackend) Name() string { return b.name }

func (b *emitBackend) Retrieve(_ context.Context, _ domain.Query, in domain.CandidateSet, topK int) (domain.CandidateSet, error) {
	if b.n == 0 {
		return in.Truncate(topK), nil
	}
	out := make(domain.CandidateSet, b.n)
	for i := range out {
		out[i] = domain.Document{ID: fmt.Sprintf("%s-%d", b.name, i), Content: "text", Score: 1.0}
	}
	return out.Truncate(topK), nil
}

func (b *emitBackend) Ingest(_ context.Context, docs []domain.Document) error {
	b.ingested = append(b.ingested, docs...)
	return nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, dbErr error, maxBatch int) (*Server, *chi.Mux) {
	t.Helper()

	reg := component.NewRegistry()
	reg.Register("emit", func(name string, params component.Params, _ component.Deps) (component.Component, error) {
		n, err := params.Int("n", 0)
		if err != nil {
			return nil, err
		}
		return &emitBackend{name: name, n: n}, nil
	})

	rcfg := config.RetrievalConfig{Stages: []config.StageConfig{
		{
			Name: "recall", Type: "emit", TopK: 3,
			Degrade: config.DegradePassthrough,
			Cache:   config.CacheConfig{Variant: config.CacheNone},
			Params:  map[string]string{"n": "3"},
		},
	}}

	retrieveSvc, err := retrieveuc.Build(rcfg, reg, component.Deps{}, zap.NewNop())
	if err != nil {
		t.Fatalf("build retrieve service: %v", err)
	}

	ingestSvc := ingestuc.New(retrieveSvc.Ingestors(), maxBatch, zap.NewNop())
	healthSvc := healthuc.New(fakePinger{err: dbErr}, nil)

	srv := NewServer(retrieveSvc, ingestSvc, healthSvc, zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)
	return srv, r
}

func TestRetrieve_OK(t *testing.T) {
	_, r := newTestServer(t, nil, 10)

	body := `{"query": "what is retrieval"}`
	req := httptest.NewRequest("POST", "/v1/retrieve", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var result domain.Result
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Documents) != 3 {
		t.Errorf("expected 3 documents, got %d", len(result.Documents))
	}
	if len(result.Diagnostics.Stages) != 1 {
		t.Errorf("expected 1 stage outcome, got %d", len(result.Diagnostics.Stages))
	}
}

func TestRetrieve_TopKOverride(t *testing.T) {
	_, r := newTestServer(t, nil, 10)

	body := `{"query": "q", "top_k": {"recall": 1}}`
	req := httptest.NewRequest("POST", "/v1/retrieve", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}

	var result domain.Result
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Documents) != 1 {
		t.Errorf("expected 1 document with override, got %d", len(result.Documents))
	}
}

func TestRetrieve_EmptyQuery_400(t *testing.T) {
	_, r := newTestServer(t, nil, 10)

	req := httptest.NewRequest("POST", "/v1/retrieve", strings.NewReader(`{"query": "   "}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRetrieve_InvalidBody_400(t *testing.T) {
	_, r := newTestServer(t, nil, 10)

	req := httptest.NewRequest("POST", "/v1/retrieve", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestIngestDocuments_OK(t *testing.T) {
	_, r := newTestServer(t, nil, 10)

	body := `{"documents": [{"id": "d1", "content": "alpha"}, {"content": "beta"}]}`
	req := httptest.NewRequest("POST", "/v1/documents", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.IDs) != 2 {
		t.Errorf("expected 2 ids, got %+v", resp)
	}
	if resp.IDs[0] != "d1" {
		t.Errorf("expected existing ID preserved, got %s", resp.IDs[0])
	}
	if resp.IDs[1] == "" {
		t.Error("expected generated ID for second doc")
	}
}

func TestIngestDocuments_Oversized_400(t *testing.T) {
	_, r := newTestServer(t, nil, 1)

	body := `{"documents": [{"content": "a"}, {"content": "b"}]}`
	req := httptest.NewRequest("POST", "/v1/documents", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeBadRequest {
		t.Errorf("error code: got %s, want %s", errResp.Code, codeBadRequest)
	}
}

func TestIngestDocuments_NotSupported_501(t *testing.T) {
	srv, _ := newTestServer(t, nil, 10)
	srv.ingest = ingestuc.New(nil, 10, zap.NewNop())

	r := chi.NewRouter()
	srv.Routes(r)

	body := `{"documents": [{"content": "a"}]}`
	req := httptest.NewRequest("POST", "/v1/documents", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Errorf("got %d, want %d", rr.Code, http.StatusNotImplemented)
	}
}

func TestHealthCheck_OK(t *testing.T) {
	_, r := newTestServer(t, nil, 10)

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status: got %s, want ok", resp.Status)
	}
}

func TestHealthCheck_DatabaseDown_503(t *testing.T) {
	_, r := newTestServer(t, fmt.Errorf("connection refused"), 10)

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, r := newTestServer(t, nil, 10)

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("got %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("expected prometheus exposition output")
	}
}

func TestSafeDomainMessage(t *testing.T) {
	if got := safeDomainMessage(fmt.Errorf("batch: %w", domain.ErrConfiguration)); got != domain.ErrConfiguration.Error() {
		t.Errorf("got %q", got)
	}
	if got := safeDomainMessage(fmt.Errorf("redis: connection refused to 10.0.0.1")); got != "internal error" {
		t.Errorf("unexpected leak: %q", got)
	}
}

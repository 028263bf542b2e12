package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"txbridge/internal/application"
	"txbridge/internal/config"
	"txbridge/internal/domain"
)

type mockService struct {
	submitHash string
	submitErr  error
	submitted  []string
	tracked    []application.TrackOptions
	trackErr   error
	callResult any
	callErr    error
	balance    string
}

func (m *mockService) CreateWallet() (string, string, error) {
	return "0x00000000000000000000000000000000000000aa", "0xsecret", nil
}

func (m *mockService) GetBalance(ctx context.Context, address string) (string, error) {
	return m.balance, nil
}

func (m *mockService) Submit(ctx context.Context, sender, privateKey, contractName, contractAddress, function string, args ...any) (string, error) {
	if m.submitErr != nil {
		return "", m.submitErr
	}
	m.submitted = append(m.submitted, contractName+"."+function)
	return m.submitHash, nil
}

func (m *mockService) Track(ctx context.Context, txHash string, opts application.TrackOptions) error {
	m.tracked = append(m.tracked, opts)
	return m.trackErr
}

func (m *mockService) Call(ctx context.Context, contractName, contractAddress, function string, args ...any) (any, error) {
	return m.callResult, m.callErr
}

type mockQuerier struct {
	records []domain.Transaction
	pingErr error
}

func (m *mockQuerier) GetTransaction(ctx context.Context, chainID uint64, txHash string) (domain.Transaction, bool, error) {
	for _, tx := range m.records {
		if tx.TxHash == strings.ToLower(txHash) {
			return tx, true, nil
		}
	}
	return domain.Transaction{}, false, nil
}

func (m *mockQuerier) QueryTransactions(ctx context.Context, filter application.TransactionQueryFilter) ([]domain.Transaction, error) {
	return m.records, nil
}

func (m *mockQuerier) Ping(ctx context.Context) error {
	return m.pingErr
}

type mockRPC struct {
	err error
}

func (m *mockRPC) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return 100, m.err
}

func newTestServer(t *testing.T, service *mockService, store *mockQuerier) *Server {
	t.Helper()
	server, err := NewServer(config.Config{ChainID: 1}, service, store, &mockRPC{}, NewMetrics(), BuildInfo{Version: "test"})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func TestHealthAndReady(t *testing.T) {
	server := newTestServer(t, &mockService{}, &mockQuerier{})
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz: expected 200, got %d", rec.Code)
	}
}

func TestReadyFailsWhenStoreDown(t *testing.T) {
	server := newTestServer(t, &mockService{}, &mockQuerier{pingErr: errors.New("down")})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestCreateWallet(t *testing.T) {
	server := newTestServer(t, &mockService{}, &mockQuerier{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/wallets", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["address"] == "" || body["private_key"] == "" {
		t.Errorf("incomplete wallet response %v", body)
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallets", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestSubmitDispatchesTracking(t *testing.T) {
	service := &mockService{submitHash: "0xhash"}
	server := newTestServer(t, service, &mockQuerier{})

	body := `{"sender":"0xabc","private_key":"0xkey","contract_name":"token","function":"set","args":[42],"hook":"notify"}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(service.tracked) != 1 || !service.tracked[0].Dispatch {
		t.Fatalf("expected one dispatched track, got %+v", service.tracked)
	}
	if service.tracked[0].Hook != "notify" {
		t.Errorf("hook not forwarded: %+v", service.tracked[0])
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["tx_hash"] != "0xhash" || resp["status"] != "unconfirmed" {
		t.Errorf("unexpected response %v", resp)
	}
}

func TestSubmitValidationRejection(t *testing.T) {
	service := &mockService{submitErr: &domain.ValidationError{Message: "execution reverted"}}
	server := newTestServer(t, service, &mockQuerier{})

	body := `{"sender":"0xabc","private_key":"0xkey","contract_name":"token","function":"set"}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if len(service.tracked) != 0 {
		t.Error("rejected submission must not be tracked")
	}
}

func TestSubmitMissingFields(t *testing.T) {
	server := newTestServer(t, &mockService{}, &mockQuerier{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestQueryTransactionByHash(t *testing.T) {
	store := &mockQuerier{records: []domain.Transaction{{ChainID: 1, TxHash: "0xaaa", Status: domain.StatusAccepted}}}
	server := newTestServer(t, &mockService{}, store)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions?tx_hash=0xAAA", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions?tx_hash=0xmissing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown hash, got %d", rec.Code)
	}
}

func TestCallFailureStatus(t *testing.T) {
	service := &mockService{callErr: &domain.CallFailure{Message: "Insufficient funds."}}
	server := newTestServer(t, service, &mockQuerier{})

	body := `{"contract_name":"token","function":"get"}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(body)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["error"] != "Insufficient funds." {
		t.Errorf("unexpected error body %v", resp)
	}
}

func TestCallResult(t *testing.T) {
	service := &mockService{callResult: "42"}
	server := newTestServer(t, service, &mockQuerier{})

	body := `{"contract_name":"token","function":"get"}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["result"] != "42" {
		t.Errorf("unexpected result %v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, &mockService{}, &mockQuerier{})
	server.MetricsObserver().IncSubmission()
	server.MetricsObserver().OnConfirmation(true)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "txbridge_submissions_total 1") {
		t.Errorf("missing submissions counter:\n%s", out)
	}
	if !strings.Contains(out, "txbridge_confirmations_accepted_total 1") {
		t.Errorf("missing confirmations counter:\n%s", out)
	}
}

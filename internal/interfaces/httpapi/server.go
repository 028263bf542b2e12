package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"txbridge/internal/application"
	"txbridge/internal/config"
	"txbridge/internal/domain"
)

// TransactionService is the provider surface the API exposes. Private keys
// pass through request bodies only; they are never persisted or logged.
type TransactionService interface {
	CreateWallet() (address, privateKey string, err error)
	GetBalance(ctx context.Context, address string) (string, error)
	Submit(ctx context.Context, sender, privateKey, contractName, contractAddress, function string, args ...any) (string, error)
	Track(ctx context.Context, txHash string, opts application.TrackOptions) error
	Call(ctx context.Context, contractName, contractAddress, function string, args ...any) (any, error)
}

type TransactionQuerier interface {
	GetTransaction(ctx context.Context, chainID uint64, txHash string) (domain.Transaction, bool, error)
	QueryTransactions(ctx context.Context, filter application.TransactionQueryFilter) ([]domain.Transaction, error)
	Ping(ctx context.Context) error
}

type RPCStatus interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

type Server struct {
	cfg       config.Config
	provider  TransactionService
	store     TransactionQuerier
	rpc       RPCStatus
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(cfg config.Config, provider TransactionService, store TransactionQuerier, rpc RPCStatus, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if provider == nil || store == nil || rpc == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{cfg: cfg, provider: provider, store: store, rpc: rpc, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/wallets", s.handleWallets)
	mux.HandleFunc("/balance", s.handleBalance)
	mux.HandleFunc("/transactions", s.handleTransactions)
	mux.HandleFunc("/calls", s.handleCalls)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db not ready")
		return
	}
	if _, err := s.rpc.LatestBlockNumber(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "rpc not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	address, privateKey, err := s.provider.CreateWallet()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "wallet creation failed")
		return
	}
	s.metrics.IncWalletCreated()
	respondJSON(w, http.StatusCreated, map[string]string{
		"address":     address,
		"private_key": privateKey,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		respondError(w, http.StatusBadRequest, "address is required")
		return
	}
	balance, err := s.provider.GetBalance(r.Context(), address)
	if err != nil {
		respondError(w, http.StatusBadGateway, "balance query failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"address": address,
		"balance": balance,
	})
}

type submitRequest struct {
	Sender          string            `json:"sender"`
	PrivateKey      string            `json:"private_key"`
	ContractName    string            `json:"contract_name"`
	ContractAddress string            `json:"contract_address"`
	Function        string            `json:"function"`
	Args            []any             `json:"args"`
	Hook            string            `json:"hook"`
	HookArgs        map[string]string `json:"hook_args"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleQueryTransactions(w, r)
	case http.MethodPost:
		s.handleSubmitTransaction(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Sender == "" || req.PrivateKey == "" || req.ContractName == "" {
		respondError(w, http.StatusBadRequest, "sender, private_key and contract_name are required")
		return
	}

	txHash, err := s.provider.Submit(r.Context(), req.Sender, req.PrivateKey, req.ContractName, req.ContractAddress, req.Function, req.Args...)
	if err != nil {
		s.metrics.IncSubmissionErr()
		respondDomainError(w, err)
		return
	}
	s.metrics.IncSubmission()

	if err := s.provider.Track(r.Context(), txHash, application.TrackOptions{
		Dispatch: true,
		Hook:     req.Hook,
		HookArgs: req.HookArgs,
	}); err != nil {
		slog.Error("track dispatch failed", "tx_hash", txHash, "error", err)
		respondJSON(w, http.StatusAccepted, map[string]string{
			"tx_hash":  txHash,
			"status":   domain.StatusUnconfirmed.String(),
			"tracking": "dispatch_failed",
		})
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"tx_hash": txHash,
		"status":  domain.StatusUnconfirmed.String(),
	})
}

func (s *Server) handleQueryTransactions(w http.ResponseWriter, r *http.Request) {
	if txHash := r.URL.Query().Get("tx_hash"); txHash != "" && r.URL.Query().Get("sender") == "" {
		tx, ok, err := s.store.GetTransaction(r.Context(), s.cfg.ChainID, txHash)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "query failed")
			return
		}
		if !ok {
			respondError(w, http.StatusNotFound, "transaction not found")
			return
		}
		respondJSON(w, http.StatusOK, []domain.Transaction{tx})
		return
	}

	filter, err := parseTransactionFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	transactions, err := s.store.QueryTransactions(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	respondJSON(w, http.StatusOK, transactions)
}

type callRequest struct {
	ContractName    string `json:"contract_name"`
	ContractAddress string `json:"contract_address"`
	Function        string `json:"function"`
	Args            []any  `json:"args"`
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ContractName == "" || req.Function == "" {
		respondError(w, http.StatusBadRequest, "contract_name and function are required")
		return
	}

	result, err := s.provider.Call(r.Context(), req.ContractName, req.ContractAddress, req.Function, req.Args...)
	if err != nil {
		s.metrics.IncCallErr()
		respondDomainError(w, err)
		return
	}
	s.metrics.IncCall()
	respondJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.WritePrometheus(w)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func parseTransactionFilter(r *http.Request) (application.TransactionQueryFilter, error) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return application.TransactionQueryFilter{}, errors.New("invalid limit")
		}
		limit = value
	}

	var chainID *uint64
	if raw := r.URL.Query().Get("chain_id"); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return application.TransactionQueryFilter{}, errors.New("invalid chain_id")
		}
		chainID = &value
	}

	var status *domain.TransactionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		value, err := parseStatus(raw)
		if err != nil {
			return application.TransactionQueryFilter{}, err
		}
		status = &value
	}

	return application.TransactionQueryFilter{
		ChainID: chainID,
		Sender:  strings.ToLower(r.URL.Query().Get("sender")),
		TxHash:  strings.ToLower(r.URL.Query().Get("tx_hash")),
		Status:  status,
		Limit:   limit,
	}, nil
}

func parseStatus(raw string) (domain.TransactionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "unconfirmed":
		return domain.StatusUnconfirmed, nil
	case "accepted":
		return domain.StatusAccepted, nil
	case "rejected":
		return domain.StatusRejected, nil
	}
	return 0, fmt.Errorf("invalid status %q", raw)
}

func respondDomainError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		respondError(w, http.StatusBadRequest, validation.Message)
		return
	}
	var failure *domain.CallFailure
	if errors.As(err, &failure) {
		respondError(w, http.StatusUnprocessableEntity, failure.Message)
		return
	}
	switch {
	case errors.Is(err, domain.ErrContractNotFound), errors.Is(err, domain.ErrCallableNotFound), errors.Is(err, domain.ErrTransactionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

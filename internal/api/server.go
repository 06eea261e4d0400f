// Package api exposes the REST surface: portfolio analysis, swap quotes,
// trading-loop control and the trade journal.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sameermankotia/AptosAI/internal/auth"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
	"github.com/sameermankotia/AptosAI/internal/journal"
	"github.com/sameermankotia/AptosAI/internal/observability/metrics"
	"github.com/sameermankotia/AptosAI/internal/portfolio"
	"github.com/sameermankotia/AptosAI/internal/trading"
)

// Bounds on the trade listing endpoint.
const (
	defaultTradesLimit = 20
	maxTradesLimit     = 100
)

// Server serves the REST API.
type Server struct {
	addr       string
	aggregator *portfolio.Aggregator
	loop       *trading.Loop
	journal    journal.Store
	auth       *auth.Service

	// baseCtx outlives individual requests; the trading loop is started
	// against it rather than a request context.
	baseCtx context.Context
}

// NewServer wires the API against its collaborators.
func NewServer(addr string, aggregator *portfolio.Aggregator, loop *trading.Loop, store journal.Store, authSvc *auth.Service) *Server {
	return &Server{
		addr:       addr,
		aggregator: aggregator,
		loop:       loop,
		journal:    store,
		auth:       authSvc,
		baseCtx:    context.Background(),
	}
}

// Start serves until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler builds the routed handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/v1/portfolio/analyze", s.protect("portfolio_analyze", s.handleAnalyze))
	mux.Handle("/api/v1/swap/quote", s.protect("swap_quote", s.handleSwapQuote))
	mux.Handle("/api/v1/loop/start", s.protect("loop_start", s.handleLoopStart))
	mux.Handle("/api/v1/loop/stop", s.protect("loop_stop", s.handleLoopStop))
	mux.Handle("/api/v1/loop/status", s.protect("loop_status", s.handleLoopStatus))
	mux.Handle("/api/v1/trades", s.protect("trades", s.handleTrades))
	mux.Handle("/api/v1/trades/", s.protect("trade_detail", s.handleTradeDetail))
	return mux
}

// protect layers auth and request metrics around a handler.
func (s *Server) protect(name string, handler http.HandlerFunc) http.Handler {
	metered := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler(sw, r)
		metrics.ObserveHTTPRequest(name, r.Method, sw.status, time.Since(start))
	})
	if s.auth == nil {
		return metered
	}
	return s.auth.Middleware(metered)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "malformed request body"))
		return
	}
	analysis, err := s.aggregator.AnalyzePortfolio(r.Context(), req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type swapQuoteRequest struct {
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
}

func (s *Server) handleSwapQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var req swapQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "malformed request body"))
		return
	}
	suggestion, err := s.aggregator.SuggestOptimalSwap(r.Context(), req.FromToken, req.ToToken, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

func (s *Server) handleLoopStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if err := s.loop.Start(s.baseCtx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.loop.Status())
}

func (s *Server) handleLoopStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if err := s.loop.Stop(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.loop.Status())
}

func (s *Server) handleLoopStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, s.loop.Status())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	limit := defaultTradesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxTradesLimit {
		limit = maxTradesLimit
	}
	records, err := s.journal.ListLatest(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []journal.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTradeDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/trades/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "trade id is required"))
		return
	}
	record, err := s.journal.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError maps domain error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case xerrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	case xerrors.CodeNotFound, xerrors.CodePluginNotFound:
		status = http.StatusNotFound
	case xerrors.CodeUnknownAction:
		status = http.StatusBadRequest
	case xerrors.CodeLoopState:
		status = http.StatusConflict
	case xerrors.CodeInsufficientBalance, xerrors.CodePriceImpactTooHigh, xerrors.CodeDecisionAmbiguous:
		status = http.StatusUnprocessableEntity
	case xerrors.CodeSignerMissing:
		status = http.StatusPreconditionFailed
	case xerrors.CodeChainFailure, xerrors.CodeAdvisorFailure, xerrors.CodeStorageFailure, xerrors.CodeNotifyFailure:
		status = http.StatusBadGateway
	case xerrors.CodeTimeout:
		status = http.StatusGatewayTimeout
	}

	var body errorBody
	body.Error.Code = string(code)
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withContext rejects new requests once the root context is cancelled.
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}

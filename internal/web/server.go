package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/elys-network/tierpool/internal/logger"
	"github.com/elys-network/tierpool/internal/metrics"
	"github.com/elys-network/tierpool/internal/pool"
	"github.com/elys-network/tierpool/internal/state"
	"github.com/elys-network/tierpool/internal/types"
)

// PoolService is the subset of the pool service the HTTP surface drives.
type PoolService interface {
	Join(p types.Participant, amount sdkmath.Int, strategy types.Strategy) (types.JoinResult, error)
	Exit(p types.Participant, shares sdkmath.Int) (types.ExitResult, error)
	ChangeStrategy(p types.Participant, strategy types.Strategy) (types.ActionResult, error)
	Heartbeat(p types.Participant) (types.ActionResult, error)
	ClaimPoints(p types.Participant, epoch uint64) (types.ClaimRecord, error)

	PoolSummary() (pool.PoolSummary, error)
	ParticipantView(p types.Participant) (pool.ParticipantView, error)
	Epoch(index uint64) (types.EpochRecord, error)
	EpochView(p types.Participant, epoch uint64) (pool.EpochView, error)
	Snapshots() (types.LedgerSnapshot, types.ScoringSnapshot)
}

// WebServer serves the pool's read views and participant actions over HTTP.
type WebServer struct {
	router    *mux.Router
	logger    zerolog.Logger
	port      string
	service   PoolService
	startedAt time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, service PoolService) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		logger:    logger.GetForComponent("web_server"),
		port:      port,
		service:   service,
		startedAt: time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pool", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/epochs", ws.handleGetEpochHistory).Methods("GET")
	api.HandleFunc("/epochs/{epoch:[0-9]+}", ws.handleGetEpoch).Methods("GET")
	api.HandleFunc("/epochs/{epoch:[0-9]+}/claims", ws.handleGetEpochClaims).Methods("GET")
	api.HandleFunc("/claims", ws.handleGetClaims).Methods("GET")
	api.HandleFunc("/claims/stats", ws.handleGetClaimStats).Methods("GET")
	api.HandleFunc("/snapshot", ws.handleGetSnapshot).Methods("GET")

	api.HandleFunc("/participants/{address}", ws.handleGetParticipant).Methods("GET")
	api.HandleFunc("/participants/{address}/claims", ws.handleGetParticipantClaims).Methods("GET")
	api.HandleFunc("/participants/{address}/epochs/{epoch:[0-9]+}", ws.handleGetParticipantEpoch).Methods("GET")
	api.HandleFunc("/participants/{address}/join", ws.handleJoin).Methods("POST")
	api.HandleFunc("/participants/{address}/exit", ws.handleExit).Methods("POST")
	api.HandleFunc("/participants/{address}/strategy", ws.handleChangeStrategy).Methods("POST")
	api.HandleFunc("/participants/{address}/heartbeat", ws.handleHeartbeat).Methods("POST")
	api.HandleFunc("/participants/{address}/epochs/{epoch:[0-9]+}/claim", ws.handleClaim).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server
func (ws *WebServer) Start() error {
	ws.logger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth reports server, pool and database status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	poolInfo := map[string]interface{}{}
	if summary, err := ws.service.PoolSummary(); err != nil {
		hasErrors = true
		poolInfo["error"] = err.Error()
	} else {
		poolInfo["share_price"] = summary.SharePriceDisplay
		poolInfo["current_epoch"] = summary.CurrentEpoch
		poolInfo["last_finalized_epoch"] = summary.LastFinalizedEpoch
	}

	// A pool running without persistence is healthy; a configured but unreachable database is not.
	dbStatus := "disabled"
	if state.DB != nil {
		dbStatus = "ok"
		if err := state.TestDBConnection(); err != nil {
			dbStatus = "unreachable"
			hasErrors = true
		}
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.startedAt).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "tierpool",
			"version": "1.0.0",
		},
		"pool_status": map[string]interface{}{
			"database": dbStatus,
			"pool":     poolInfo,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPool returns the aggregate pool view
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.service.PoolSummary()
	if err != nil {
		ws.writePoolError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetEpoch returns a single epoch record
func (ws *WebServer) handleGetEpoch(w http.ResponseWriter, r *http.Request) {
	epoch, ok := ws.epochVar(w, r)
	if !ok {
		return
	}
	rec, err := ws.service.Epoch(epoch)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, rec)
}

// handleGetEpochHistory returns recently finalized epochs from the database
func (ws *WebServer) handleGetEpochHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	epochs, err := state.GetEpochHistory(limit)
	if err != nil {
		ws.writeStoreError(w, err, "Failed to retrieve epoch history")
		return
	}

	response := map[string]interface{}{
		"epochs": epochs,
		"count":  len(epochs),
		"limit":  limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetClaims returns recent point claims from the database
func (ws *WebServer) handleGetClaims(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	claims, err := state.GetRecentClaims(limit)
	if err != nil {
		ws.writeStoreError(w, err, "Failed to retrieve claims")
		return
	}

	response := map[string]interface{}{
		"claims": claims,
		"count":  len(claims),
		"limit":  limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetEpochClaims returns every persisted claim against one epoch
func (ws *WebServer) handleGetEpochClaims(w http.ResponseWriter, r *http.Request) {
	epoch, ok := ws.epochVar(w, r)
	if !ok {
		return
	}
	claims, err := state.GetClaimsForEpochs([]uint64{epoch})
	if err != nil {
		ws.writeStoreError(w, err, "Failed to retrieve epoch claims")
		return
	}

	response := map[string]interface{}{
		"epoch":  epoch,
		"claims": claims,
		"count":  len(claims),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetClaimStats returns aggregated claim statistics
func (ws *WebServer) handleGetClaimStats(w http.ResponseWriter, r *http.Request) {
	stats, err := state.GetClaimStats()
	if err != nil {
		ws.writeStoreError(w, err, "Failed to retrieve claim statistics")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, stats)
}

// handleGetSnapshot dumps the in-memory ledger and claim state
func (ws *WebServer) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	ledgerSnap, scoringSnap := ws.service.Snapshots()
	response := map[string]interface{}{
		"ledger":  ledgerSnap,
		"scoring": scoringSnap,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetParticipantClaims returns a participant's persisted claims
func (ws *WebServer) handleGetParticipantClaims(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.participantVar(w, r)
	if !ok {
		return
	}
	limit := queryLimit(r)
	claims, err := state.GetParticipantClaims(p, limit)
	if err != nil {
		ws.writeStoreError(w, err, "Failed to retrieve participant claims")
		return
	}

	response := map[string]interface{}{
		"participant": p,
		"claims":      claims,
		"count":       len(claims),
		"limit":       limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetParticipant returns a participant's balance, tier and points
func (ws *WebServer) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.participantVar(w, r)
	if !ok {
		return
	}
	view, err := ws.service.ParticipantView(p)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, view)
}

// handleGetParticipantEpoch returns a participant's entry and claimable points for an epoch
func (ws *WebServer) handleGetParticipantEpoch(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.participantVar(w, r)
	if !ok {
		return
	}
	epoch, ok := ws.epochVar(w, r)
	if !ok {
		return
	}
	view, err := ws.service.EpochView(p, epoch)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, view)
}

type joinRequest struct {
	Amount   string `json:"amount"`
	Strategy string `json:"strategy"`
}

type exitRequest struct {
	Shares string `json:"shares"`
}

type strategyRequest struct {
	Strategy string `json:"strategy"`
}

func (ws *WebServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.participantVar(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}
	strategy, err := types.ParseStrategy(req.Strategy)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}

	res, err := ws.service.Join(p, amount, strategy)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) handleExit(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.participantVar(w, r)
	if !ok {
		return
	}
	var req exitRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	shares, err := parseAmount(req.Shares)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}

	res, err := ws.service.Exit(p, shares)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) handleChangeStrategy(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.participantVar(w, r)
	if !ok {
		return
	}
	var req strategyRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	strategy, err := types.ParseStrategy(req.Strategy)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}

	res, err := ws.service.ChangeStrategy(p, strategy)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.participantVar(w, r)
	if !ok {
		return
	}
	res, err := ws.service.Heartbeat(p)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.participantVar(w, r)
	if !ok {
		return
	}
	epoch, ok := ws.epochVar(w, r)
	if !ok {
		return
	}
	rec, err := ws.service.ClaimPoints(p, epoch)
	if err != nil {
		ws.writePoolError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, rec)
}

func (ws *WebServer) participantVar(w http.ResponseWriter, r *http.Request) (types.Participant, bool) {
	p, err := types.ParseParticipant(mux.Vars(r)["address"])
	if err != nil {
		ws.writePoolError(w, err)
		return "", false
	}
	return p, true
}

func (ws *WebServer) epochVar(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	epoch, err := strconv.ParseUint(mux.Vars(r)["epoch"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid epoch")
		return 0, false
	}
	return epoch, true
}

func (ws *WebServer) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func parseAmount(raw string) (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok || amount.IsNegative() {
		return sdkmath.Int{}, types.ErrInvalidAmount.Wrapf("%q", raw)
	}
	return amount, nil
}

func queryLimit(r *http.Request) int {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}
	return limit
}

// statusFor maps a pool error to its HTTP status.
func statusFor(err error) int {
	if errors.Is(err, types.ErrEpochNotFound) {
		return http.StatusNotFound
	}
	switch types.KindOf(err) {
	case types.KindInput:
		return http.StatusBadRequest
	case types.KindState:
		return http.StatusConflict
	case types.KindInvariant:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writePoolError writes a pool error with its kind. Unclassified errors are logged
// and their message is not exposed.
func (ws *WebServer) writePoolError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	kind := types.KindOf(err)
	message := err.Error()
	if kind == types.KindUnknown {
		ws.logger.Error().Err(err).Msg("Unhandled pool error")
		message = "Internal error"
	}

	response := map[string]interface{}{
		"error":     true,
		"kind":      kind,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}
	ws.writeJSONResponse(w, status, response)
}

func (ws *WebServer) writeStoreError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, state.ErrNotInitialized) {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Persistence is disabled")
		return
	}
	ws.logger.Error().Err(err).Msg(message)
	ws.writeErrorResponse(w, http.StatusInternalServerError, message)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

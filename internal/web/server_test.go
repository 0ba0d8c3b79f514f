package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/tierpool/internal/ledger"
	"github.com/elys-network/tierpool/internal/pool"
	"github.com/elys-network/tierpool/internal/scoring"
	"github.com/elys-network/tierpool/internal/types"
	"github.com/elys-network/tierpool/internal/vault"
)

var genesis = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	server  *WebServer
	capital *vault.MemoryCapitalManager
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{now: genesis.Add(time.Minute)}

	params := types.PoolParameters{
		Denom:            "uusdc",
		GenesisTime:      genesis,
		EpochDuration:    time.Hour,
		MinDeposit:       sdkmath.NewInt(1000),
		MaxCatchUpEpochs: 12,
	}
	clock := func() time.Time { return env.now }
	l, err := ledger.New(ledger.Config{Params: params, Clock: clock})
	require.NoError(t, err)

	env.capital, err = vault.NewMemoryCapitalManager("uusdc")
	require.NoError(t, err)
	require.NoError(t, l.BindCapitalManager(env.capital))

	engine, err := scoring.NewEngine(scoring.Config{Source: l, Clock: clock})
	require.NoError(t, err)
	svc, err := pool.NewService(pool.Config{Ledger: l, Engine: engine})
	require.NoError(t, err)

	env.server = NewWebServer("0", svc)
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func address(seed byte) string {
	return string(types.ParticipantFromBytes(bytes.Repeat([]byte{seed}, 20)))
}

func TestParticipantLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := address(1)
	base := "/api/participants/" + alice

	rec, body := env.do(t, http.MethodPost, base+"/join", map[string]string{"amount": "1000000", "strategy": "aggressive"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1000000", body["shares_minted"])
	assert.Equal(t, "aggressive", body["strategy"])

	require.NoError(t, env.capital.Accrue(vault.DestinationPrimary, sdkmath.NewInt(500_000)))
	env.now = env.now.Add(time.Hour)

	rec, _ = env.do(t, http.MethodPost, base+"/heartbeat", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body = env.do(t, http.MethodGet, base+"/epochs/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "800000000000000000", body["preview_points"])

	rec, body = env.do(t, http.MethodPost, base+"/epochs/0/claim", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "800000000000000000", body["points"])

	rec, body = env.do(t, http.MethodPost, base+"/epochs/0/claim", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "state", body["kind"])

	rec, body = env.do(t, http.MethodPost, base+"/strategy", map[string]string{"strategy": "conservative"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "conservative", body["strategy"])

	rec, body = env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["has_position"])
	assert.Equal(t, "1500000", body["value"])
	assert.Equal(t, "800000000000000000", body["cumulative_points"])

	rec, body = env.do(t, http.MethodPost, base+"/exit", map[string]string{"shares": "1000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1500000", body["payout"])

	rec, body = env.do(t, http.MethodGet, "/api/pool", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", body["total_shares"])
	assert.Equal(t, "800000000000000000", body["points_distributed"])
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	alice := address(2)
	base := "/api/participants/" + alice

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"below minimum", http.MethodPost, base + "/join", map[string]string{"amount": "10", "strategy": "balanced"}, http.StatusBadRequest},
		{"bad strategy", http.MethodPost, base + "/join", map[string]string{"amount": "5000", "strategy": "yolo"}, http.StatusBadRequest},
		{"oversized amount", http.MethodPost, base + "/join", map[string]string{"amount": "1" + strings.Repeat("0", 69), "strategy": "balanced"}, http.StatusBadRequest},
		{"bad amount", http.MethodPost, base + "/join", map[string]string{"amount": "-5", "strategy": "balanced"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, base + "/join", map[string]string{"amount": "5000", "tier": "balanced"}, http.StatusBadRequest},
		{"bad address", http.MethodGet, "/api/participants/not-an-address", nil, http.StatusBadRequest},
		{"no position", http.MethodPost, base + "/exit", map[string]string{"shares": "1"}, http.StatusConflict},
		{"zero shares", http.MethodPost, base + "/exit", map[string]string{"shares": "0"}, http.StatusBadRequest},
		{"epoch not ended", http.MethodPost, base + "/epochs/0/claim", nil, http.StatusConflict},
		{"unknown epoch", http.MethodGet, "/api/epochs/9", nil, http.StatusNotFound},
		{"history without database", http.MethodGet, "/api/claims?limit=5", nil, http.StatusServiceUnavailable},
		{"stats without database", http.MethodGet, "/api/claims/stats", nil, http.StatusServiceUnavailable},
		{"epoch claims without database", http.MethodGet, "/api/epochs/0/claims", nil, http.StatusServiceUnavailable},
		{"participant claims without database", http.MethodGet, base + "/claims", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, true, body["error"])
		})
	}
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	alice := address(3)

	rec, _ := env.do(t, http.MethodPost, "/api/participants/"+alice+"/join", map[string]string{"amount": "5000", "strategy": "balanced"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body := env.do(t, http.MethodGet, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledgerSnap := body["ledger"].(map[string]interface{})
	positions := ledgerSnap["positions"].([]interface{})
	require.Len(t, positions, 1)
	assert.Equal(t, alice, positions[0].(map[string]interface{})["participant"])
}

func TestHealthWithoutDatabase(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])
	status := body["pool_status"].(map[string]interface{})
	assert.Equal(t, "disabled", status["database"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(types.ErrZeroShares))
	assert.Equal(t, http.StatusConflict, statusFor(types.ErrNoPosition.Wrap("x")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(types.ErrEmptyAssets))
	assert.Equal(t, http.StatusNotFound, statusFor(types.ErrEpochNotFound.Wrap("7")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

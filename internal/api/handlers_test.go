package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"king-tiles-orchestrator/internal/config"
	"king-tiles-orchestrator/internal/kingtiles"
	"king-tiles-orchestrator/internal/ledger"
	"king-tiles-orchestrator/internal/model"
	"king-tiles-orchestrator/internal/orchestrator"
)

// stubLedger answers like an empty chain: no accounts exist and every
// submission succeeds.
type stubLedger struct{}

func (stubLedger) Submit(context.Context, ...solana.Instruction) (solana.Signature, error) {
	return solana.Signature{1}, nil
}

func (stubLedger) FetchBoard(context.Context, solana.PublicKey) (*kingtiles.Board, error) {
	return nil, ledger.ErrAccountNotFound
}

func (stubLedger) AccountOwner(context.Context, solana.PublicKey) (solana.PublicKey, error) {
	return solana.PublicKey{}, ledger.ErrAccountNotFound
}

func (stubLedger) ListBoards(context.Context) ([]ledger.KeyedBoard, error) {
	return nil, nil
}

func (stubLedger) Now(context.Context) (int64, error) {
	return time.Now().Unix(), nil
}

func testServer(t *testing.T) (*Server, *orchestrator.Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		HTTP:   config.HTTPConfig{Addr: ":0"},
		Ledger: config.LedgerConfig{ExplorerCluster: "devnet"},
		Status: config.StatusConfig{ActiveTTL: time.Minute, InactiveTTL: time.Minute},
	}
	orch := orchestrator.New(ctx, cfg, kingtiles.Treasury, stubLedger{}, stubLedger{}, nil)
	return NewServer(cfg, orch, nil, nil), orch
}

func doJSON(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPostCreateSession(t *testing.T) {
	s, orch := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/sessions",
		`{"session_id":1,"board_side_len":8,"max_players":2,"registration_fee_lamports":1000,"lamports_per_score":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.SessionID)
	assert.NotEmpty(t, resp.StartTx)
	assert.NotNil(t, orch.Registry().Get(1))
}

func TestPostCreateSession_ErrorMapping(t *testing.T) {
	s, _ := testServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid mode", `{"session_id":2,"board_side_len":9,"max_players":2,"registration_fee_lamports":1000,"lamports_per_score":10}`, http.StatusBadRequest},
		{"zero economics", `{"session_id":2,"board_side_len":8,"max_players":2,"registration_fee_lamports":0,"lamports_per_score":10}`, http.StatusBadRequest},
		{"malformed body", `{"session_id":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/sessions", tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestPostCreateSession_CustodyMismatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		Status: config.StatusConfig{ActiveTTL: time.Minute, InactiveTTL: time.Minute},
	}
	// Orchestrator configured with a signer that is not the treasury.
	orch := orchestrator.New(ctx, cfg, solana.NewWallet().PublicKey(), stubLedger{}, stubLedger{}, nil)
	s := NewServer(cfg, orch, nil, nil)

	rec := doJSON(t, s, http.MethodPost, "/sessions",
		`{"session_id":1,"board_side_len":8,"max_players":2,"registration_fee_lamports":1000,"lamports_per_score":10}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostCreateSession_Duplicate(t *testing.T) {
	s, _ := testServer(t)

	body := `{"session_id":3,"board_side_len":8,"max_players":2,"registration_fee_lamports":1000,"lamports_per_score":10}`
	require.Equal(t, http.StatusCreated, doJSON(t, s, http.MethodPost, "/sessions", body).Code)
	assert.Equal(t, http.StatusConflict, doJSON(t, s, http.MethodPost, "/sessions", body).Code)
}

func TestGetSessions(t *testing.T) {
	s, orch := testServer(t)
	require.True(t, orch.Registry().Put(model.NewSession(5, kingtiles.MustBoardAddress(5), 8, 2, 1000, 10)))

	rec := doJSON(t, s, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view orchestrator.SessionsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Live, 1)
	assert.Equal(t, uint64(5), view.Live[0].SessionID)
	assert.Empty(t, view.LatestCompleted)
}

func TestGetStatus_ErrorMapping(t *testing.T) {
	s, _ := testServer(t)

	assert.Equal(t, http.StatusNotFound, doJSON(t, s, http.MethodGet, "/status?id=404", "").Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, s, http.MethodGet, "/status?id=abc", "").Code)
	// No sessions at all: the id-less query has nothing to answer with.
	assert.Equal(t, http.StatusNotFound, doJSON(t, s, http.MethodGet, "/status", "").Code)
}

func TestPostRetryReward_ErrorMapping(t *testing.T) {
	s, orch := testServer(t)

	require.True(t, orch.Registry().Put(model.NewSession(6, kingtiles.MustBoardAddress(6), 8, 2, 1000, 10)))
	assert.Equal(t, http.StatusConflict, doJSON(t, s, http.MethodPost, "/retry-reward", `{"session_id":6}`).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, s, http.MethodPost, "/retry-reward", `{"session_id":99}`).Code)
}

func TestGetLeaderboard_UnconfiguredReturns503(t *testing.T) {
	s, _ := testServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, s, http.MethodGet, "/leaderboard", "").Code)
}

func TestGetHealthz(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

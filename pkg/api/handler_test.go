package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/pkg/balances"
	"github.com/goliathlabs/bridge-tracker/pkg/bridge"
	"github.com/goliathlabs/bridge-tracker/pkg/config"
	"github.com/goliathlabs/bridge-tracker/pkg/statusapi"
	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
)

const walletAddress = "0x1111111111111111111111111111111111111111"

// MockSubmitter stubs the submission flow with func fields
type MockSubmitter struct {
	DepositAsyncFunc func(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error)
	BurnAsyncFunc    func(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error)
	ApproveFunc      func(ctx context.Context, network tokens.Network, token tokens.Symbol, amountHuman string) error
	HasAllowanceFunc func(ctx context.Context, network tokens.Network, token tokens.Symbol, amountHuman string) (bool, error)
}

func (m *MockSubmitter) DepositAsync(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error) {
	return m.DepositAsyncFunc(ctx, token, amountHuman, recipient)
}

func (m *MockSubmitter) BurnAsync(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error) {
	return m.BurnAsyncFunc(ctx, token, amountHuman, recipient)
}

func (m *MockSubmitter) Approve(ctx context.Context, network tokens.Network, token tokens.Symbol, amountHuman string) error {
	return m.ApproveFunc(ctx, network, token, amountHuman)
}

func (m *MockSubmitter) HasAllowance(ctx context.Context, network tokens.Network, token tokens.Symbol, amountHuman string) (bool, error) {
	if m.HasAllowanceFunc != nil {
		return m.HasAllowanceFunc(ctx, network, token, amountHuman)
	}
	return true, nil
}

// MockAuthority stubs the remote status API
type MockAuthority struct {
	GetHistoryFunc func(ctx context.Context, q statusapi.HistoryQuery) (*statusapi.HistoryResponse, error)
	Paused         bool
}

func (m *MockAuthority) GetHistory(ctx context.Context, q statusapi.HistoryQuery) (*statusapi.HistoryResponse, error) {
	return m.GetHistoryFunc(ctx, q)
}

func (m *MockAuthority) IsPaused(ctx context.Context) bool { return m.Paused }

// MockPollController records polling lifecycle calls
type MockPollController struct {
	started []string
	stopped []string
}

func (m *MockPollController) Start(ctx context.Context, operationID string) {
	m.started = append(m.started, operationID)
}

func (m *MockPollController) Stop(operationID string) {
	m.stopped = append(m.stopped, operationID)
}

type stubReader struct{ balance *big.Int }

func (s stubReader) TokenBalance(ctx context.Context, network tokens.Network, token tokens.Symbol, account string) (*big.Int, error) {
	return s.balance, nil
}

func testAPIConfig() *config.Config {
	return &config.Config{
		Sepolia: config.ChainConfig{ChainID: 11155111},
		Goliath: config.ChainConfig{ChainID: 8901},
		Bridge: config.BridgeConfig{
			Enabled:           true,
			MinAmount:         "0.000001",
			MaxEthFromGoliath: "0.05",
			MiningTimeout:     time.Minute,
		},
		Polling: config.PollingConfig{StuckThreshold: 10 * time.Minute},
	}
}

type fixture struct {
	store     *bridge.Store
	submitter *MockSubmitter
	authority *MockAuthority
	poller    *MockPollController
	server    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := bridge.NewStore(0)
	submitter := &MockSubmitter{}
	authority := &MockAuthority{}
	poller := &MockPollController{}

	tracker := balances.NewTracker(stubReader{balance: big.NewInt(1e18)}, balances.Config{
		NormalInterval:     time.Second,
		AggressiveInterval: time.Second,
		AggressiveWindow:   time.Second,
	}, zap.NewNop())
	tracker.SetAccount(walletAddress)
	tracker.RefreshAll(context.Background())

	h := NewHandler(store, submitter, tracker, authority, poller, testAPIConfig(), walletAddress, zap.NewNop())
	return &fixture{
		store:     store,
		submitter: submitter,
		authority: authority,
		poller:    poller,
		server:    NewRouter(h, true),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func seedOperation(t *testing.T, store *bridge.Store, id string, status bridge.Status) {
	t.Helper()
	require.NoError(t, store.Add(bridge.Operation{
		ID:                    id,
		Direction:             bridge.DirectionSepoliaToGoliath,
		Token:                 tokens.SymbolETH,
		Sender:                walletAddress,
		Recipient:             walletAddress,
		Status:                status,
		CreatedAt:             time.Now().UnixMilli(),
		UpdatedAt:             time.Now().UnixMilli(),
		RequiredConfirmations: 10,
	}))
}

func TestListOperations(t *testing.T) {
	f := newFixture(t)
	seedOperation(t, f.store, "op-1", bridge.StatusConfirming)
	seedOperation(t, f.store, "op-2", bridge.StatusCompleted)

	rec := f.do(t, http.MethodGet, "/api/v1/operations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Operations []operationView `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Operations, 2)
	assert.Equal(t, "op-2", resp.Operations[0].ID, "newest first")

	rec = f.do(t, http.MethodGet, "/api/v1/operations?filter=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Operations, 1)
	assert.Equal(t, "op-1", resp.Operations[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/operations?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Operations, 1)
	assert.Equal(t, "op-2", resp.Operations[0].ID, "limit keeps the newest")

	rec = f.do(t, http.MethodGet, "/api/v1/operations?filter=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/operations?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOperation(t *testing.T) {
	f := newFixture(t)
	seedOperation(t, f.store, "op-1", bridge.StatusConfirming)

	rec := f.do(t, http.MethodGet, "/api/v1/operations/op-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view operationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "op-1", view.ID)
	assert.NotEmpty(t, view.Step)
	assert.NotEmpty(t, view.ETA)

	rec = f.do(t, http.MethodGet, "/api/v1/operations/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOperationStuckFlag(t *testing.T) {
	f := newFixture(t)

	stale := time.Now().Add(-time.Hour).UnixMilli()
	require.NoError(t, f.store.Add(bridge.Operation{
		ID:        "op-stale",
		Direction: bridge.DirectionSepoliaToGoliath,
		Token:     tokens.SymbolETH,
		Status:    bridge.StatusConfirming,
		CreatedAt: stale,
		UpdatedAt: stale,
	}))
	seedOperation(t, f.store, "op-fresh", bridge.StatusConfirming)

	rec := f.do(t, http.MethodGet, "/api/v1/operations/op-stale", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view operationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Stuck, "an hour without an update is past the threshold")

	rec = f.do(t, http.MethodGet, "/api/v1/operations/op-fresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var freshView operationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &freshView))
	assert.False(t, freshView.Stuck)
}

func TestRemoveOperation(t *testing.T) {
	f := newFixture(t)
	seedOperation(t, f.store, "op-1", bridge.StatusCompleted)

	rec := f.do(t, http.MethodDelete, "/api/v1/operations/op-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"op-1"}, f.poller.stopped)
	assert.Empty(t, f.store.All())

	rec = f.do(t, http.MethodDelete, "/api/v1/operations/op-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActiveOperation(t *testing.T) {
	f := newFixture(t)
	seedOperation(t, f.store, "op-1", bridge.StatusConfirming)
	f.store.SetActive("")

	rec := f.do(t, http.MethodGet, "/api/v1/operations/active", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/operations/active", activateRequest{ID: "op-1"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"op-1"}, f.poller.started, "refocusing restarts polling")

	rec = f.do(t, http.MethodGet, "/api/v1/operations/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTransfer(t *testing.T) {
	f := newFixture(t)
	f.submitter.DepositAsyncFunc = func(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error) {
		assert.Equal(t, tokens.SymbolETH, token)
		assert.Equal(t, walletAddress, recipient)
		return "op-new", nil
	}

	rec := f.do(t, http.MethodPost, "/api/v1/transfers", transferRequest{
		Direction: bridge.DirectionSepoliaToGoliath,
		Token:     tokens.SymbolETH,
		Amount:    "0.01",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "op-new", resp["operationId"])
}

func TestCreateTransferSanitizesAmount(t *testing.T) {
	f := newFixture(t)
	f.submitter.DepositAsyncFunc = func(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error) {
		assert.Equal(t, "0.01", amountHuman, "comma input is normalized before submission")
		return "op-new", nil
	}

	rec := f.do(t, http.MethodPost, "/api/v1/transfers", transferRequest{
		Direction: bridge.DirectionSepoliaToGoliath,
		Token:     tokens.SymbolETH,
		Amount:    "0,01",
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCreateTransferValidationFailure(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/transfers", transferRequest{
		Direction: bridge.DirectionSepoliaToGoliath,
		Amount:    "not-a-number",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/transfers", transferRequest{
		Direction: "SIDEWAYS",
		Amount:    "0.01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTransferGoliathEthCap(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/transfers", transferRequest{
		Direction: bridge.DirectionGoliathToSepolia,
		Token:     tokens.SymbolETH,
		Amount:    "0.06",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTransferWhileSubmitting(t *testing.T) {
	f := newFixture(t)
	f.store.SetSubmitting(true)

	rec := f.do(t, http.MethodPost, "/api/v1/transfers", transferRequest{
		Direction: bridge.DirectionSepoliaToGoliath,
		Amount:    "0.01",
	})
	assert.Equal(t, http.StatusLocked, rec.Code)
}

func TestCreateTransferCustomRecipientDisabled(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/transfers", transferRequest{
		Direction: bridge.DirectionSepoliaToGoliath,
		Amount:    "0.01",
		Recipient: "0x9999999999999999999999999999999999999999",
	})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/validate", validateRequest{
		Direction: bridge.DirectionSepoliaToGoliath,
		Amount:    "0.01",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State string `json:"state"`
		Valid bool   `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "READY", resp.State)
	assert.True(t, resp.Valid)
}

func TestValidateEndpointPausedAuthority(t *testing.T) {
	f := newFixture(t)
	f.authority.Paused = true

	rec := f.do(t, http.MethodPost, "/api/v1/validate", validateRequest{
		Direction: bridge.DirectionSepoliaToGoliath,
		Amount:    "0.01",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BRIDGE_UNAVAILABLE", resp.State)
}

func TestGetBalances(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]map[string]struct {
		Amount       string `json:"amount"`
		MaxSpendable string `json:"maxSpendable"`
		Known        bool   `json:"known"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["SEPOLIA"]["ETH"].Known)
	assert.Equal(t, "1", resp["SEPOLIA"]["ETH"].Amount)
	assert.Equal(t, "0.99", resp["SEPOLIA"]["ETH"].MaxSpendable, "native balance reserves the gas buffer")
	assert.Equal(t, "1", resp["GOLIATH"]["ETH"].MaxSpendable, "ERC-20 balance is fully spendable")
}

func TestGetState(t *testing.T) {
	f := newFixture(t)
	f.store.SetPollingError("authority flapping")

	rec := f.do(t, http.MethodGet, "/api/v1/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Submitting   bool   `json:"submitting"`
		PollingError string `json:"pollingError"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Submitting)
	assert.Equal(t, "authority flapping", resp.PollingError)
}

func TestGetHistory(t *testing.T) {
	f := newFixture(t)
	f.authority.GetHistoryFunc = func(ctx context.Context, q statusapi.HistoryQuery) (*statusapi.HistoryResponse, error) {
		assert.Equal(t, walletAddress, q.Address, "defaults to the tracked wallet")
		return &statusapi.HistoryResponse{
			Operations: []statusapi.StatusResponse{{OperationID: "op-1"}},
			Pagination: statusapi.Pagination{Total: 1},
		}, nil
	}

	rec := f.do(t, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusapi.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Pagination.Total)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Paused bool   `json:"paused"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Paused)
}

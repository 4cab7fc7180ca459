// Package api exposes the tracker over HTTP: operation reads, transfer
// and approval submission, balances, and validation.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/goliathlabs/bridge-tracker/pkg/app/errors"
	apphttp "github.com/goliathlabs/bridge-tracker/pkg/app/http"
	"github.com/goliathlabs/bridge-tracker/pkg/balances"
	"github.com/goliathlabs/bridge-tracker/pkg/bridge"
	"github.com/goliathlabs/bridge-tracker/pkg/config"
	"github.com/goliathlabs/bridge-tracker/pkg/statusapi"
	"github.com/goliathlabs/bridge-tracker/pkg/submit"
	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
	"github.com/goliathlabs/bridge-tracker/pkg/validation"
)

const displayDecimals = 6

// Submitter is the slice of the submission flow the API needs
type Submitter interface {
	DepositAsync(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error)
	BurnAsync(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error)
	Approve(ctx context.Context, network tokens.Network, token tokens.Symbol, amountHuman string) error
	HasAllowance(ctx context.Context, network tokens.Network, token tokens.Symbol, amountHuman string) (bool, error)
}

// PollController manages polling lifecycles for the handler
type PollController interface {
	Start(ctx context.Context, operationID string)
	Stop(operationID string)
}

// StatusAuthority is the remote API surface the handler proxies
type StatusAuthority interface {
	GetHistory(ctx context.Context, q statusapi.HistoryQuery) (*statusapi.HistoryResponse, error)
	IsPaused(ctx context.Context) bool
}

// Handler serves the tracker API
type Handler struct {
	store     *bridge.Store
	submitter Submitter
	balances  *balances.Tracker
	authority StatusAuthority
	poller    PollController
	cfg       *config.Config
	wallet    string
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates a handler
func NewHandler(store *bridge.Store, submitter Submitter, balanceTracker *balances.Tracker, authority StatusAuthority, poller PollController, cfg *config.Config, walletAddress string, logger *zap.Logger) *Handler {
	return &Handler{
		store:     store,
		submitter: submitter,
		balances:  balanceTracker,
		authority: authority,
		poller:    poller,
		cfg:       cfg,
		wallet:    walletAddress,
		logger:    logger,
		now:       time.Now,
	}
}

// operationView is the wire representation of an operation, the stored
// record plus derived display fields.
type operationView struct {
	bridge.Operation
	ETA   string `json:"eta,omitempty"`
	Step  string `json:"step"`
	Stuck bool   `json:"stuck,omitempty"`
}

func (h *Handler) view(op bridge.Operation) operationView {
	return operationView{
		Operation: op,
		ETA:       bridge.FormatETA(op, h.now()),
		Step:      bridge.StepDescription(op),
		Stuck:     bridge.IsStuck(op, h.cfg.Polling.StuckThreshold, h.now()),
	}
}

func (h *Handler) views(ops []bridge.Operation) []operationView {
	out := make([]operationView, len(ops))
	for i, op := range ops {
		out[i] = h.view(op)
	}
	return out
}

func (h *Handler) listOperations(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			return apperrors.BadRequestError(err, "invalid limit")
		}
		limit = n
	}
	address := query.Get("address")

	var ops []bridge.Operation
	switch filter := query.Get("filter"); filter {
	case "", "all":
		switch {
		case address != "":
			ops = h.store.ByAddress(address)
			address = ""
		case limit > 0:
			ops = h.store.Recent(limit)
		default:
			ops = h.store.All()
		}
	case "pending":
		ops = h.store.Pending()
	case "completed":
		ops = h.store.Completed()
	case "failed":
		ops = h.store.Failed()
	default:
		return apperrors.BadRequestError(nil, "unknown filter: "+filter)
	}

	if address != "" {
		filtered := ops[:0:0]
		for _, op := range ops {
			if op.Sender == address {
				filtered = append(filtered, op)
			}
		}
		ops = filtered
	}

	if limit > 0 && len(ops) > limit {
		ops = ops[:limit]
	}

	return apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"operations": h.views(ops),
	})
}

func (h *Handler) getOperation(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	op, ok := h.store.Get(id)
	if !ok {
		return apperrors.ResourceNotFoundError(nil, "operation not found")
	}
	return apphttp.WriteJSON(w, http.StatusOK, h.view(op))
}

func (h *Handler) removeOperation(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if _, ok := h.store.Get(id); !ok {
		return apperrors.ResourceNotFoundError(nil, "operation not found")
	}

	h.poller.Stop(id)
	h.store.Remove(id)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) getActiveOperation(w http.ResponseWriter, r *http.Request) error {
	op, ok := h.store.Active()
	if !ok {
		return apperrors.ResourceNotFoundError(nil, "no active operation")
	}
	return apphttp.WriteJSON(w, http.StatusOK, h.view(op))
}

type activateRequest struct {
	ID string `json:"id"`
}

func (h *Handler) setActiveOperation(w http.ResponseWriter, r *http.Request) error {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}

	if req.ID != "" {
		op, ok := h.store.Get(req.ID)
		if !ok {
			return apperrors.ResourceNotFoundError(nil, "operation not found")
		}
		// refocusing restarts polling so the view refreshes promptly
		if !op.Status.Terminal() || op.DestinationTxHash == "" {
			h.poller.Start(context.WithoutCancel(r.Context()), op.ID)
		}
	}

	h.store.SetActive(req.ID)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type transferRequest struct {
	Direction bridge.Direction `json:"direction"`
	Token     tokens.Symbol    `json:"token"`
	Amount    string           `json:"amount"`
	Recipient string           `json:"recipient"`
}

func (h *Handler) createTransfer(w http.ResponseWriter, r *http.Request) error {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}

	if req.Direction != bridge.DirectionSepoliaToGoliath && req.Direction != bridge.DirectionGoliathToSepolia {
		return apperrors.BadRequestError(nil, "unknown direction")
	}
	if req.Token == "" {
		req.Token = tokens.DefaultSymbol
	}
	req.Amount = tokens.SanitizeAmountInput(req.Amount)

	recipient, err := h.resolveRecipient(req.Recipient)
	if err != nil {
		return err
	}

	if h.store.IsSubmitting() {
		return apperrors.LockedError(nil, "a submission is already in progress")
	}

	if result := h.validate(r.Context(), req.Direction.Origin(), req.Token, req.Amount); !result.Valid {
		return apperrors.BadRequestError(nil, result.Action)
	} else if result.State == validation.StateNeedsApproval {
		return apperrors.ConflictError(nil, "allowance required before bridging")
	}

	ctx := context.WithoutCancel(r.Context())
	var id string
	if req.Direction == bridge.DirectionSepoliaToGoliath {
		id, err = h.submitter.DepositAsync(ctx, req.Token, req.Amount, recipient)
	} else {
		id, err = h.submitter.BurnAsync(ctx, req.Token, req.Amount, recipient)
	}
	if err != nil {
		if submit.Classify(err) == submit.ClassRejected {
			return apperrors.ConflictError(err, "transaction rejected by wallet")
		}
		return apperrors.DependencyFailureError(err, "transaction submission failed")
	}

	h.balances.BoostAfterSubmission()

	return apphttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"operationId": id,
	})
}

type approvalRequest struct {
	Network tokens.Network `json:"network"`
	Token   tokens.Symbol  `json:"token"`
	Amount  string         `json:"amount"`
}

func (h *Handler) createApproval(w http.ResponseWriter, r *http.Request) error {
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}

	if !tokens.RequiresApproval(req.Token, req.Network) {
		return apperrors.BadRequestError(nil, "asset does not need approval on this chain")
	}
	if !tokens.IsPositiveAmount(req.Amount) {
		return apperrors.BadRequestError(nil, "invalid amount")
	}
	if h.store.IsApproving() {
		return apperrors.LockedError(nil, "an approval is already in progress")
	}

	// the mining wait can outlast any sensible request timeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Bridge.MiningTimeout+time.Minute)
		defer cancel()
		if err := h.submitter.Approve(ctx, req.Network, req.Token, req.Amount); err != nil {
			h.logger.Warn("approval failed", zap.Error(err))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	return nil
}

type validateRequest struct {
	Direction bridge.Direction `json:"direction"`
	Token     tokens.Symbol    `json:"token"`
	Amount    string           `json:"amount"`
}

func (h *Handler) validateTransfer(w http.ResponseWriter, r *http.Request) error {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}
	if req.Token == "" {
		req.Token = tokens.DefaultSymbol
	}
	if req.Direction != bridge.DirectionSepoliaToGoliath && req.Direction != bridge.DirectionGoliathToSepolia {
		return apperrors.BadRequestError(nil, "unknown direction")
	}
	req.Amount = tokens.SanitizeAmountInput(req.Amount)

	result := h.validate(r.Context(), req.Direction.Origin(), req.Token, req.Amount)
	return apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"state":        result.State,
		"valid":        result.Valid,
		"action":       result.Action,
		"errorMessage": result.ErrorMessage,
	})
}

// validate assembles the validation input from live server state
func (h *Handler) validate(ctx context.Context, origin tokens.Network, token tokens.Symbol, amount string) validation.Result {
	originChainID := h.cfg.Sepolia.ChainID
	if origin == tokens.NetworkGoliath {
		originChainID = h.cfg.Goliath.ChainID
	}

	needsApproval := false
	if tokens.RequiresApproval(token, origin) && tokens.IsPositiveAmount(amount) {
		ok, err := h.submitter.HasAllowance(ctx, origin, token, amount)
		if err != nil {
			h.logger.Debug("allowance check failed", zap.Error(err))
		}
		needsApproval = err == nil && !ok
	}

	balance := h.balances.Get(origin, token)
	originBalance := ""
	if balance.Known {
		originBalance = tokens.FormatAmount(balance.Atomic, token, origin, 18)
	}

	return validation.Validate(validation.Input{
		Account:           h.wallet,
		ChainID:           originChainID,
		OriginNetwork:     origin,
		OriginChainID:     originChainID,
		Token:             token,
		Amount:            amount,
		OriginBalance:     originBalance,
		MinAmount:         h.cfg.Bridge.MinAmount,
		MaxEthFromGoliath: h.cfg.Bridge.MaxEthFromGoliath,
		BridgeEnabled:     h.cfg.Bridge.Enabled && !h.authority.IsPaused(ctx),
		NeedsApproval:     needsApproval,
	})
}

func (h *Handler) resolveRecipient(recipient string) (string, error) {
	if recipient == "" || recipient == h.wallet {
		return h.wallet, nil
	}
	if !h.cfg.Bridge.AllowCustomRecipient {
		return "", apperrors.NotSupportedError(nil, "custom recipients are disabled")
	}
	if !validation.IsValidAddress(recipient) {
		return "", apperrors.BadRequestError(nil, "invalid recipient address")
	}
	return recipient, nil
}

func (h *Handler) getBalances(w http.ResponseWriter, r *http.Request) error {
	type balanceView struct {
		Amount       string `json:"amount"`
		Atomic       string `json:"atomic"`
		MaxSpendable string `json:"maxSpendable"`
		Known        bool   `json:"known"`
	}

	out := map[string]map[string]balanceView{}
	for _, network := range []tokens.Network{tokens.NetworkSepolia, tokens.NetworkGoliath} {
		networkOut := map[string]balanceView{}
		for _, token := range tokens.List() {
			b := h.balances.Get(network, token)
			view := balanceView{Known: b.Known}
			if b.Known {
				view.Amount = b.Formatted(token, network, displayDecimals)
				view.Atomic = b.Atomic.String()
				// what a MAX button may spend: the balance minus the gas
				// buffer on native assets
				view.MaxSpendable = tokens.FormatAmount(
					tokens.MaxSpendable(b.Atomic, token, network), token, network, displayDecimals)
			}
			networkOut[string(token)] = view
		}
		out[string(network)] = networkOut
	}

	return apphttp.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) error {
	activeID := ""
	if op, ok := h.store.Active(); ok {
		activeID = op.ID
	}

	return apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"submitting":        h.store.IsSubmitting(),
		"approving":         h.store.IsApproving(),
		"pollingError":      h.store.PollingError(),
		"lastError":         h.store.LastError(),
		"activeOperationId": activeID,
	})
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) error {
	address := r.URL.Query().Get("address")
	if address == "" {
		address = h.wallet
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	history, err := h.authority.GetHistory(r.Context(), statusapi.HistoryQuery{
		Address: address,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return apperrors.DependencyFailureError(err, "status authority unavailable")
	}
	return apphttp.WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) error {
	return apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"paused":  h.authority.IsPaused(r.Context()),
		"pending": len(h.store.Pending()),
	})
}

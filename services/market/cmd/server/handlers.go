package main

import (
	"net/http"
	"strconv"

	"astaverde/pkg/domain"
	"astaverde/pkg/httpx"
	"astaverde/pkg/token"
	"astaverde/pkg/vault"
)

// Callers are identified by the address field in each request body.
// Signature verification happens upstream in the gateway; this service
// is the accounting authority, not the authenticator.

func readCaller(w http.ResponseWriter, r *http.Request, dst any, addr *domain.Address) bool {
	if err := httpx.ReadJSON(r, dst); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return false
	}
	if !domain.ValidAddress(*addr) {
		httpx.WriteError(w, 400, "BAD_ADDRESS", "invalid address", nil)
		return false
	}
	return true
}

func (a *app) handleMintBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    domain.Address   `json:"caller"`
		Producers []domain.Address `json:"producers"`
		CIDs      []string         `json:"cids"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	id, err := a.reg.MintBatch(req.Caller, req.Producers, req.CIDs)
	if err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "batch_id": id})
}

func (a *app) handleBatchInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := urlBatchID(r)
	if !ok {
		httpx.WriteError(w, 400, "BAD_ID", "batch id must be a positive integer", nil)
		return
	}
	info, err := a.reg.BatchInfo(id)
	if err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	price, _ := a.reg.CurrentPrice(id)
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id":     httpx.NewRequestID(),
		"batch_id":       info.ID,
		"token_ids":      info.TokenIDs,
		"starting_price": info.StartingPrice,
		"current_price":  price,
		"created_at":     info.CreatedAt,
		"unsold":         info.Unsold,
		"sold_out":       !info.SoldOutAt.IsZero(),
	})
}

func (a *app) handleBuyBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := urlBatchID(r)
	if !ok {
		httpx.WriteError(w, 400, "BAD_ID", "batch id must be a positive integer", nil)
		return
	}
	var req struct {
		Caller   domain.Address `json:"caller"`
		MaxTotal int64          `json:"max_total"`
		Quantity int            `json:"quantity"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	ids, total, err := a.reg.BuyBatch(req.Caller, id, req.MaxTotal, req.Quantity)
	if err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"token_ids":  ids,
		"total":      total,
	})
}

func (a *app) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := urlTokenID(r)
	if !ok {
		httpx.WriteError(w, 400, "BAD_ID", "token id must be a positive integer", nil)
		return
	}
	tok, err := a.reg.TokenInfo(id)
	if err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	loan := a.vlt.Loan(id)
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id":  httpx.NewRequestID(),
		"token_id":    tok.ID,
		"batch_id":    tok.BatchID,
		"producer":    tok.Producer,
		"owner":       tok.Owner,
		"cid":         tok.CID,
		"redeemed":    tok.Redeemed,
		"loan_active": loan.Active,
	})
}

func (a *app) handleRedeem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlTokenID(r)
	if !ok {
		httpx.WriteError(w, 400, "BAD_ID", "token id must be a positive integer", nil)
		return
	}
	var req struct {
		Caller domain.Address `json:"caller"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	if err := a.reg.Redeem(req.Caller, id); err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "token_id": id, "redeemed": true})
}

func (a *app) handleTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlTokenID(r)
	if !ok {
		httpx.WriteError(w, 400, "BAD_ID", "token id must be a positive integer", nil)
		return
	}
	var req struct {
		Caller domain.Address `json:"caller"`
		To     domain.Address `json:"to"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	if err := a.reg.Transfer(req.Caller, req.To, id); err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "token_id": id, "owner": req.To})
}

func (a *app) handleClaimProducer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller domain.Address `json:"caller"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	amt, err := a.pay.ClaimProducer(req.Caller)
	if err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "claimed": amt})
}

func (a *app) handleClaimPlatform(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller domain.Address `json:"caller"`
		To     domain.Address `json:"to"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	amt, err := a.pay.ClaimPlatform(req.Caller, req.To)
	if err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "claimed": amt})
}

func (a *app) handleRecoverSurplus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller domain.Address `json:"caller"`
		To     domain.Address `json:"to"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	amt, err := a.pay.RecoverSurplus(req.Caller, req.To)
	if err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "recovered": amt})
}

func (a *app) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if a.st != nil {
		out, err := a.st.List(r.Context(), limit)
		if err != nil {
			httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "events": out})
		return
	}
	evs := a.mem.Events
	if limit > 0 && limit < len(evs) {
		evs = evs[len(evs)-limit:]
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "events": evs})
}

func (a *app) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  domain.Address `json:"caller"`
		TokenID domain.TokenID `json:"token_id"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	if err := a.vlt.Deposit(req.Caller, req.TokenID); err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "token_id": req.TokenID, "minted": vault.SCCPerAsset})
}

func (a *app) handleDepositBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   domain.Address   `json:"caller"`
		TokenIDs []domain.TokenID `json:"token_ids"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	if err := a.vlt.DepositBatch(req.Caller, req.TokenIDs); err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "token_ids": req.TokenIDs, "minted": vault.SCCPerAsset * int64(len(req.TokenIDs))})
}

func (a *app) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  domain.Address `json:"caller"`
		TokenID domain.TokenID `json:"token_id"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	if err := a.vlt.Withdraw(req.Caller, req.TokenID); err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "token_id": req.TokenID, "burned": vault.SCCPerAsset})
}

func (a *app) handleWithdrawBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   domain.Address   `json:"caller"`
		TokenIDs []domain.TokenID `json:"token_ids"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	if err := a.vlt.WithdrawBatch(req.Caller, req.TokenIDs); err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "token_ids": req.TokenIDs, "burned": vault.SCCPerAsset * int64(len(req.TokenIDs))})
}

func (a *app) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  domain.Address `json:"caller"`
		TokenID domain.TokenID `json:"token_id"`
		To      domain.Address `json:"to"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	if err := a.vlt.AdminSweepNFT(req.Caller, req.TokenID, req.To); err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "token_id": req.TokenID, "to": req.To})
}

func (a *app) handleUserLoans(w http.ResponseWriter, r *http.Request) {
	addr := domain.Address(r.URL.Query().Get("address"))
	if !domain.ValidAddress(addr) {
		httpx.WriteError(w, 400, "BAD_ADDRESS", "invalid address", nil)
		return
	}
	loans := a.vlt.UserLoans(addr)
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"address":    addr,
		"token_ids":  loans,
		"count":      len(loans),
	})
}

func (a *app) handleBalance(l *token.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr := domain.Address(r.URL.Query().Get("address"))
		if !domain.ValidAddress(addr) {
			httpx.WriteError(w, 400, "BAD_ADDRESS", "invalid address", nil)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "address": addr, "balance": l.BalanceOf(addr)})
	}
}

func (a *app) handleApprove(l *token.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Caller  domain.Address `json:"caller"`
			Spender domain.Address `json:"spender"`
			Amount  int64          `json:"amount"`
		}
		if !readCaller(w, r, &req, &req.Caller) {
			return
		}
		if err := l.Approve(req.Caller, req.Spender, req.Amount); err != nil {
			httpx.WriteEngineError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "approved": req.Amount})
	}
}

func (a *app) handleTokenTransfer(l *token.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Caller domain.Address `json:"caller"`
			To     domain.Address `json:"to"`
			Amount int64          `json:"amount"`
		}
		if !readCaller(w, r, &req, &req.Caller) {
			return
		}
		if err := l.Transfer(req.Caller, req.To, req.Amount); err != nil {
			httpx.WriteEngineError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "transferred": req.Amount})
	}
}

func (a *app) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller domain.Address `json:"caller"`
		Amount int64          `json:"amount"`
	}
	if !readCaller(w, r, &req, &req.Caller) {
		return
	}
	if err := a.scc.Burn(req.Caller, req.Amount); err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "burned": req.Amount})
}

func (a *app) handlePause(op func(domain.Address) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Caller domain.Address `json:"caller"`
		}
		if !readCaller(w, r, &req, &req.Caller) {
			return
		}
		if err := op(req.Caller); err != nil {
			httpx.WriteEngineError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "ok": true})
	}
}

func (a *app) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To     domain.Address `json:"to"`
		Amount int64          `json:"amount"`
	}
	if !readCaller(w, r, &req, &req.To) {
		return
	}
	if err := a.usdc.Mint(a.cfg.Owner, req.To, req.Amount); err != nil {
		httpx.WriteEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "to": req.To, "minted": req.Amount})
}

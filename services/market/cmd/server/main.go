package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"astaverde/pkg/db"
	"astaverde/pkg/domain"
	"astaverde/pkg/httpx"
	"astaverde/pkg/payout"
	"astaverde/pkg/registry"
	"astaverde/pkg/token"
	"astaverde/pkg/vault"
	"astaverde/services/market/internal/store"
)

type app struct {
	log  zerolog.Logger
	cfg  serverConfig
	reg  *registry.Registry
	pay  *payout.Ledger
	vlt  *vault.Vault
	scc  *token.Ledger
	usdc *token.Ledger
	st   *store.Store      // nil in dev mode
	mem  *domain.MemorySink // nil outside dev mode
}

// newApp wires the engines: payment asset, stable controller, payout
// ledger, registry and vault, then performs the one-time bootstrap
// transitions (minter grant, admin renounce, operator approval).
func newApp(cfg serverConfig, log zerolog.Logger, sink domain.Sink) (*app, error) {
	a := &app{log: log, cfg: cfg}

	a.usdc = token.New(cfg.Owner, 0)
	if err := a.usdc.GrantMinter(cfg.Owner, cfg.Owner); err != nil {
		return nil, err
	}
	a.scc = token.New(cfg.Owner, cfg.SCCMaxSupply)
	a.pay = payout.New(cfg.Owner, cfg.Custody, a.usdc, sink)
	a.reg = registry.New(registry.Config{
		Owner:   cfg.Owner,
		Custody: cfg.Custody,
		Asset:   a.usdc,
		Payouts: a.pay,
		Sink:    sink,
	})
	if err := a.scc.GrantMinter(cfg.Owner, cfg.VaultAddr); err != nil {
		return nil, err
	}
	if err := a.scc.RenounceAdmin(cfg.Owner); err != nil {
		return nil, err
	}
	if err := a.reg.ApproveOperator(cfg.Owner, cfg.VaultAddr); err != nil {
		return nil, err
	}
	a.vlt = vault.New(cfg.Owner, cfg.VaultAddr, a.reg, a.scc, sink)
	return a, nil
}

func main() {
	cfg := loadServerConfig()
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "market").Logger()

	var sink domain.Sink
	var st *store.Store
	var mem *domain.MemorySink
	if cfg.DevMode && os.Getenv("DATABASE_URL") == "" {
		mem = &domain.MemorySink{}
		sink = mem
		log.Warn().Msg("dev mode without DATABASE_URL; audit journal is in-memory")
	} else {
		pool := db.MustConnect()
		st = store.New(pool, log)
		if err := st.EnsureSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("ensure schema")
		}
		sink = st
	}

	a, err := newApp(cfg, log, sink)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap engines")
	}
	a.st = st
	a.mem = mem

	r := newRouter(a)
	log.Info().Str("port", cfg.Port).Bool("dev", cfg.DevMode).Msg("market service listening")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

func newRouter(a *app) chi.Router {
	r := chi.NewRouter()
	r.Use(a.requestLogger)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/market", func(api chi.Router) {
		api.Post("/batches", a.handleMintBatch)
		api.Get("/batches/{id}", a.handleBatchInfo)
		api.Post("/batches/{id}/buy", a.handleBuyBatch)
		api.Get("/tokens/{id}", a.handleTokenInfo)
		api.Post("/tokens/{id}/redeem", a.handleRedeem)
		api.Post("/tokens/{id}/transfer", a.handleTransfer)
		api.Get("/base-price", func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "base_price": a.reg.BasePrice()})
		})
		api.Post("/claims/producer", a.handleClaimProducer)
		api.Post("/claims/platform", a.handleClaimPlatform)
		api.Post("/surplus/recover", a.handleRecoverSurplus)
		api.Get("/events", a.handleListEvents)
	})

	r.Route("/vault", func(api chi.Router) {
		api.Post("/deposits", a.handleDeposit)
		api.Post("/deposits/batch", a.handleDepositBatch)
		api.Post("/withdrawals", a.handleWithdraw)
		api.Post("/withdrawals/batch", a.handleWithdrawBatch)
		api.Post("/sweeps", a.handleSweep)
		api.Get("/loans", a.handleUserLoans)
		api.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id":         httpx.NewRequestID(),
				"total_active_loans": a.vlt.TotalActiveLoans(),
				"scc_supply":         a.scc.TotalSupply(),
				"paused":             a.vlt.Paused(),
			})
		})
	})

	r.Route("/scc", func(api chi.Router) {
		api.Get("/supply", func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "total_supply": a.scc.TotalSupply()})
		})
		api.Get("/balance", a.handleBalance(a.scc))
		api.Post("/approve", a.handleApprove(a.scc))
		api.Post("/transfer", a.handleTokenTransfer(a.scc))
		api.Post("/burn", a.handleBurn)
	})

	r.Route("/usdc", func(api chi.Router) {
		api.Get("/balance", a.handleBalance(a.usdc))
		api.Post("/approve", a.handleApprove(a.usdc))
		api.Post("/transfer", a.handleTokenTransfer(a.usdc))
	})

	r.Route("/admin", func(api chi.Router) {
		api.Post("/market/pause", a.handlePause(func(c domain.Address) error { return a.reg.Pause(c) }))
		api.Post("/market/unpause", a.handlePause(func(c domain.Address) error { return a.reg.Unpause(c) }))
		api.Post("/vault/pause", a.handlePause(func(c domain.Address) error { return a.vlt.Pause(c) }))
		api.Post("/vault/unpause", a.handlePause(func(c domain.Address) error { return a.vlt.Unpause(c) }))
	})

	if a.cfg.DevMode {
		// QA faucet: mints payment-asset units to any address.
		r.Post("/dev/faucet", a.handleFaucet)
	}
	return r
}

func (a *app) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		a.log.Info().Str("method", r.Method).Str("path", r.URL.Path).Dur("elapsed", time.Since(start)).Msg("request")
	})
}

func urlTokenID(r *http.Request) (domain.TokenID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return domain.TokenID(n), true
}

func urlBatchID(r *http.Request) (domain.BatchID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return domain.BatchID(n), true
}

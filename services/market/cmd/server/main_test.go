package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"astaverde/pkg/domain"
)

const (
	testOwner = domain.Address("0x00000000000000000000000000000000000000a0")
	testBuyer = domain.Address("0x00000000000000000000000000000000000000c1")
	testProd  = domain.Address("0x00000000000000000000000000000000000000d1")
)

func newTestServer(t *testing.T) (*httptest.Server, *app) {
	t.Helper()
	cfg := serverConfig{
		Port:      "0",
		DevMode:   true,
		Owner:     testOwner,
		Custody:   defaultCustody,
		VaultAddr: defaultVaultAddr,
	}
	mem := &domain.MemorySink{}
	a, err := newApp(cfg, zerolog.Nop(), mem)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	a.mem = mem
	srv := httptest.NewServer(newRouter(a))
	t.Cleanup(srv.Close)
	return srv, a
}

func postJSON(t *testing.T, url string, body any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, out
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, out
}

func TestMintBuyDepositWithdrawOverHTTP(t *testing.T) {
	srv, a := newTestServer(t)

	code, body := postJSON(t, srv.URL+"/market/batches", map[string]any{
		"caller":    testOwner,
		"producers": []domain.Address{testProd, testProd},
		"cids":      []string{"QmCertA", "QmCertB"},
	})
	if code != 201 {
		t.Fatalf("mint status %d: %v", code, body)
	}
	if body["batch_id"].(float64) != 1 {
		t.Fatalf("unexpected batch id: %v", body["batch_id"])
	}

	code, _ = postJSON(t, srv.URL+"/dev/faucet", map[string]any{"to": testBuyer, "amount": 1000})
	if code != 200 {
		t.Fatalf("faucet status %d", code)
	}
	code, _ = postJSON(t, srv.URL+"/usdc/approve", map[string]any{
		"caller": testBuyer, "spender": defaultCustody, "amount": 1000,
	})
	if code != 200 {
		t.Fatalf("approve status %d", code)
	}

	code, body = postJSON(t, srv.URL+"/market/batches/1/buy", map[string]any{
		"caller": testBuyer, "max_total": 460, "quantity": 2,
	})
	if code != 200 {
		t.Fatalf("buy status %d: %v", code, body)
	}
	if body["total"].(float64) != 460 {
		t.Fatalf("unexpected total: %v", body["total"])
	}

	code, body = postJSON(t, srv.URL+"/vault/deposits", map[string]any{
		"caller": testBuyer, "token_id": 1,
	})
	if code != 200 {
		t.Fatalf("deposit status %d: %v", code, body)
	}
	if got := a.scc.BalanceOf(testBuyer); got != 20 {
		t.Fatalf("expected 20 SCC after deposit, got %d", got)
	}

	code, _ = postJSON(t, srv.URL+"/scc/approve", map[string]any{
		"caller": testBuyer, "spender": defaultVaultAddr, "amount": 20,
	})
	if code != 200 {
		t.Fatalf("scc approve status %d", code)
	}
	code, body = postJSON(t, srv.URL+"/vault/withdrawals", map[string]any{
		"caller": testBuyer, "token_id": 1,
	})
	if code != 200 {
		t.Fatalf("withdraw status %d: %v", code, body)
	}
	if got := a.scc.BalanceOf(testBuyer); got != 0 {
		t.Fatalf("expected 0 SCC after withdraw, got %d", got)
	}

	code, body = getJSON(t, srv.URL+"/market/tokens/1")
	if code != 200 {
		t.Fatalf("token info status %d", code)
	}
	if body["owner"].(string) != string(testBuyer) {
		t.Fatalf("expected owner back to buyer, got %v", body["owner"])
	}
}

func TestEngineErrorsMapToStatusCodes(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := postJSON(t, srv.URL+"/market/batches", map[string]any{
		"caller":    testBuyer,
		"producers": []domain.Address{testProd},
		"cids":      []string{"QmCert"},
	})
	if code != 403 {
		t.Fatalf("expected 403 for non-owner mint, got %d: %v", code, body)
	}

	code, body = getJSON(t, srv.URL+"/market/batches/99")
	if code != 404 {
		t.Fatalf("expected 404 for unknown batch, got %d: %v", code, body)
	}

	code, _ = postJSON(t, srv.URL+"/admin/market/pause", map[string]any{"caller": testOwner})
	if code != 200 {
		t.Fatalf("pause status %d", code)
	}
	code, body = postJSON(t, srv.URL+"/market/batches", map[string]any{
		"caller":    testOwner,
		"producers": []domain.Address{testProd},
		"cids":      []string{"QmCert"},
	})
	if code != 423 {
		t.Fatalf("expected 423 while paused, got %d: %v", code, body)
	}
}

func TestBadRequestValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/market/batches", "application/json", bytes.NewReader([]byte("{broken")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}

	code, _ := postJSON(t, srv.URL+"/market/batches", map[string]any{
		"caller":    "not-an-address",
		"producers": []domain.Address{testProd},
		"cids":      []string{"QmCert"},
	})
	if code != 400 {
		t.Fatalf("expected 400 for bad caller address, got %d", code)
	}

	code, _ = getJSON(t, srv.URL+"/market/tokens/0")
	if code != 400 {
		t.Fatalf("expected 400 for zero token id, got %d", code)
	}
}

func TestEventsEndpointServesMemoryJournal(t *testing.T) {
	srv, _ := newTestServer(t)

	code, _ := postJSON(t, srv.URL+"/market/batches", map[string]any{
		"caller":    testOwner,
		"producers": []domain.Address{testProd},
		"cids":      []string{"QmCert"},
	})
	if code != 201 {
		t.Fatalf("mint status %d", code)
	}

	code, body := getJSON(t, srv.URL+"/market/events")
	if code != 200 {
		t.Fatalf("events status %d", code)
	}
	evs, ok := body["events"].([]any)
	if !ok || len(evs) == 0 {
		t.Fatalf("expected recorded events, got %v", body["events"])
	}
	first := evs[0].(map[string]any)
	if first["type"].(string) != "BATCH_MINTED" {
		t.Fatalf("expected BATCH_MINTED, got %v", first["type"])
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	for _, k := range []string{"SERVICE_PORT", "MARKET_DEV_MODE", "OWNER_ADDRESS", "SCC_MAX_SUPPLY"} {
		os.Unsetenv(k)
	}
	cfg := loadServerConfig()
	if cfg.Port != "8084" {
		t.Fatalf("unexpected default port: %s", cfg.Port)
	}
	if cfg.DevMode {
		t.Fatal("dev mode should default off")
	}
	if cfg.Owner != devOwner {
		t.Fatalf("unexpected default owner: %s", cfg.Owner)
	}

	os.Setenv("SERVICE_PORT", "9099")
	os.Setenv("MARKET_DEV_MODE", "true")
	os.Setenv("SCC_MAX_SUPPLY", "12345")
	defer func() {
		os.Unsetenv("SERVICE_PORT")
		os.Unsetenv("MARKET_DEV_MODE")
		os.Unsetenv("SCC_MAX_SUPPLY")
	}()
	cfg = loadServerConfig()
	if cfg.Port != "9099" || !cfg.DevMode || cfg.SCCMaxSupply != 12345 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestVaultStats(t *testing.T) {
	srv, _ := newTestServer(t)
	code, body := getJSON(t, srv.URL+"/vault/stats")
	if code != 200 {
		t.Fatalf("stats status %d", code)
	}
	for _, key := range []string{"total_active_loans", "scc_supply", "paused"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing %s in %v", key, body)
		}
	}
	if body["total_active_loans"].(float64) != 0 {
		t.Fatalf("expected zero loans, got %v", body["total_active_loans"])
	}
}

func TestUserLoansQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	code, body := getJSON(t, fmt.Sprintf("%s/vault/loans?address=%s", srv.URL, testBuyer))
	if code != 200 {
		t.Fatalf("loans status %d", code)
	}
	if body["count"].(float64) != 0 {
		t.Fatalf("expected zero loans, got %v", body["count"])
	}

	code, _ = getJSON(t, srv.URL+"/vault/loans?address=nope")
	if code != 400 {
		t.Fatalf("expected 400 for bad address, got %d", code)
	}
}

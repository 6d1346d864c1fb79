package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const usage = `usage:
  avctl batch mint --caller <addr> --producer <addr> --cid <cid> [--producer ... --cid ...]
  avctl batch buy --caller <addr> --batch <id> --quantity <n> --max-total <amount>
  avctl batch info --batch <id>
  avctl token redeem --caller <addr> --token <id>
  avctl token transfer --caller <addr> --token <id> --to <addr>
  avctl vault deposit --caller <addr> --token <id>
  avctl vault withdraw --caller <addr> --token <id>
  avctl claim producer --caller <addr>
  avctl claim platform --caller <addr> --to <addr>
  avctl admin pause|unpause --caller <addr> --engine market|vault

environment: AVCTL_BASE_URL (default http://localhost:8084)`

type repeatStringFlag []string

func (r *repeatStringFlag) String() string { return strings.Join(*r, ",") }
func (r *repeatStringFlag) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	*r = append(*r, v)
	return nil
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	switch os.Args[1] + " " + os.Args[2] {
	case "batch mint":
		runBatchMint(os.Args[3:])
	case "batch buy":
		runBatchBuy(os.Args[3:])
	case "batch info":
		runBatchInfo(os.Args[3:])
	case "token redeem":
		runTokenRedeem(os.Args[3:])
	case "token transfer":
		runTokenTransfer(os.Args[3:])
	case "vault deposit":
		runVault("deposits", os.Args[3:])
	case "vault withdraw":
		runVault("withdrawals", os.Args[3:])
	case "claim producer":
		runClaimProducer(os.Args[3:])
	case "claim platform":
		runClaimPlatform(os.Args[3:])
	case "admin pause":
		runAdmin("pause", os.Args[3:])
	case "admin unpause":
		runAdmin("unpause", os.Args[3:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func baseURL() string {
	if v := strings.TrimSpace(os.Getenv("AVCTL_BASE_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://localhost:8084"
}

func runBatchMint(args []string) {
	fs := flag.NewFlagSet("batch mint", flag.ExitOnError)
	caller := fs.String("caller", "", "platform owner address")
	var producers, cids repeatStringFlag
	fs.Var(&producers, "producer", "producer address per certificate (repeatable)")
	fs.Var(&cids, "cid", "metadata cid per certificate (repeatable)")
	_ = fs.Parse(args)
	if *caller == "" || len(producers) == 0 {
		fatal("--caller and at least one --producer/--cid pair are required")
	}
	post("/market/batches", map[string]any{
		"caller": *caller, "producers": producers, "cids": cids,
	})
}

func runBatchBuy(args []string) {
	fs := flag.NewFlagSet("batch buy", flag.ExitOnError)
	caller := fs.String("caller", "", "buyer address")
	batch := fs.Uint64("batch", 0, "batch id")
	qty := fs.Int("quantity", 0, "certificates to buy")
	maxTotal := fs.Int64("max-total", 0, "slippage ceiling for the total charge")
	_ = fs.Parse(args)
	if *caller == "" || *batch == 0 || *qty == 0 {
		fatal("--caller, --batch and --quantity are required")
	}
	post(fmt.Sprintf("/market/batches/%d/buy", *batch), map[string]any{
		"caller": *caller, "quantity": *qty, "max_total": *maxTotal,
	})
}

func runBatchInfo(args []string) {
	fs := flag.NewFlagSet("batch info", flag.ExitOnError)
	batch := fs.Uint64("batch", 0, "batch id")
	_ = fs.Parse(args)
	if *batch == 0 {
		fatal("--batch is required")
	}
	get(fmt.Sprintf("/market/batches/%d", *batch))
}

func runTokenRedeem(args []string) {
	fs := flag.NewFlagSet("token redeem", flag.ExitOnError)
	caller := fs.String("caller", "", "certificate holder address")
	token := fs.Uint64("token", 0, "token id")
	_ = fs.Parse(args)
	if *caller == "" || *token == 0 {
		fatal("--caller and --token are required")
	}
	post(fmt.Sprintf("/market/tokens/%d/redeem", *token), map[string]any{"caller": *caller})
}

func runTokenTransfer(args []string) {
	fs := flag.NewFlagSet("token transfer", flag.ExitOnError)
	caller := fs.String("caller", "", "current holder address")
	token := fs.Uint64("token", 0, "token id")
	to := fs.String("to", "", "recipient address")
	_ = fs.Parse(args)
	if *caller == "" || *token == 0 || *to == "" {
		fatal("--caller, --token and --to are required")
	}
	post(fmt.Sprintf("/market/tokens/%d/transfer", *token), map[string]any{
		"caller": *caller, "to": *to,
	})
}

func runVault(endpoint string, args []string) {
	fs := flag.NewFlagSet("vault "+endpoint, flag.ExitOnError)
	caller := fs.String("caller", "", "borrower address")
	token := fs.Uint64("token", 0, "token id")
	_ = fs.Parse(args)
	if *caller == "" || *token == 0 {
		fatal("--caller and --token are required")
	}
	post("/vault/"+endpoint, map[string]any{"caller": *caller, "token_id": *token})
}

func runClaimProducer(args []string) {
	fs := flag.NewFlagSet("claim producer", flag.ExitOnError)
	caller := fs.String("caller", "", "producer address")
	_ = fs.Parse(args)
	if *caller == "" {
		fatal("--caller is required")
	}
	post("/market/claims/producer", map[string]any{"caller": *caller})
}

func runClaimPlatform(args []string) {
	fs := flag.NewFlagSet("claim platform", flag.ExitOnError)
	caller := fs.String("caller", "", "platform owner address")
	to := fs.String("to", "", "recipient address")
	_ = fs.Parse(args)
	if *caller == "" || *to == "" {
		fatal("--caller and --to are required")
	}
	post("/market/claims/platform", map[string]any{"caller": *caller, "to": *to})
}

func runAdmin(action string, args []string) {
	fs := flag.NewFlagSet("admin "+action, flag.ExitOnError)
	caller := fs.String("caller", "", "platform owner address")
	engine := fs.String("engine", "market", "market or vault")
	_ = fs.Parse(args)
	if *caller == "" {
		fatal("--caller is required")
	}
	if *engine != "market" && *engine != "vault" {
		fatal("--engine must be market or vault")
	}
	post(fmt.Sprintf("/admin/%s/%s", *engine, action), map[string]any{"caller": *caller})
}

func post(path string, body any) {
	b, _ := json.Marshal(body)
	resp, err := http.Post(baseURL()+path, "application/json", bytes.NewReader(b))
	if err != nil {
		fatal(err.Error())
	}
	printResponse(resp)
}

func get(path string) {
	resp, err := http.Get(baseURL() + path)
	if err != nil {
		fatal(err.Error())
	}
	printResponse(resp)
}

func printResponse(resp *http.Response) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fatal(err.Error())
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(raw))
	}
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "avctl: "+msg)
	os.Exit(2)
}

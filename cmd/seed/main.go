// cmd/seed — submits a batch of demo transactions against a running
// copilot server so the review queue, ledger, and stats endpoints have
// data to show.
//
// Usage:
//
//	go run ./cmd/seed
//	COPILOT_URL=http://localhost:8080 go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainproof/compliance-copilot/pkg/client"
)

type seedTx struct {
	from, to, amount, currency, kyc, memo string
}

var demoTxs = []seedTx{
	{"0x742d35cc6634c0532925a3b844bc454e4438f44e", "0x8ba1f109551bd432803012645ac136ddd64dba72", "120.50", "USDC", "kyc-proof-10001", "payroll batch 7"},
	{"0x4bbeeb066ed09b7aed07bf39eee0460dfa261520", "0x281055afc982d96fab65b3a49cac8b878184cb16", "45", "ETH", "kyc-proof-10002", "treasury rebalance"},
	{"0x6f46cf5569aefa1acc1009290c8e043747172d89", "0x90e63c3d53e0ea496845b7a03ec7548b70014a91", "2500", "USDC", "kyc-proof-10003", "vendor settlement"},
	{"0x53d284357ec70ce289d6d64134dfac8e511c8a3d", "0xfe9e8709d3215310075d67e3ed32a380ccf451c8", "80", "DAI", "", "missing kyc on purpose"},
	{"0x000000000000000000000000000000000000dead", "0x8ba1f109551bd432803012645ac136ddd64dba72", "10", "ETH", "kyc-proof-10005", "sanctioned source"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	baseURL := os.Getenv("COPILOT_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c := client.New(baseURL)
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("server unreachable at %s: %w", baseURL, err)
	}

	for _, tx := range demoTxs {
		amount, err := decimal.NewFromString(tx.amount)
		if err != nil {
			return fmt.Errorf("bad seed amount %q: %w", tx.amount, err)
		}
		res, err := c.SubmitTransaction(ctx, client.SubmitTransactionRequest{
			WalletFrom: tx.from,
			WalletTo:   tx.to,
			Amount:     amount,
			Currency:   tx.currency,
			KYCProofID: tx.kyc,
			Memo:       tx.memo,
		})
		if err != nil {
			return fmt.Errorf("submit %s -> %s: %w", tx.from, tx.to, err)
		}
		fmt.Printf("  %-7s %s %s %s\n", res.Decision, res.TxID, tx.amount, tx.currency)
	}

	root, err := c.MerkleRoot(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d transactions, ledger root %s (%d leaves)\n",
		len(demoTxs), root.RootHash, root.TotalLeaves)
	return nil
}

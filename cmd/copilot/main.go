// copilot is the command-line interface for the compliance copilot API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chainproof/compliance-copilot/pkg/client"
)

// version is overridden at release time via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	authToken string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "Compliance copilot CLI",
	Long: `copilot is the command-line interface for the compliance copilot.

It submits transactions for screening, fetches Merkle inclusion proofs for
compliance evidence, and anchors evidence roots on chain.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.copilot")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if authToken == "" {
			authToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.copilot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "copilot server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "session token for privileged commands")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(merkleRootCmd)
	rootCmd.AddCommand(proofCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(anchorCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	opts := []client.Option{client.WithTimeout(30 * time.Second)}
	if authToken != "" {
		opts = append(opts, client.WithBearerToken(authToken))
	}
	return client.New(serverURL, opts...)
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Minute)
}

// ── submit ───────────────────────────────────────────────────────────────────

var (
	submitFrom   string
	submitTo     string
	submitAmount string
	submitCcy    string
	submitKYC    string
	submitMemo   string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a transaction for compliance screening",
	Example: `  copilot submit --from 0xabc... --to 0xdef... --amount 150.5 --currency USDC \
      --kyc-proof kyc-proof-12345`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitFrom, "from", "", "source wallet address (required)")
	submitCmd.Flags().StringVar(&submitTo, "to", "", "destination wallet address (required)")
	submitCmd.Flags().StringVar(&submitAmount, "amount", "", "transaction amount (required)")
	submitCmd.Flags().StringVar(&submitCcy, "currency", "ETH", "currency code")
	submitCmd.Flags().StringVar(&submitKYC, "kyc-proof", "", "KYC proof identifier")
	submitCmd.Flags().StringVar(&submitMemo, "memo", "", "free-form memo")
	submitCmd.MarkFlagRequired("from")   //nolint:errcheck
	submitCmd.MarkFlagRequired("to")     //nolint:errcheck
	submitCmd.MarkFlagRequired("amount") //nolint:errcheck
}

func runSubmit(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(submitAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", submitAmount, err)
	}

	ctx, cancel := cmdContext()
	defer cancel()

	tx, err := newClient().SubmitTransaction(ctx, client.SubmitTransactionRequest{
		WalletFrom: submitFrom,
		WalletTo:   submitTo,
		Amount:     amount,
		Currency:   submitCcy,
		KYCProofID: submitKYC,
		Memo:       submitMemo,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "TX ID\t%s\n", tx.TxID)
	fmt.Fprintf(w, "DECISION\t%s\n", tx.Decision)
	if tx.Reason != "" {
		fmt.Fprintf(w, "REASON\t%s\n", tx.Reason)
	}
	fmt.Fprintf(w, "EVIDENCE\t%s\n", tx.EvidenceHash)
	fmt.Fprintf(w, "MERKLE LEAF\t%s\n", tx.MerkleLeaf)
	return w.Flush()
}

// ── get ──────────────────────────────────────────────────────────────────────

var getCmd = &cobra.Command{
	Use:   "get <tx-id>",
	Short: "Show a screened transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		tx, err := newClient().GetTransaction(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(tx)
	},
}

// ── root ─────────────────────────────────────────────────────────────────────

var merkleRootCmd = &cobra.Command{
	Use:   "root",
	Short: "Show the current evidence ledger root",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		root, err := newClient().MerkleRoot(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("root:   %s\nleaves: %d\n", root.RootHash, root.TotalLeaves)
		return nil
	},
}

// ── proof ────────────────────────────────────────────────────────────────────

var proofCmd = &cobra.Command{
	Use:   "proof <evidence-hash>",
	Short: "Fetch a Merkle inclusion proof for an evidence hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		proof, err := newClient().MerkleProof(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(proof)
	},
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyRootFlag string

var verifyCmd = &cobra.Command{
	Use:   "verify <evidence-hash>",
	Short: "Verify an evidence hash against the ledger",
	Long: `Verify fetches the inclusion proof for the given evidence hash and asks
the server to check it. Pass --root to verify against a previously anchored
root instead of the current one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		c := newClient()
		proof, err := c.MerkleProof(ctx, args[0])
		if err != nil {
			return err
		}
		result, err := c.VerifyEvidence(ctx, args[0], proof, verifyRootFlag)
		if err != nil {
			return err
		}
		if result.Valid {
			fmt.Printf("VALID against root %s\n", result.VerifiedRoot)
			return nil
		}
		return fmt.Errorf("INVALID against root %s", result.VerifiedRoot)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyRootFlag, "root", "", "expected root hash (default: current ledger root)")
}

// ── anchor ───────────────────────────────────────────────────────────────────

var anchorRootFlag string

var anchorCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Anchor the evidence ledger root on chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		outcome, err := newClient().AnchorRoot(ctx, anchorRootFlag)
		if err != nil {
			return err
		}
		fmt.Printf("anchored root %s\n", outcome.Result.Root)
		if outcome.Result.TxHash != "" {
			fmt.Printf("tx %s (block %d)\n", outcome.Result.TxHash, outcome.Result.BlockNumber)
		}
		fmt.Printf("transactions stamped: %d\n", outcome.TransactionsStamped)
		return nil
	},
}

func init() {
	anchorCmd.Flags().StringVar(&anchorRootFlag, "root", "", "explicit root to anchor (default: current ledger root)")
}

// ── health ───────────────────────────────────────────────────────────────────

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server and anchoring backend health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		c := newClient()
		if err := c.Health(ctx); err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		fmt.Println("server: ok")

		anchorHealth, err := c.AnchorHealth(ctx)
		if err != nil {
			fmt.Println("anchor: unreachable")
			return nil
		}
		return printJSON(anchorHealth)
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("copilot", version)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

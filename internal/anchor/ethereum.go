package anchor

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// complianceAnchorABI matches the deployed ComplianceAnchor contract: a
// single write method plus an event per anchored root.
const complianceAnchorABI = `[
  {
    "type": "function",
    "name": "anchorRoot",
    "stateMutability": "nonpayable",
    "inputs": [{"name": "root", "type": "bytes32"}],
    "outputs": []
  },
  {
    "type": "function",
    "name": "version",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "string"}]
  },
  {
    "type": "function",
    "name": "owner",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "address"}]
  },
  {
    "type": "event",
    "name": "RootAnchored",
    "inputs": [
      {"name": "root", "type": "bytes32", "indexed": true},
      {"name": "timestamp", "type": "uint256", "indexed": false},
      {"name": "by", "type": "address", "indexed": true}
    ],
    "anonymous": false
  }
]`

// EthereumConfig holds the connection and signing parameters for the
// on-chain anchorer.
type EthereumConfig struct {
	RPCURL          string
	ContractAddress string
	PrivateKeyHex   string
	ConfirmTimeout  time.Duration
	EventLookback   uint64 // blocks scanned backwards when listing events
	MaxRetries      int    // submission attempts before giving up
	RetryBaseDelay  time.Duration
}

// EthereumAnchorer writes roots to the ComplianceAnchor contract over a
// JSON-RPC connection.
type EthereumAnchorer struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	parsed   abi.ABI
	opts     *bind.TransactOpts
	address  common.Address
	signer   common.Address
	cfg      EthereumConfig
	logger   *zap.Logger
}

// NewEthereumAnchorer dials the RPC endpoint and prepares a transactor for
// the configured private key. The chain ID is fetched from the node.
func NewEthereumAnchorer(ctx context.Context, cfg EthereumConfig, logger *zap.Logger) (*EthereumAnchorer, error) {
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}
	if cfg.EventLookback == 0 {
		cfg.EventLookback = 50_000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse anchor private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("build transactor: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(complianceAnchorABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse anchor abi: %w", err)
	}

	if !common.IsHexAddress(cfg.ContractAddress) {
		client.Close()
		return nil, fmt.Errorf("invalid anchor contract address %q", cfg.ContractAddress)
	}
	addr := common.HexToAddress(cfg.ContractAddress)

	a := &EthereumAnchorer{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client, client, client),
		parsed:   parsed,
		opts:     opts,
		address:  addr,
		signer:   crypto.PubkeyToAddress(key.PublicKey),
		cfg:      cfg,
		logger:   logger,
	}
	logger.Info("ethereum anchorer ready",
		zap.String("contract", addr.Hex()),
		zap.String("signer", a.signer.Hex()),
		zap.String("chain_id", chainID.String()))
	return a, nil
}

// AnchorRoot submits the root to the contract and waits for the receipt.
// Transient submission failures are retried with exponential backoff.
func (a *EthereumAnchorer) AnchorRoot(ctx context.Context, root string) (*Result, error) {
	canonical, err := NormalizeRoot(root)
	if err != nil {
		return nil, err
	}
	var root32 [32]byte
	copy(root32[:], common.FromHex(canonical))

	return submitWithBackoff(ctx, a.cfg.MaxRetries, a.cfg.RetryBaseDelay, a.logger, func() (*Result, error) {
		return a.submitRoot(ctx, canonical, root32)
	})
}

func (a *EthereumAnchorer) submitRoot(ctx context.Context, canonical string, root32 [32]byte) (*Result, error) {
	opts := *a.opts
	opts.Context = ctx

	tx, err := a.contract.Transact(&opts, "anchorRoot", root32)
	if err != nil {
		return nil, fmt.Errorf("submit anchor transaction: %w", err)
	}
	a.logger.Info("anchor transaction submitted",
		zap.String("root", canonical),
		zap.String("tx_hash", tx.Hash().Hex()))

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.ConfirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, a.client, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for anchor transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("anchor transaction %s reverted", tx.Hash().Hex())
	}

	anchoredAt := time.Now().UTC()
	if header, err := a.client.HeaderByNumber(ctx, receipt.BlockNumber); err == nil {
		anchoredAt = time.Unix(int64(header.Time), 0).UTC()
	}

	return &Result{
		Root:        canonical,
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		AnchoredAt:  anchoredAt,
	}, nil
}

// submitWithBackoff runs fn up to attempts times, doubling the wait between
// tries. A cancelled context aborts the wait.
func submitWithBackoff(ctx context.Context, attempts int, baseDelay time.Duration, logger *zap.Logger, fn func() (*Result, error)) (*Result, error) {
	if attempts <= 0 {
		attempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			logger.Warn("anchor attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("anchor failed after %d attempts: %w", attempts, lastErr)
}

// Events scans recent blocks for RootAnchored logs, newest first.
func (a *EthereumAnchorer) Events(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch head block: %w", err)
	}
	from := uint64(0)
	if head > a.cfg.EventLookback {
		from = head - a.cfg.EventLookback
	}

	eventID := a.parsed.Events["RootAnchored"].ID
	logs, err := a.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: []common.Address{a.address},
		Topics:    [][]common.Hash{{eventID}},
	})
	if err != nil {
		return nil, fmt.Errorf("filter anchor logs: %w", err)
	}

	events := make([]Event, 0, len(logs))
	for i := len(logs) - 1; i >= 0 && len(events) < limit; i-- {
		lg := logs[i]
		if len(lg.Topics) < 3 {
			continue
		}
		ev := Event{
			Root:        "0x" + common.Bytes2Hex(lg.Topics[1].Bytes()),
			AnchoredBy:  common.BytesToAddress(lg.Topics[2].Bytes()).Hex(),
			TxHash:      lg.TxHash.Hex(),
			BlockNumber: lg.BlockNumber,
		}
		if unpacked, err := a.parsed.Unpack("RootAnchored", lg.Data); err == nil && len(unpacked) == 1 {
			if ts, ok := unpacked[0].(*big.Int); ok {
				ev.Timestamp = time.Unix(ts.Int64(), 0).UTC()
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

// Health checks RPC connectivity, the signer balance, and the deployed
// contract's version and owner.
func (a *EthereumAnchorer) Health(ctx context.Context) (*Health, error) {
	chainID, err := a.client.ChainID(ctx)
	if err != nil {
		return &Health{Connected: false, Error: err.Error()}, nil
	}
	h := &Health{
		Connected: true,
		ChainID:   chainID.String(),
		Signer:    a.signer.Hex(),
	}
	if block, err := a.client.BlockNumber(ctx); err == nil {
		h.LatestBlock = block
	}
	if bal, err := a.client.BalanceAt(ctx, a.signer, nil); err == nil {
		h.BalanceWei = bal.String()
	}

	callOpts := &bind.CallOpts{Context: ctx}
	var versionOut []interface{}
	if err := a.contract.Call(callOpts, &versionOut, "version"); err == nil && len(versionOut) == 1 {
		if v, ok := versionOut[0].(string); ok {
			h.ContractVersion = v
		}
	}
	var ownerOut []interface{}
	if err := a.contract.Call(callOpts, &ownerOut, "owner"); err == nil && len(ownerOut) == 1 {
		if owner, ok := ownerOut[0].(common.Address); ok {
			h.ContractOwner = owner.Hex()
		}
	}
	return h, nil
}

// Close releases the underlying RPC connection.
func (a *EthereumAnchorer) Close() {
	a.client.Close()
}

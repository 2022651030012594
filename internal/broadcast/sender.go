package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/kelsos/weave-sweep/internal/logger"
	"github.com/kelsos/weave-sweep/internal/models"
)

const (
	accountQueryPath = "/cosmos.auth.v1beta1.Query/Account"
	baseAccountType  = "/cosmos.auth.v1beta1.BaseAccount"

	DefaultMemo = "Sent via weave-sweep"
)

var (
	ErrNotIncluded    = errors.New("transaction not included in a block in time")
	ErrSenderMismatch = errors.New("mnemonic does not control the sending address")
)

// RPCClient is the subset of the CometBFT RPC used to sign and broadcast
type RPCClient interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error)
	BroadcastTxSync(ctx context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTx, error)
	Tx(ctx context.Context, hash []byte, prove bool) (*coretypes.ResultTx, error)
}

// DialFunc connects to a CometBFT RPC endpoint
type DialFunc func(endpoint string) (RPCClient, error)

// DialHTTP connects over the CometBFT HTTP transport
func DialHTTP(endpoint string) (RPCClient, error) {
	c, err := rpchttp.New(endpoint, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", endpoint, err)
	}
	return c, nil
}

// SendRequest describes one bank transfer
type SendRequest struct {
	Mnemonic    string
	Prefix      string
	RPCEndpoint string
	Recipient   string
	Amount      sdkmath.Int
	Denom       string
	GasPrice    string
	GasLimit    int64
	Memo        string

	// ExpectedSender, when set, must equal the address derived from Mnemonic
	ExpectedSender string
}

// Sender signs and broadcasts single-message bank transfers
type Sender struct {
	dial          DialFunc
	wallets       *WalletCache
	clients       map[string]RPCClient
	pollInterval  time.Duration
	inclusionWait time.Duration
}

func NewSender(dial DialFunc, pollInterval, inclusionWait time.Duration) (*Sender, error) {
	wallets, err := NewWalletCache(64)
	if err != nil {
		return nil, err
	}
	return &Sender{
		dial:          dial,
		wallets:       wallets,
		clients:       make(map[string]RPCClient),
		pollInterval:  pollInterval,
		inclusionWait: inclusionWait,
	}, nil
}

// Wallet returns the derived wallet for mnemonic under prefix
func (s *Sender) Wallet(mnemonic, prefix string) (*Wallet, error) {
	return s.wallets.Get(mnemonic, prefix)
}

// Send transfers req.Amount to req.Recipient. Failures are reported in the
// result and never returned as errors.
func (s *Sender) Send(ctx context.Context, req SendRequest) models.TransactionResult {
	hash, height, err := s.send(ctx, req)
	if err != nil {
		return models.TransactionResult{Hash: hash, Success: false, ErrorMessage: err.Error()}
	}
	return models.TransactionResult{Hash: hash, Height: height, Success: true}
}

func (s *Sender) send(ctx context.Context, req SendRequest) (string, int64, error) {
	if req.GasLimit <= 0 {
		return "", 0, fmt.Errorf("gas limit must be positive, got %d", req.GasLimit)
	}
	memo := req.Memo
	if memo == "" {
		memo = DefaultMemo
	}

	wallet, err := s.wallets.Get(req.Mnemonic, req.Prefix)
	if err != nil {
		return "", 0, err
	}
	if req.ExpectedSender != "" && wallet.Address != req.ExpectedSender {
		return "", 0, fmt.Errorf("%w: %s, key derives %s", ErrSenderMismatch, req.ExpectedSender, wallet.Address)
	}

	amount, err := coin(req.Denom, req.Amount)
	if err != nil {
		return "", 0, fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		return "", 0, fmt.Errorf("amount must be positive, got %s", amount)
	}
	feeAmount, err := Fee(req.GasLimit, req.GasPrice)
	if err != nil {
		return "", 0, err
	}
	fee, err := coin(req.Denom, feeAmount)
	if err != nil {
		return "", 0, fmt.Errorf("invalid fee: %w", err)
	}

	rpc, err := s.client(req.RPCEndpoint)
	if err != nil {
		return "", 0, err
	}

	status, err := rpc.Status(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("querying node status: %w", err)
	}

	account, err := queryAccount(ctx, rpc, wallet.Address)
	if err != nil {
		return "", 0, err
	}

	tx, err := buildSignedSend(wallet, txParams{
		ChainID:       status.NodeInfo.Network,
		AccountNumber: account.AccountNumber,
		Sequence:      account.Sequence,
		Recipient:     req.Recipient,
		Amount:        amount,
		Fee:           fee,
		GasLimit:      uint64(req.GasLimit),
		Memo:          memo,
	})
	if err != nil {
		return "", 0, err
	}

	logger.Debug("Broadcasting %s from %s to %s on %s (fee %s)", amount, wallet.Address, req.Recipient, status.NodeInfo.Network, fee)

	res, err := rpc.BroadcastTxSync(ctx, tx.Bytes)
	if err != nil {
		return "", 0, fmt.Errorf("broadcasting: %w", err)
	}
	if res.Code != 0 {
		return tx.Hash, 0, fmt.Errorf("rejected by CheckTx (codespace %s, code %d): %s", res.Codespace, res.Code, res.Log)
	}

	height, err := s.waitForInclusion(ctx, rpc, tx)
	if err != nil {
		return tx.Hash, 0, err
	}
	return tx.Hash, height, nil
}

func (s *Sender) client(endpoint string) (RPCClient, error) {
	if c, ok := s.clients[endpoint]; ok {
		return c, nil
	}
	c, err := s.dial(endpoint)
	if err != nil {
		return nil, err
	}
	s.clients[endpoint] = c
	return c, nil
}

func (s *Sender) waitForInclusion(ctx context.Context, rpc RPCClient, tx *signedTx) (int64, error) {
	hash := cmttypes.Tx(tx.Bytes).Hash()
	deadline := time.Now().Add(s.inclusionWait)

	for {
		res, err := rpc.Tx(ctx, hash, false)
		if err == nil {
			if res.TxResult.Code != 0 {
				return res.Height, fmt.Errorf("failed in block %d (codespace %s, code %d): %s",
					res.Height, res.TxResult.Codespace, res.TxResult.Code, res.TxResult.Log)
			}
			return res.Height, nil
		}
		logger.Debug("Transaction %s not found yet: %v", tx.Hash, err)

		if time.Now().Add(s.pollInterval).After(deadline) {
			return 0, fmt.Errorf("%w: %s after %s", ErrNotIncluded, tx.Hash, s.inclusionWait)
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

func queryAccount(ctx context.Context, rpc RPCClient, address string) (*authtypes.BaseAccount, error) {
	req := authtypes.QueryAccountRequest{Address: address}
	data, err := req.Marshal()
	if err != nil {
		return nil, err
	}

	res, err := rpc.ABCIQuery(ctx, accountQueryPath, data)
	if err != nil {
		return nil, fmt.Errorf("querying account %s: %w", address, err)
	}
	if res.Response.Code != 0 {
		return nil, fmt.Errorf("account %s not found (code %d): %s", address, res.Response.Code, res.Response.Log)
	}

	var out authtypes.QueryAccountResponse
	if err := out.Unmarshal(res.Response.Value); err != nil {
		return nil, fmt.Errorf("decoding account %s: %w", address, err)
	}
	if out.Account == nil || out.Account.TypeUrl != baseAccountType {
		typeURL := ""
		if out.Account != nil {
			typeURL = out.Account.TypeUrl
		}
		return nil, fmt.Errorf("account %s has unsupported type %q", address, typeURL)
	}

	var account authtypes.BaseAccount
	if err := account.Unmarshal(out.Account.Value); err != nil {
		return nil, fmt.Errorf("decoding base account %s: %w", address, err)
	}
	return &account, nil
}

func txHash(txBytes []byte) string {
	return fmt.Sprintf("%X", cmttypes.Tx(txBytes).Hash())
}

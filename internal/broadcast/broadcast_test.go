package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	"github.com/cometbft/cometbft/p2p"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type fakeRPC struct {
	chainID       string
	accountNumber uint64
	sequence      uint64
	accountType   string
	checkCode     uint32
	deliverCode   uint32
	missingPolls  int

	queried   []string
	broadcast [][]byte
	polls     int
}

func (f *fakeRPC) Status(ctx context.Context) (*coretypes.ResultStatus, error) {
	return &coretypes.ResultStatus{NodeInfo: p2p.DefaultNodeInfo{Network: f.chainID}}, nil
}

func (f *fakeRPC) ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error) {
	var req authtypes.QueryAccountRequest
	if err := req.Unmarshal(data); err != nil {
		return nil, err
	}
	f.queried = append(f.queried, req.Address)

	var account *codectypes.Any
	var err error
	if f.accountType == "" {
		account, err = codectypes.NewAnyWithValue(&authtypes.BaseAccount{
			Address:       req.Address,
			AccountNumber: f.accountNumber,
			Sequence:      f.sequence,
		})
		if err != nil {
			return nil, err
		}
	} else {
		account = &codectypes.Any{TypeUrl: f.accountType}
	}

	resp := authtypes.QueryAccountResponse{Account: account}
	bz, err := resp.Marshal()
	if err != nil {
		return nil, err
	}
	return &coretypes.ResultABCIQuery{Response: abci.ResponseQuery{Value: bz}}, nil
}

func (f *fakeRPC) BroadcastTxSync(ctx context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTx, error) {
	f.broadcast = append(f.broadcast, tx)
	if f.checkCode != 0 {
		return &coretypes.ResultBroadcastTx{Code: f.checkCode, Codespace: "sdk", Log: "insufficient funds"}, nil
	}
	return &coretypes.ResultBroadcastTx{Hash: tx.Hash()}, nil
}

func (f *fakeRPC) Tx(ctx context.Context, hash []byte, prove bool) (*coretypes.ResultTx, error) {
	f.polls++
	if f.polls <= f.missingPolls {
		return nil, errors.New("tx not found")
	}
	return &coretypes.ResultTx{
		Hash:     hash,
		Height:   4242,
		TxResult: abci.ExecTxResult{Code: f.deliverCode, Log: "out of gas"},
	}, nil
}

func newTestSender(t *testing.T, rpc *fakeRPC) *Sender {
	t.Helper()
	s, err := NewSender(func(endpoint string) (RPCClient, error) {
		require.Equal(t, "http://node:26657", endpoint)
		return rpc, nil
	}, time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)
	return s
}

func sendRequest() SendRequest {
	return SendRequest{
		Mnemonic:    testMnemonic,
		Prefix:      "init",
		RPCEndpoint: "http://node:26657",
		Recipient:   "init1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqz6e8ns",
		Amount:      sdkmath.NewInt(800000),
		Denom:       "uinit",
		GasPrice:    "0.1",
		GasLimit:    200000,
		Memo:        "Return to gas station",
	}
}

func TestDeriveWallet(t *testing.T) {
	cosmos, err := DeriveWallet(testMnemonic, "cosmos")
	require.NoError(t, err)
	require.Equal(t, "cosmos19rl4cm2hmr8afy4kldpxz3fka4jguq0auqdal4", cosmos.Address)

	initA, err := DeriveWallet(testMnemonic, "init")
	require.NoError(t, err)
	initB, err := DeriveWallet("  "+testMnemonic+"\n", "init")
	require.NoError(t, err)
	require.Equal(t, initA.Address, initB.Address)

	celestia, err := DeriveWallet(testMnemonic, "celestia")
	require.NoError(t, err)
	require.NotEqual(t, initA.Address, celestia.Address)

	// same key, different encodings
	_, a, err := bech32.DecodeAndConvert(initA.Address)
	require.NoError(t, err)
	_, b, err := bech32.DecodeAndConvert(celestia.Address)
	require.NoError(t, err)
	require.Equal(t, a, b)

	_, err = DeriveWallet("not a real mnemonic", "init")
	require.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestWalletCache(t *testing.T) {
	cache, err := NewWalletCache(2)
	require.NoError(t, err)

	w1, err := cache.Get(testMnemonic, "init")
	require.NoError(t, err)
	w2, err := cache.Get(testMnemonic, "init")
	require.NoError(t, err)
	require.Same(t, w1, w2)

	_, err = cache.Get(testMnemonic, "celestia")
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())
}

func TestFee(t *testing.T) {
	fee, err := Fee(200000, "0.1")
	require.NoError(t, err)
	require.Equal(t, "20000", fee.String())

	fee, err = Fee(100001, "0.015")
	require.NoError(t, err)
	require.Equal(t, "1501", fee.String(), "rounded up")

	_, err = Fee(200000, "ten")
	require.Error(t, err)
}

func TestSendSignsAndBroadcasts(t *testing.T) {
	rpc := &fakeRPC{chainID: "initiation-2", accountNumber: 17, sequence: 3, missingPolls: 2}
	s := newTestSender(t, rpc)

	res := s.Send(context.Background(), sendRequest())
	require.True(t, res.Success, res.ErrorMessage)
	require.Equal(t, int64(4242), res.Height)
	require.Len(t, rpc.broadcast, 1)
	require.Equal(t, 3, rpc.polls)

	wallet, err := DeriveWallet(testMnemonic, "init")
	require.NoError(t, err)
	require.Equal(t, []string{wallet.Address}, rpc.queried)

	txBytes := rpc.broadcast[0]
	require.Equal(t, txHash(txBytes), res.Hash)

	var raw txtypes.TxRaw
	require.NoError(t, raw.Unmarshal(txBytes))
	require.Len(t, raw.Signatures, 1)

	var body txtypes.TxBody
	require.NoError(t, body.Unmarshal(raw.BodyBytes))
	require.Equal(t, "Return to gas station", body.Memo)
	require.Len(t, body.Messages, 1)
	require.Equal(t, "/cosmos.bank.v1beta1.MsgSend", body.Messages[0].TypeUrl)

	var msg banktypes.MsgSend
	require.NoError(t, msg.Unmarshal(body.Messages[0].Value))
	require.Equal(t, wallet.Address, msg.FromAddress)
	require.Equal(t, "init1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqz6e8ns", msg.ToAddress)
	require.Equal(t, "800000uinit", msg.Amount.String())

	var authInfo txtypes.AuthInfo
	require.NoError(t, authInfo.Unmarshal(raw.AuthInfoBytes))
	require.Equal(t, uint64(200000), authInfo.Fee.GasLimit)
	require.Equal(t, "20000uinit", authInfo.Fee.Amount.String())
	require.Equal(t, uint64(3), authInfo.SignerInfos[0].Sequence)

	var pub secp256k1.PubKey
	require.NoError(t, pub.Unmarshal(authInfo.SignerInfos[0].PublicKey.Value))

	signDoc := txtypes.SignDoc{
		BodyBytes:     raw.BodyBytes,
		AuthInfoBytes: raw.AuthInfoBytes,
		ChainId:       "initiation-2",
		AccountNumber: 17,
	}
	signBytes, err := signDoc.Marshal()
	require.NoError(t, err)
	require.True(t, pub.VerifySignature(signBytes, raw.Signatures[0]))
}

func TestSendCheckTxFailure(t *testing.T) {
	rpc := &fakeRPC{chainID: "mocha-4", checkCode: 5}
	s := newTestSender(t, rpc)

	res := s.Send(context.Background(), sendRequest())
	require.False(t, res.Success)
	require.NotEmpty(t, res.Hash)
	require.Contains(t, res.ErrorMessage, "insufficient funds")
	require.Zero(t, rpc.polls)
}

func TestSendDeliverTxFailure(t *testing.T) {
	rpc := &fakeRPC{chainID: "mocha-4", deliverCode: 11}
	res := newTestSender(t, rpc).Send(context.Background(), sendRequest())
	require.False(t, res.Success)
	require.Contains(t, res.ErrorMessage, "out of gas")
}

func TestSendNotIncluded(t *testing.T) {
	rpc := &fakeRPC{chainID: "mocha-4", missingPolls: 1 << 20}
	res := newTestSender(t, rpc).Send(context.Background(), sendRequest())
	require.False(t, res.Success)
	require.Contains(t, res.ErrorMessage, ErrNotIncluded.Error())
}

func TestSendRejectsUnsupportedAccount(t *testing.T) {
	rpc := &fakeRPC{chainID: "mocha-4", accountType: "/cosmos.vesting.v1beta1.DelayedVestingAccount"}
	res := newTestSender(t, rpc).Send(context.Background(), sendRequest())
	require.False(t, res.Success)
	require.Contains(t, res.ErrorMessage, "unsupported type")
	require.Empty(t, rpc.broadcast)
}

func TestSendRejectsForeignKey(t *testing.T) {
	rpc := &fakeRPC{chainID: "initiation-2"}
	s := newTestSender(t, rpc)

	req := sendRequest()
	req.ExpectedSender = "init1validator"
	res := s.Send(context.Background(), req)
	require.False(t, res.Success)
	require.Contains(t, res.ErrorMessage, ErrSenderMismatch.Error())
	require.Contains(t, res.ErrorMessage, "init1validator")
	require.Empty(t, rpc.queried)
	require.Empty(t, rpc.broadcast)

	wallet, err := DeriveWallet(testMnemonic, "init")
	require.NoError(t, err)
	req.ExpectedSender = wallet.Address
	require.True(t, s.Send(context.Background(), req).Success)
}

func TestSendValidatesBeforeIO(t *testing.T) {
	rpc := &fakeRPC{chainID: "mocha-4"}
	s := newTestSender(t, rpc)

	req := sendRequest()
	req.Mnemonic = "word word word"
	require.False(t, s.Send(context.Background(), req).Success)

	req = sendRequest()
	req.Denom = "!!"
	require.False(t, s.Send(context.Background(), req).Success)

	req = sendRequest()
	req.Amount = sdkmath.ZeroInt()
	require.False(t, s.Send(context.Background(), req).Success)

	require.Empty(t, rpc.queried)
}

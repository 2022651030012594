package broadcast

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	signingtypes "github.com/cosmos/cosmos-sdk/types/tx/signing"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
)

// Fee returns ceil(gasLimit * gasPrice) in base units
func Fee(gasLimit int64, gasPrice string) (sdkmath.Int, error) {
	price, err := sdkmath.LegacyNewDecFromStr(gasPrice)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("invalid gas price %q: %w", gasPrice, err)
	}
	if price.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("negative gas price %q", gasPrice)
	}
	return price.MulInt64(gasLimit).Ceil().TruncateInt(), nil
}

func coin(denom string, amount sdkmath.Int) (sdk.Coin, error) {
	c := sdk.Coin{Denom: denom, Amount: amount}
	if err := c.Validate(); err != nil {
		return sdk.Coin{}, err
	}
	return c, nil
}

// signedTx holds the encoded transaction ready for broadcast
type signedTx struct {
	Bytes []byte
	Hash  string
}

type txParams struct {
	ChainID       string
	AccountNumber uint64
	Sequence      uint64
	Recipient     string
	Amount        sdk.Coin
	Fee           sdk.Coin
	GasLimit      uint64
	Memo          string
}

// buildSignedSend encodes one MsgSend signed in SIGN_MODE_DIRECT
func buildSignedSend(w *Wallet, p txParams) (*signedTx, error) {
	msg, err := codectypes.NewAnyWithValue(&banktypes.MsgSend{
		FromAddress: w.Address,
		ToAddress:   p.Recipient,
		Amount:      sdk.Coins{p.Amount},
	})
	if err != nil {
		return nil, fmt.Errorf("packing MsgSend: %w", err)
	}

	body := txtypes.TxBody{Messages: []*codectypes.Any{msg}, Memo: p.Memo}
	bodyBytes, err := body.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding tx body: %w", err)
	}

	pubKey, err := codectypes.NewAnyWithValue(w.PubKey())
	if err != nil {
		return nil, fmt.Errorf("packing public key: %w", err)
	}

	var fees sdk.Coins
	if !p.Fee.Amount.IsZero() {
		fees = sdk.Coins{p.Fee}
	}

	authInfo := txtypes.AuthInfo{
		SignerInfos: []*txtypes.SignerInfo{{
			PublicKey: pubKey,
			ModeInfo: &txtypes.ModeInfo{
				Sum: &txtypes.ModeInfo_Single_{
					Single: &txtypes.ModeInfo_Single{Mode: signingtypes.SignMode_SIGN_MODE_DIRECT},
				},
			},
			Sequence: p.Sequence,
		}},
		Fee: &txtypes.Fee{Amount: fees, GasLimit: p.GasLimit},
	}
	authInfoBytes, err := authInfo.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding auth info: %w", err)
	}

	signDoc := txtypes.SignDoc{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: authInfoBytes,
		ChainId:       p.ChainID,
		AccountNumber: p.AccountNumber,
	}
	signBytes, err := signDoc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding sign doc: %w", err)
	}

	sig, err := w.Sign(signBytes)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}

	raw := txtypes.TxRaw{BodyBytes: bodyBytes, AuthInfoBytes: authInfoBytes, Signatures: [][]byte{sig}}
	txBytes, err := raw.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding tx: %w", err)
	}

	return &signedTx{Bytes: txBytes, Hash: txHash(txBytes)}, nil
}

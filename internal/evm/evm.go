package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// GasTokenDecimals is the precision of the native EVM gas token
const GasTokenDecimals = 18

const initiaPrefix = "init"

var ErrInvalidEVMAddress = errors.New("invalid EVM address")

// ToInitia converts a 0x address to its init1 form
func ToInitia(hexAddress string) (string, error) {
	if !strings.HasPrefix(hexAddress, "0x") || !common.IsHexAddress(hexAddress) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEVMAddress, hexAddress)
	}
	return bech32.ConvertAndEncode(initiaPrefix, common.HexToAddress(hexAddress).Bytes())
}

// ToEVM converts an init1 address to its checksummed 0x form
func ToEVM(initiaAddress string) (string, error) {
	hrp, bz, err := bech32.DecodeAndConvert(initiaAddress)
	if err != nil {
		return "", fmt.Errorf("decoding %q: %w", initiaAddress, err)
	}
	if hrp != initiaPrefix {
		return "", fmt.Errorf("unexpected prefix %q in %q", hrp, initiaAddress)
	}
	if len(bz) != common.AddressLength {
		return "", fmt.Errorf("%q holds %d bytes, EVM addresses have %d", initiaAddress, len(bz), common.AddressLength)
	}
	return common.BytesToAddress(bz).Hex(), nil
}

// Convert maps 0x addresses to init1 and init1 addresses to 0x
func Convert(address string) (string, error) {
	switch {
	case strings.HasPrefix(address, "0x"):
		return ToInitia(address)
	case strings.HasPrefix(address, initiaPrefix+"1"):
		return ToEVM(address)
	default:
		return "", fmt.Errorf("invalid address format %q: must start with \"0x\" or \"init1\"", address)
	}
}

// GasBalance is a native token balance read from an EVM node
type GasBalance struct {
	Address   string
	Wei       *big.Int
	Formatted string
}

// FetchGasBalance queries eth_getBalance at the latest block
func FetchGasBalance(ctx context.Context, nodeURL, address string) (*GasBalance, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEVMAddress, address)
	}

	client, err := ethclient.DialContext(ctx, nodeURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", nodeURL, err)
	}
	defer client.Close()

	wei, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching balance of %s: %w", address, err)
	}

	return &GasBalance{
		Address:   address,
		Wei:       wei,
		Formatted: decimal.NewFromBigInt(wei, -GasTokenDecimals).StringFixed(GasTokenDecimals),
	}, nil
}

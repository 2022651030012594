package broadcast

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	bip39 "github.com/cosmos/go-bip39"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CoinType 118 is shared by Initia and Celestia
const CoinType = 118

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// Wallet is a secp256k1 key with its bech32 address for one prefix
type Wallet struct {
	Address string
	privKey *secp256k1.PrivKey
}

func (w *Wallet) PubKey() *secp256k1.PubKey {
	return w.privKey.PubKey().(*secp256k1.PubKey)
}

// Sign signs the raw bytes; the key hashes them with sha256
func (w *Wallet) Sign(msg []byte) ([]byte, error) {
	return w.privKey.Sign(msg)
}

// DeriveWallet derives the first account key (m/44'/118'/0'/0/0) from a
// mnemonic and encodes its address with prefix. The same mnemonic yields a
// different address for every prefix.
func DeriveWallet(mnemonic, prefix string) (*Wallet, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	path := hd.CreateHDPath(CoinType, 0, 0).String()
	derived, err := hd.Secp256k1.Derive()(mnemonic, "", path)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	priv := &secp256k1.PrivKey{Key: derived}
	address, err := bech32.ConvertAndEncode(prefix, priv.PubKey().Address())
	if err != nil {
		return nil, fmt.Errorf("encoding %s address: %w", prefix, err)
	}

	return &Wallet{Address: address, privKey: priv}, nil
}

// WalletCache memoizes derived wallets. Keys are hashed so mnemonics are not
// held as map keys.
type WalletCache struct {
	cache *lru.Cache[string, *Wallet]
}

func NewWalletCache(size int) (*WalletCache, error) {
	cache, err := lru.New[string, *Wallet](size)
	if err != nil {
		return nil, err
	}
	return &WalletCache{cache: cache}, nil
}

func (c *WalletCache) Get(mnemonic, prefix string) (*Wallet, error) {
	sum := sha256.Sum256([]byte(prefix + "\x00" + mnemonic))
	key := hex.EncodeToString(sum[:])

	if w, ok := c.cache.Get(key); ok {
		return w, nil
	}
	w, err := DeriveWallet(mnemonic, prefix)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, w)
	return w, nil
}

func (c *WalletCache) Len() int {
	return c.cache.Len()
}

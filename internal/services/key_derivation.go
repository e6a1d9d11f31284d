package services

import (
	"crypto/ecdsa"
	"fmt"
	"regexp"
	"strings"

	"walletd/internal/apperrors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// DerivationPath first account of the standard Ethereum BIP-44 tree
const DerivationPath = "m/44'/60'/0'/0/0"

var (
	privateKeyPattern = regexp.MustCompile("^[0-9a-fA-F]{64}$")
	derivationSteps   = []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
		0,
	}
)

// DerivedKey a signing key plus the mnemonic it came from, if any
type DerivedKey struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
	Mnemonic   string
}

// GenerateMnemonicKey new 12-word mnemonic and its first account
func GenerateMnemonicKey() (*DerivedKey, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer clear(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return deriveFromMnemonic(mnemonic)
}

// NormalizeMnemonic trims, lower-cases and collapses whitespace
func NormalizeMnemonic(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// KeyFromMnemonic validates word count and checksum before deriving
func KeyFromMnemonic(phrase string) (*DerivedKey, error) {
	mnemonic := NormalizeMnemonic(phrase)
	words := strings.Count(mnemonic, " ") + 1
	if mnemonic == "" || (words != 12 && words != 24) {
		return nil, apperrors.Validation("seed_phrase", "seed phrase invalid word count")
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, apperrors.Validation("seed_phrase", "seed phrase invalid")
	}
	return deriveFromMnemonic(mnemonic)
}

func deriveFromMnemonic(mnemonic string) (*DerivedKey, error) {
	seed := bip39.NewSeed(mnemonic, "")
	defer clear(seed)

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	for _, step := range derivationSteps {
		key, err = key.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("failed to derive %s: %w", DerivationPath, err)
		}
	}

	ecPriv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}
	raw := ecPriv.Serialize()
	defer clear(raw)

	privateKey, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("derived key is not a valid secp256k1 key: %w", err)
	}
	return &DerivedKey{
		PrivateKey: privateKey,
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		Mnemonic:   mnemonic,
	}, nil
}

// KeyFromPrivateKeyHex accepts 64 hex chars with or without 0x
func KeyFromPrivateKeyHex(input string) (*DerivedKey, error) {
	hexKey := strings.TrimSpace(input)
	if strings.HasPrefix(hexKey, "0x") || strings.HasPrefix(hexKey, "0X") {
		hexKey = hexKey[2:]
	}
	if !privateKeyPattern.MatchString(hexKey) {
		return nil, apperrors.Validation("private_key", "invalid private key")
	}
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, apperrors.Validation("private_key", "invalid private key")
	}
	return &DerivedKey{
		PrivateKey: privateKey,
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// keyFromRaw rebuilds a signing key from decrypted bytes
func keyFromRaw(raw []byte) (*ecdsa.PrivateKey, error) {
	return crypto.ToECDSA(raw)
}

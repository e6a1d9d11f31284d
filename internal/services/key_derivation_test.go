package services

import (
	"encoding/hex"
	"strings"
	"testing"

	"walletd/internal/apperrors"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestKeyFromMnemonicKnownVector(t *testing.T) {
	key, err := KeyFromMnemonic("  Abandon abandon ABANDON abandon abandon abandon\tabandon abandon abandon abandon abandon about \n")
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", key.Address.Hex())
	assert.Equal(t, testMnemonic, key.Mnemonic)
}

func TestKeyFromMnemonicValidation(t *testing.T) {
	_, err := KeyFromMnemonic("abandon abandon abandon")
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindValidation, appErr.Kind)
	assert.Equal(t, "seed phrase invalid word count", appErr.Message)

	_, err = KeyFromMnemonic("")
	appErr, _ = apperrors.As(err)
	assert.Equal(t, "seed phrase invalid word count", appErr.Message)

	badChecksum := strings.Repeat("abandon ", 12)
	_, err = KeyFromMnemonic(badChecksum)
	appErr, _ = apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "seed phrase invalid", appErr.Message)
}

func TestGenerateMnemonicKey(t *testing.T) {
	key, err := GenerateMnemonicKey()
	require.NoError(t, err)
	assert.Len(t, strings.Fields(key.Mnemonic), 12)

	again, err := KeyFromMnemonic(key.Mnemonic)
	require.NoError(t, err)
	assert.Equal(t, key.Address, again.Address)
}

func TestKeyFromPrivateKeyHex(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hex.EncodeToString(crypto.FromECDSA(priv))

	for _, in := range []string{"0x" + hexKey, hexKey, strings.ToUpper(hexKey), " 0X" + hexKey + " "} {
		key, err := KeyFromPrivateKeyHex(in)
		require.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey), key.Address)
	}

	for _, in := range []string{
		"",
		"0x1234",
		strings.Repeat("g", 64),
		strings.Repeat("0", 64),
		"fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141",
	} {
		_, err := KeyFromPrivateKeyHex(in)
		require.Error(t, err, in)
		appErr, _ := apperrors.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "invalid private key", appErr.Message)
	}
}

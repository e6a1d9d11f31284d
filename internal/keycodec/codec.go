package keycodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"walletd/internal/apperrors"

	"golang.org/x/crypto/scrypt"
)

const (
	// Version1 is scrypt + AES-256-GCM.
	Version1 = 1

	kdfScrypt    = "scrypt"
	cipherAESGCM = "aes-256-gcm"

	saltLen  = 32
	nonceLen = 12
	keyLen   = 32

	maxScryptN = 1 << 20
	maxScryptR = 32
	maxScryptP = 16

	// 128*N*r*p, bytes of scrypt work per derivation
	maxScryptCost = 1 << 30
)

// Params holds the scrypt cost used for new blobs. Existing blobs carry their own.
type Params struct {
	N int `yaml:"n"`
	R int `yaml:"r"`
	P int `yaml:"p"`
}

// Validate rejects costs scrypt cannot take or that exceed the derivation budget.
func (p Params) Validate() error {
	return checkCost(p.N, p.R, p.P)
}

func checkCost(n, r, p int) error {
	if n < 2 || n&(n-1) != 0 {
		return fmt.Errorf("scrypt N %d must be a power of two above 1", n)
	}
	if n > maxScryptN {
		return fmt.Errorf("scrypt N %d above limit", n)
	}
	if r < 1 || r > maxScryptR {
		return fmt.Errorf("scrypt r %d out of range", r)
	}
	if p < 1 || p > maxScryptP {
		return fmt.Errorf("scrypt p %d out of range", p)
	}
	if uint64(128)*uint64(n)*uint64(r)*uint64(p) > maxScryptCost {
		return fmt.Errorf("scrypt cost N=%d r=%d p=%d above budget", n, r, p)
	}
	return nil
}

// DefaultParams N=2^18 matches what desktop and mobile can both afford (~256MB).
var DefaultParams = Params{N: 1 << 18, R: 8, P: 1}

// LightParams is for tests and development only.
var LightParams = Params{N: 1 << 12, R: 8, P: 1}

type kdfParams struct {
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	DkLen int    `json:"dklen"`
	Salt  string `json:"salt"`
}

// envelope is the persisted blob format.
type envelope struct {
	Version    int       `json:"version"`
	KDF        string    `json:"kdf"`
	KDFParams  kdfParams `json:"kdfparams"`
	Cipher     string    `json:"cipher"`
	Nonce      string    `json:"nonce"`
	CipherText string    `json:"ciphertext"`
}

// Codec encrypts raw key material under a password-derived key.
type Codec struct {
	params Params
	rand   io.Reader
}

func New(params Params) *Codec {
	if params.N == 0 {
		params = DefaultParams
	}
	return &Codec{params: params, rand: rand.Reader}
}

// Encrypt seals raw under password. The returned blob is self-describing.
func (c *Codec) Encrypt(raw, password []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("nothing to encrypt")
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(c.rand, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	key, err := scrypt.Key(password, salt, c.params.N, c.params.R, c.params.P, keyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ciphertext := aesGCM.Seal(nil, nonce, raw, nil)

	blob, err := json.Marshal(envelope{
		Version: Version1,
		KDF:     kdfScrypt,
		KDFParams: kdfParams{
			N:     c.params.N,
			R:     c.params.R,
			P:     c.params.P,
			DkLen: keyLen,
			Salt:  base64.StdEncoding.EncodeToString(salt),
		},
		Cipher:     cipherAESGCM,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return blob, nil
}

// Decrypt opens a blob. Every failure is reported as the same AuthError so a caller
// cannot tell a wrong password from a damaged blob. The caller owns the returned slice
// and should clear it after use.
func (c *Codec) Decrypt(blob, password []byte) ([]byte, error) {
	raw, err := c.open(blob, password)
	if err != nil {
		return nil, apperrors.Auth(err)
	}
	return raw, nil
}

func (c *Codec) open(blob, password []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	switch env.Version {
	case Version1:
	default:
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	if env.KDF != kdfScrypt || env.Cipher != cipherAESGCM {
		return nil, fmt.Errorf("unsupported kdf/cipher %s/%s", env.KDF, env.Cipher)
	}
	if env.KDFParams.DkLen != keyLen {
		return nil, fmt.Errorf("unsupported dklen %d", env.KDFParams.DkLen)
	}
	if err := checkCost(env.KDFParams.N, env.KDFParams.R, env.KDFParams.P); err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(env.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.CipherText)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(nonce) != nonceLen {
		return nil, errors.New("bad nonce length")
	}

	key, err := scrypt.Key(password, salt, env.KDFParams.N, env.KDFParams.R, env.KDFParams.P, keyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("invalid password")
	}
	return plaintext, nil
}

// Version reports the envelope version of blob without decrypting it.
func Version(blob []byte) (int, error) {
	var env struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(blob, &env); err != nil {
		return 0, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return env.Version, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-faceverify/core"
)

// EnvelopePrefix marks a sealed API secret so configuration can carry
// either plaintext or sealed values.
const EnvelopePrefix = "faceverify.secret.v1:"

const sealAlgorithm = "aes-256-gcm"

type SecretOpener interface {
	Open(ctx context.Context, sealed []byte) ([]byte, error)
}

type Option func(*SecretSealer)

// SecretSealer seals API secrets at rest with a master key.
type SecretSealer struct {
	key     []byte
	keyID   string
	version int
}

type sealedEnvelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func WithKeyID(id string) Option {
	return func(s *SecretSealer) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			s.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(s *SecretSealer) {
		if version > 0 {
			s.version = version
		}
	}
}

func NewSecretSealer(masterKey []byte, opts ...Option) (*SecretSealer, error) {
	key := bytes.TrimSpace(masterKey)
	if len(key) == 0 {
		return nil, sealerError("security: master key is required", nil)
	}
	sealer := &SecretSealer{
		key:     normalizeKey(key),
		keyID:   "master",
		version: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sealer)
		}
	}
	return sealer, nil
}

func NewSecretSealerFromString(masterKey string, opts ...Option) (*SecretSealer, error) {
	return NewSecretSealer([]byte(masterKey), opts...)
}

func (s *SecretSealer) Seal(_ context.Context, plaintext []byte) ([]byte, error) {
	if s == nil {
		return nil, sealerError("security: sealer is nil", nil)
	}
	if len(plaintext) == 0 {
		return nil, sealerError("security: plaintext is required", nil)
	}
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, sealerError("security: nonce generation failed", err)
	}
	data, err := json.Marshal(sealedEnvelope{
		KeyID:      s.keyID,
		Version:    s.version,
		Algorithm:  sealAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, s.additionalData())),
	})
	if err != nil {
		return nil, sealerError("security: encode envelope", err)
	}
	return append([]byte(EnvelopePrefix), data...), nil
}

func (s *SecretSealer) Open(_ context.Context, sealed []byte) ([]byte, error) {
	if s == nil {
		return nil, sealerError("security: sealer is nil", nil)
	}
	payload := strings.TrimSpace(string(sealed))
	if !strings.HasPrefix(payload, EnvelopePrefix) {
		return nil, sealerError("security: invalid sealed secret prefix", nil)
	}
	var env sealedEnvelope
	if err := json.Unmarshal([]byte(strings.TrimPrefix(payload, EnvelopePrefix)), &env); err != nil {
		return nil, sealerError("security: decode envelope", err)
	}
	if env.Algorithm != "" && env.Algorithm != sealAlgorithm {
		return nil, sealerError(fmt.Sprintf("security: unsupported algorithm %q", env.Algorithm), nil)
	}
	if env.KeyID != "" && env.KeyID != s.keyID {
		return nil, sealerError(fmt.Sprintf("security: key id mismatch: got %q want %q", env.KeyID, s.keyID), nil)
	}
	if env.Version > 0 && env.Version != s.version {
		return nil, sealerError(fmt.Sprintf("security: key version mismatch: got %d want %d", env.Version, s.version), nil)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, sealerError("security: decode nonce", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, sealerError("security: decode ciphertext", err)
	}
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, sealerError("security: invalid nonce size", nil)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, s.additionalData())
	if err != nil {
		return nil, sealerError("security: open sealed secret", err)
	}
	return plaintext, nil
}

func (s *SecretSealer) KeyID() string {
	if s == nil {
		return ""
	}
	return s.keyID
}

func (s *SecretSealer) Version() int {
	if s == nil {
		return 0
	}
	return s.version
}

func (s *SecretSealer) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, sealerError("security: create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, sealerError("security: create gcm", err)
	}
	return gcm, nil
}

// additionalData binds the ciphertext to the key metadata in the envelope.
func (s *SecretSealer) additionalData() []byte {
	return []byte(fmt.Sprintf("%s:%d", s.keyID, s.version))
}

// IsSealed reports whether value carries the sealed secret prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), EnvelopePrefix)
}

// ResolveSecret returns value unchanged unless it is sealed, in which case
// opener must be able to open it.
func ResolveSecret(ctx context.Context, value string, opener SecretOpener) (string, error) {
	value = strings.TrimSpace(value)
	if !IsSealed(value) {
		return value, nil
	}
	if opener == nil {
		return "", core.NewConfigurationError("security: sealed api secret needs a master key")
	}
	plaintext, err := opener.Open(ctx, []byte(value))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// ResolveCredentials opens a sealed api secret in cfg, if any.
func ResolveCredentials(ctx context.Context, cfg core.Config, opener SecretOpener) (core.Config, error) {
	secret, err := ResolveSecret(ctx, cfg.Credentials.APISecret, opener)
	if err != nil {
		return core.Config{}, err
	}
	cfg.Credentials.APISecret = secret
	return cfg, nil
}

func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	return sum[:]
}

func sealerError(message string, cause error) error {
	if cause == nil {
		return core.NewConfigurationError(message)
	}
	return goerrors.Wrap(cause, goerrors.CategoryInternal, message).
		WithTextCode(core.ErrorConfiguration)
}

var _ SecretOpener = (*SecretSealer)(nil)

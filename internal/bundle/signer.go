package bundle

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// Signer abstracts the wallet. Key storage lives outside this repository;
// the pipeline only ever asks for the public key and a signature.
type Signer interface {
	PublicKey() string // base58
	Sign(message []byte) []byte
}

// LocalSigner wraps an in-memory ed25519 key.
type LocalSigner struct {
	key ed25519.PrivateKey
	pub string
}

// NewLocalSigner decodes a base58 64-byte ed25519 private key.
func NewLocalSigner(encoded string) (*LocalSigner, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode wallet key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	key := ed25519.PrivateKey(raw)
	return &LocalSigner{
		key: key,
		pub: base58.Encode(key.Public().(ed25519.PublicKey)),
	}, nil
}

// NewEphemeralSigner generates a throwaway key. Paper mode only.
func NewEphemeralSigner() (*LocalSigner, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &LocalSigner{
		key: key,
		pub: base58.Encode(key.Public().(ed25519.PublicKey)),
	}, nil
}

func (s *LocalSigner) PublicKey() string { return s.pub }

func (s *LocalSigner) Sign(message []byte) []byte {
	return ed25519.Sign(s.key, message)
}

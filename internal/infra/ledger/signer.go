package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"dropforge/internal/domain"
)

// Ed25519Signer signs batch payloads with the campaign admin key. The
// sequencing token is folded into the signed bytes, so every retry with a
// refreshed token produces a fresh signature.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

func NewEd25519SignerFromSeedHex(seedHex string) (*Ed25519Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode admin key seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("admin key seed must be 32 bytes")
	}
	return &Ed25519Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

func (s *Ed25519Signer) Sign(payload []byte, token domain.SequencingToken) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("signer not initialized")
	}
	message := make([]byte, 0, len(payload)+len(token))
	message = append(message, payload...)
	message = append(message, token...)
	return ed25519.Sign(s.key, message), nil
}

// Address is the signer's base58 ledger identity, used as the campaign
// admin identity.
func (s *Ed25519Signer) Address() string {
	return base58.Encode(s.key.Public().(ed25519.PublicKey))
}

package nip98

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// Signer signing credential, may fail
type Signer interface {
	SignEvent(ctx context.Context, evt *nostr.Event) error
}

// KeySigner signs with a local secret key
type KeySigner struct {
	secretKey string
	pubkey    string
}

// NewKeySigner new key signer from a hex secret key
func NewKeySigner(secretKey string) (*KeySigner, error) {
	pk, err := nostr.GetPublicKey(secretKey)
	if err != nil {
		return nil, err
	}

	return &KeySigner{secretKey: secretKey, pubkey: pk}, nil
}

// Pubkey public key of the signer
func (k *KeySigner) Pubkey() string {
	return k.pubkey
}

func (k *KeySigner) SignEvent(ctx context.Context, evt *nostr.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return evt.Sign(k.secretKey)
}

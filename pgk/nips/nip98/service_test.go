package nip98

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flag bool

func (f flag) Verified() bool { return bool(f) }

type failingSigner struct{}

func (failingSigner) SignEvent(ctx context.Context, evt *nostr.Event) error {
	return errors.New("signer locked")
}

func newSigner(t *testing.T) *KeySigner {
	s, err := NewKeySigner(nostr.GeneratePrivateKey())
	require.NoError(t, err)

	return s
}

func TestIssueAbsentWithoutSigner(t *testing.T) {
	i := NewIssuer(nil, flag(true), nil, nil)
	token, ok := i.Issue(context.Background(), "https://media.divine.video/a.m3u8", "GET")
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestIssueAbsentWhenNotVerified(t *testing.T) {
	i := NewIssuer(newSigner(t), flag(false), nil, nil)
	_, ok := i.Issue(context.Background(), "https://media.divine.video/a.m3u8", "GET")
	assert.False(t, ok)

	i = NewIssuer(newSigner(t), nil, nil, nil)
	_, ok = i.Issue(context.Background(), "https://media.divine.video/a.m3u8", "GET")
	assert.False(t, ok)
}

func TestIssueSigningFailureIsAbsent(t *testing.T) {
	i := NewIssuer(failingSigner{}, flag(true), nil, nil)
	token, ok := i.Issue(context.Background(), "https://media.divine.video/a.m3u8", "GET")
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestIssueSignedToken(t *testing.T) {
	signer := newSigner(t)
	now := time.Unix(1700000000, 0)
	i := NewIssuer(signer, flag(true), func() time.Time { return now }, nil)

	url := "https://media.divine.video/v/abc/seg-1.ts"
	token, ok := i.Issue(context.Background(), url, "get")
	require.True(t, ok)
	assert.Regexp(t, `^Nostr [A-Za-z0-9+/]+=*$`, token)

	evt, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, 27235, evt.Kind)
	assert.Equal(t, signer.Pubkey(), evt.PubKey)
	assert.Equal(t, nostr.Timestamp(now.Unix()), evt.CreatedAt)
	assert.Equal(t, url, evt.Tags.GetFirst([]string{"u", ""}).Value())
	assert.Equal(t, "GET", evt.Tags.GetFirst([]string{"method", ""}).Value())

	valid, err := evt.CheckSignature()
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestIssueIsFreshPerCall(t *testing.T) {
	signer := newSigner(t)
	i := NewIssuer(signer, flag(true), nil, nil)

	a, ok := i.Issue(context.Background(), "https://media.divine.video/a.ts", "GET")
	require.True(t, ok)
	b, ok := i.Issue(context.Background(), "https://media.divine.video/b.ts", "GET")
	require.True(t, ok)
	assert.NotEqual(t, a, b)
}

func TestIssueConcurrent(t *testing.T) {
	i := NewIssuer(newSigner(t), flag(true), nil, nil)

	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, ok := i.Issue(context.Background(), "https://media.divine.video/seg.ts", "GET")
			assert.True(t, ok)
			_, err := DecodeToken(token)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestDecodeTokenInvalid(t *testing.T) {
	_, err := DecodeToken("Bearer abc")
	assert.ErrorIs(t, err, errInvalidToken)

	_, err = DecodeToken("Nostr %%%")
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestNewKeySignerInvalidKey(t *testing.T) {
	_, err := NewKeySigner("not-hex")
	assert.Error(t, err)
}

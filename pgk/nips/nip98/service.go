package nip98

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/saveblush/reraw-feed/core/utils"
	"github.com/saveblush/reraw-feed/core/utils/logger"
	"github.com/saveblush/reraw-feed/models"
)

const scheme = "Nostr "

var (
	errInvalidToken = errors.New("nip98: invalid token")
)

// AccessFlag verified-access flag (เช่น age gate)
type AccessFlag interface {
	Verified() bool
}

// Issuer per-request signed authorization
type Issuer struct {
	signer Signer
	access AccessFlag
	now    utils.Clock
	log    *zap.SugaredLogger
}

// NewIssuer new issuer; signer or access may be nil
func NewIssuer(signer Signer, access AccessFlag, now utils.Clock, log *zap.SugaredLogger) *Issuer {
	return &Issuer{
		signer: signer,
		access: access,
		now:    now.OrNow(),
		log:    logger.OrNop(log),
	}
}

// Template unsigned HTTP auth event for url + method
func Template(url, method string, createdAt nostr.Timestamp) *nostr.Event {
	return &nostr.Event{
		Kind:      models.KindHTTPAuth,
		CreatedAt: createdAt,
		Tags: nostr.Tags{
			{"u", url},
			{"method", strings.ToUpper(method)},
		},
		Content: "",
	}
}

// Issue token สำหรับ Authorization header, ok=false เมื่อไม่มี credential / ยังไม่ยืนยัน / sign ไม่สำเร็จ
func (i *Issuer) Issue(ctx context.Context, url, method string) (string, bool) {
	if i.signer == nil || i.access == nil || !i.access.Verified() {
		return "", false
	}

	if method == "" {
		method = "GET"
	}

	evt := Template(url, method, nostr.Timestamp(i.now().Unix()))
	err := i.signer.SignEvent(ctx, evt)
	if err != nil {
		i.log.Warnf("[nip98] sign auth event error: %s", err)
		return "", false
	}

	b, err := json.Marshal(evt)
	if err != nil {
		i.log.Warnf("[nip98] encode auth event error: %s", err)
		return "", false
	}

	return scheme + base64.StdEncoding.EncodeToString(b), true
}

// DecodeToken decode an Authorization value back to its signed event
func DecodeToken(token string) (*nostr.Event, error) {
	if !strings.HasPrefix(token, scheme) {
		return nil, errInvalidToken
	}

	b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(token, scheme))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errInvalidToken, err)
	}

	evt := &nostr.Event{}
	err = json.Unmarshal(b, evt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errInvalidToken, err)
	}

	if evt.Kind != models.KindHTTPAuth {
		return nil, fmt.Errorf("%w: kind %d", errInvalidToken, evt.Kind)
	}

	return evt, nil
}

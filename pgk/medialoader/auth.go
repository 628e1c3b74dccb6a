package medialoader

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/saveblush/reraw-feed/core/utils/logger"
)

// Issuer per-request authorization token, ok=false = ไม่มี token
type Issuer interface {
	Issue(ctx context.Context, url, method string) (string, bool)
}

// AuthLoader ขอ token ใหม่ทุก request แล้วใส่ Authorization header ก่อนส่งต่อให้ base
type AuthLoader struct {
	base   Loader
	issuer Issuer
	log    *zap.SugaredLogger
}

// NewAuthLoader new auth loader; issuer may be nil
func NewAuthLoader(base Loader, issuer Issuer, log *zap.SugaredLogger) *AuthLoader {
	return &AuthLoader{
		base:   base,
		issuer: issuer,
		log:    logger.OrNop(log),
	}
}

func (a *AuthLoader) Load(ctx context.Context, lc *LoaderContext, cb Callbacks) {
	a.base.Load(ctx, a.authorize(ctx, lc), cb)
}

// authorize copy of lc with a fresh token, headers เดิมไม่ถูกแก้
func (a *AuthLoader) authorize(ctx context.Context, lc *LoaderContext) *LoaderContext {
	if a.issuer == nil {
		return lc
	}

	token, ok := a.issuer.Issue(ctx, lc.URL, http.MethodGet)
	if !ok {
		a.log.Debugf("[medialoader] no auth token for %s", lc.URL)
		return lc
	}

	authed := *lc
	authed.Headers = lc.Headers.Clone()
	if authed.Headers == nil {
		authed.Headers = http.Header{}
	}
	authed.Headers.Set("Authorization", token)

	return &authed
}

// AuthStatus result of an auth probe
type AuthStatus struct {
	Authorized bool `json:"authorized"`
	Status     int  `json:"status"`
}

// CheckAuth HEAD probe; network error ถือว่าผ่าน (status 0)
func CheckAuth(ctx context.Context, client *http.Client, issuer Issuer, url string) AuthStatus {
	resp, err := do(ctx, client, issuer, http.MethodHead, url)
	if err != nil {
		return AuthStatus{Authorized: true}
	}
	defer resp.Body.Close()

	authorized := resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden

	return AuthStatus{Authorized: authorized, Status: resp.StatusCode}
}

// FetchWithAuth GET พร้อม Authorization header เมื่อมี token; caller ต้องปิด body
func FetchWithAuth(ctx context.Context, client *http.Client, issuer Issuer, url string) (*http.Response, error) {
	return do(ctx, client, issuer, http.MethodGet, url)
}

func do(ctx context.Context, client *http.Client, issuer Issuer, method, url string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}

	if issuer != nil {
		if token, ok := issuer.Issue(ctx, url, method); ok {
			req.Header.Set("Authorization", token)
		}
	}

	return client.Do(req)
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jinzhu/copier"
	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/saveblush/reraw-feed/core/cctx"
	"github.com/saveblush/reraw-feed/core/utils/logger"
)

const defaultTimeout = 3 * time.Second

var (
	ErrStatus = errors.New("gateway: unexpected status")
)

// Response gateway envelope
type Response struct {
	Events          []*nostr.Event `json:"events"`
	Cached          bool           `json:"cached"`
	CacheAgeSeconds *float64       `json:"cache_age_seconds,omitempty"`
}

// Options client options
type Options struct {
	URL        string
	MirrorHost string
	Timeout    time.Duration
	HTTPClient *http.Client
	Log        *zap.SugaredLogger
}

// Client REST gateway client
type Client struct {
	baseURL    string
	mirrorHost string
	timeout    time.Duration
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewClient new client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		mirrorHost: opts.MirrorHost,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		log:        logger.OrNop(opts.Log),
	}
}

// NewService new client from session config
func NewService(c *cctx.Context) (*Client, error) {
	opts := Options{}
	if err := copier.Copy(&opts, &c.Config.Gateway); err != nil {
		return nil, fmt.Errorf("gateway: copy config: %w", err)
	}
	opts.Log = c.Log

	return NewClient(opts), nil
}

// Routes relay นี้ต้องถาม gateway ก่อนหรือไม่
func (c *Client) Routes(relayURL string) bool {
	return ShouldUseGateway(relayURL, c.mirrorHost)
}

// Query query events; transport error / non-2xx คืน error ให้ผู้เรียกตัดสินใจ fallback
func (c *Client) Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	encoded, err := EncodeFilter(filter)
	if err != nil {
		return nil, err
	}

	res, err := c.get(ctx, "/query?filter="+encoded)
	if err != nil {
		return nil, err
	}

	age := "-"
	if res.CacheAgeSeconds != nil {
		age = fmt.Sprintf("%.0fs", *res.CacheAgeSeconds)
	}
	c.log.Debugf("[gateway] got %d events (cached: %t, age: %s)", len(res.Events), res.Cached, age)

	if res.Events == nil {
		return []*nostr.Event{}, nil
	}

	return res.Events, nil
}

// GetEvent event by id, nil เมื่อไม่พบหรือผิดพลาด
func (c *Client) GetEvent(ctx context.Context, id string) *nostr.Event {
	return c.first(ctx, "/event/"+url.PathEscape(id))
}

// GetProfile profile (kind 0) by pubkey, nil เมื่อไม่พบหรือผิดพลาด
func (c *Client) GetProfile(ctx context.Context, pubkey string) *nostr.Event {
	return c.first(ctx, "/profile/"+url.PathEscape(pubkey))
}

func (c *Client) first(ctx context.Context, path string) *nostr.Event {
	res, err := c.get(ctx, path)
	if err != nil {
		c.log.Debugf("[gateway] fetch %s error: %s", path, err)
		return nil
	}

	if len(res.Events) == 0 {
		return nil
	}

	return res.Events[0]
}

func (c *Client) get(ctx context.Context, path string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debugf("[gateway] GET %s", req.URL.String())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	res := &Response{}
	err = sonic.ConfigDefault.NewDecoder(resp.Body).Decode(res)
	if err != nil {
		return nil, fmt.Errorf("gateway: decode response: %w", err)
	}

	return res, nil
}

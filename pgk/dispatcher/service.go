package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/saveblush/reraw-feed/core/cctx"
	"github.com/saveblush/reraw-feed/core/utils"
	"github.com/saveblush/reraw-feed/core/utils/limiter"
	"github.com/saveblush/reraw-feed/core/utils/logger"
	"github.com/saveblush/reraw-feed/models"
	"github.com/saveblush/reraw-feed/pgk/eventcache"
)

const defaultRefreshTimeout = 15 * time.Second

// Source authoritative source (หรือ dispatcher เอง)
type Source interface {
	Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error)
	Publish(ctx context.Context, evt *nostr.Event) error
}

// Gateway fast HTTP mirror of one relay
type Gateway interface {
	Routes(relayURL string) bool
	Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)
}

// Options options
type Options struct {
	// RelayURL active relay, ใช้ตัดสินว่าจะถาม gateway หรือไม่
	RelayURL       func() string
	RefreshTimeout time.Duration
	RefreshLimiter *limiter.KeyRateLimiter
	Log            *zap.SugaredLogger
}

// Service cache -> gateway -> authoritative source
type Service struct {
	base    Source
	cache   eventcache.Service
	gateway Gateway

	relayURL       func() string
	refreshTimeout time.Duration
	refreshLimiter *limiter.KeyRateLimiter
	log            *zap.SugaredLogger

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	flights singleflight.Group
}

// New new dispatcher; gateway may be nil
func New(base Source, cache eventcache.Service, gateway Gateway, opts Options) *Service {
	if opts.RelayURL == nil {
		opts.RelayURL = func() string { return "" }
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		base:           base,
		cache:          cache,
		gateway:        gateway,
		relayURL:       opts.RelayURL,
		refreshTimeout: opts.RefreshTimeout,
		refreshLimiter: opts.RefreshLimiter,
		log:            logger.OrNop(opts.Log),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// NewService new dispatcher from session config
func NewService(c *cctx.Context, base Source, cache eventcache.Service, gateway Gateway) *Service {
	cf := c.Config
	relayURL := ""
	if len(cf.Relay.URLs) > 0 {
		relayURL = cf.Relay.URLs[0]
	}

	var rl *limiter.KeyRateLimiter
	if cf.Cache.RefreshRate > 0 {
		rl = limiter.NewKeyRateLimiter(rate.Limit(cf.Cache.RefreshRate), cf.Cache.RefreshBurst)
	}

	return New(base, cache, gateway, Options{
		RelayURL:       func() string { return relayURL },
		RefreshTimeout: cf.Cache.RefreshTimeout,
		RefreshLimiter: rl,
		Log:            c.Log,
	})
}

// IsCacheable query ที่ขอ profile (kind 0) หรือ contact list (kind 3)
func IsCacheable(filters nostr.Filters) bool {
	for _, f := range filters {
		for _, k := range f.Kinds {
			if k == models.KindProfile || k == models.KindContactList {
				return true
			}
		}
	}

	return false
}

func (s *Service) useGateway() bool {
	return s.gateway != nil && s.gateway.Routes(s.relayURL())
}

// Query query events
func (s *Service) Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	s.log.Debugf("[dispatcher] query filters: %v", filters)

	cacheable := IsCacheable(filters)
	useGateway := s.useGateway()

	// 1. local cache
	if cacheable {
		cached, err := s.cache.Query(ctx, filters)
		if err != nil {
			s.log.Warnf("[dispatcher] cache query error: %s", err)
		} else if len(cached) > 0 {
			s.log.Debugf("[dispatcher] cache hit: %d events", len(cached))
			s.refreshInBackground(filters, useGateway)
			return cached, nil
		} else {
			s.log.Debug("[dispatcher] cache miss")
		}
	}

	// 2. gateway, ผลว่างถือเป็นคำตอบ; fallback เฉพาะเมื่อ error
	if useGateway {
		events, err := s.queryGateway(ctx, filters)
		if err == nil {
			s.log.Debugf("[dispatcher] gateway returned %d events", len(events))
			if cacheable {
				s.store(ctx, events)
			}
			return events, nil
		}
		s.log.Warnf("[dispatcher] gateway failed, falling back to relay: %s", err)
	}

	// 3. authoritative source
	events, err := s.base.Query(ctx, filters)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("[dispatcher] relay returned %d events", len(events))

	if cacheable {
		s.store(ctx, events)
	}

	return events, nil
}

// Publish publish ผ่าน source ก่อน สำเร็จแล้วจึงเก็บลง cache
func (s *Service) Publish(ctx context.Context, evt *nostr.Event) error {
	err := s.base.Publish(ctx, evt)
	if err != nil {
		return err
	}

	err = s.cache.Insert(ctx, evt)
	if err != nil {
		s.log.Warnf("[dispatcher] cache published event %s error: %s", evt.ID, err)
	}
	s.log.Debugf("[dispatcher] event published and cached: %s", evt.ID)

	return nil
}

// Close cancel background refreshes and wait for them
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Service) queryGateway(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	events := []*nostr.Event{}
	for _, filter := range filters {
		res, err := s.gateway.Query(ctx, filter)
		if err != nil {
			return nil, err
		}
		events = append(events, res...)
	}

	return events, nil
}

func (s *Service) store(ctx context.Context, events []*nostr.Event) {
	for _, evt := range events {
		err := s.cache.Insert(ctx, evt)
		if err != nil {
			s.log.Warnf("[dispatcher] cache insert %s error: %s", evt.ID, err)
		}
	}
}

// refreshInBackground refresh ที่ผู้เรียกไม่รอ; refresh ของ filters เดียวกันที่ซ้อนกันจะรวมเป็นครั้งเดียว
func (s *Service) refreshInBackground(filters nostr.Filters, useGateway bool) {
	key, err := json.Marshal(filters)
	if err != nil {
		s.log.Warnf("[dispatcher] background refresh key error: %s", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _, _ = s.flights.Do(string(key), func() (interface{}, error) {
			s.refresh(filters, useGateway)
			return nil, nil
		})
	}()
}

func (s *Service) refresh(filters nostr.Filters, useGateway bool) {
	ctx, cancel := context.WithTimeout(s.ctx, s.refreshTimeout)
	defer cancel()

	if s.refreshLimiter != nil {
		err := s.refreshLimiter.GetLimiter(utils.Hostname(s.relayURL())).Wait(ctx)
		if err != nil {
			s.log.Debugf("[dispatcher] background refresh skipped: %s", err)
			return
		}
	}

	var events []*nostr.Event
	var err error
	if useGateway {
		events, err = s.queryGateway(ctx, filters)
		if err != nil {
			s.log.Debugf("[dispatcher] background gateway failed, falling back to relay: %s", err)
			events, err = s.base.Query(ctx, filters)
		}
	} else {
		events, err = s.base.Query(ctx, filters)
	}
	if err != nil {
		s.log.Warnf("[dispatcher] background cache update failed: %s", err)
		return
	}

	s.store(ctx, events)
	s.log.Debugf("[dispatcher] background cache update: %d events", len(events))
}

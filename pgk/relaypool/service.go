package relaypool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/saveblush/reraw-feed/core/cctx"
)

var (
	errNoRelays = errors.New("relaypool: no relays configured")
)

// Service authoritative source, query/publish ผ่าน relay หลายตัว
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	pool   *nostr.SimplePool
	log    *zap.SugaredLogger

	urls           []string
	queryTimeout   time.Duration
	publishTimeout time.Duration
}

// NewService new service
func NewService(c *cctx.Context) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		ctx:            ctx,
		cancel:         cancel,
		pool:           nostr.NewSimplePool(ctx),
		log:            c.Log,
		urls:           c.Config.Relay.URLs,
		queryTimeout:   c.Config.Relay.QueryTimeout,
		publishTimeout: c.Config.Relay.PublishTimeout,
	}
}

// RelayURL primary relay url
func (s *Service) RelayURL() string {
	if len(s.urls) == 0 {
		return ""
	}

	return s.urls[0]
}

// connected relays ที่เชื่อมต่อได้, error เมื่อไม่มีเลย
func (s *Service) connected() ([]*nostr.Relay, error) {
	if len(s.urls) == 0 {
		return nil, errNoRelays
	}

	var relays []*nostr.Relay
	var errs []error
	for _, url := range s.urls {
		relay, err := s.pool.EnsureRelay(url)
		if err != nil {
			s.log.Warnf("[relaypool] connect %s error: %s", url, err)
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}
		relays = append(relays, relay)
	}

	if len(relays) == 0 {
		return nil, errors.Join(errs...)
	}

	return relays, nil
}

// Query query events until EOSE จากทุก relay, ไม่ซ้ำ id
// relay ใดไม่ส่ง EOSE ภายใน query timeout คืน context.DeadlineExceeded
func (s *Service) Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	relays, err := s.connected()
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(relays))
	for _, relay := range relays {
		urls = append(urls, relay.URL)
	}

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	events := []*nostr.Event{}
	for ie := range s.pool.SubManyEose(ctx, urls, filters) {
		events = append(events, ie.Event)
	}

	// channel ปิดก่อน EOSE ครบ = timeout/cancel, ไม่คืนผลบางส่วน
	if err := ctx.Err(); err != nil {
		s.log.Warnf("[relaypool] query stopped before eose (%d events dropped): %s", len(events), err)
		return nil, err
	}

	return events, nil
}

// Publish publish event, สำเร็จเมื่อมีอย่างน้อยหนึ่ง relay รับ
func (s *Service) Publish(ctx context.Context, evt *nostr.Event) error {
	relays, err := s.connected()
	if err != nil {
		return err
	}

	if s.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()
	}

	var errs []error
	accepted := 0
	for _, relay := range relays {
		err := relay.Publish(ctx, *evt)
		if err != nil {
			s.log.Warnf("[relaypool] publish %s to %s error: %s", evt.ID, relay.URL, err)
			errs = append(errs, fmt.Errorf("%s: %w", relay.URL, err))
			continue
		}
		accepted++
	}

	if accepted == 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Close close relay connections
func (s *Service) Close() {
	s.cancel()
}

package follows

import (
	"context"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/saveblush/reraw-feed/core/generic"
	"github.com/saveblush/reraw-feed/core/utils/logger"
	"github.com/saveblush/reraw-feed/models"
)

// Querier resolves filters to events (the dispatcher)
type Querier interface {
	Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error)
}

// Service follow list + profile ของผู้ใช้ที่ login
type Service struct {
	querier Querier
	pubkey  string
	log     *zap.SugaredLogger

	mu      sync.RWMutex
	follows []string
	profile *nostr.Event
	loading bool
}

// NewService new service; pubkey ว่าง = ไม่ได้ login
func NewService(querier Querier, pubkey string, log *zap.SugaredLogger) *Service {
	return &Service{
		querier: querier,
		pubkey:  pubkey,
		log:     logger.OrNop(log),
		loading: pubkey != "",
	}
}

// Pubkey signed-in user
func (s *Service) Pubkey() string {
	return s.pubkey
}

// Follows follow list, loading=true จนกว่า Refresh ครั้งแรกจะจบ
func (s *Service) Follows() ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.follows...), s.loading
}

// Profile latest profile event, nil เมื่อยังไม่มี
func (s *Service) Profile() *nostr.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.profile
}

// Refresh fetch the latest contact list and profile
// error ครั้งแรกยังปิด loading, home feed จะว่างแทนการรอ
func (s *Service) Refresh(ctx context.Context) error {
	if s.pubkey == "" {
		return nil
	}

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	events, err := s.querier.Query(ctx, nostr.Filters{{
		Kinds:   []int{models.KindContactList, models.KindProfile},
		Authors: []string{s.pubkey},
	}})
	if err != nil {
		s.log.Warnf("[follows] fetch contact list of %s error: %s", s.pubkey, err)
		return err
	}

	contacts := latest(events, models.KindContactList)
	profile := latest(events, models.KindProfile)

	s.mu.Lock()
	if contacts != nil {
		s.follows = Pubkeys(contacts)
	}
	if profile != nil {
		s.profile = profile
	}
	s.mu.Unlock()
	s.log.Debugf("[follows] %s follows %d accounts", s.pubkey, len(s.follows))

	return nil
}

// Pubkeys p-tag pubkeys of a contact list, ไม่ซ้ำ คงลำดับ
func Pubkeys(contacts *nostr.Event) []string {
	var res []string
	for _, tag := range contacts.Tags {
		if len(tag) >= 2 && tag[0] == "p" && tag[1] != "" {
			res = append(res, tag[1])
		}
	}

	return generic.Unique(res, func(pk string) string { return pk })
}

func latest(events []*nostr.Event, kind int) *nostr.Event {
	var res *nostr.Event
	for _, evt := range events {
		if evt.Kind != kind {
			continue
		}
		if res == nil || evt.CreatedAt > res.CreatedAt {
			res = evt
		}
	}

	return res
}

package eventcache

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
	"gorm.io/gorm"

	"github.com/saveblush/reraw-feed/core/cctx"
	"github.com/saveblush/reraw-feed/core/config"
	"github.com/saveblush/reraw-feed/models"
)

// Service local event cache
// Insert ต้อง idempotent ตาม event id (id เดิม = เขียนทับ)
type Service interface {
	Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error)
	Insert(ctx context.Context, evt *nostr.Event) error
}

// NewService new service ตาม driver ใน config
func NewService(c *cctx.Context) Service {
	if c.Config.Cache.Driver == config.CachePostgres && c.GetDatabase() != nil {
		return NewPostgres(c.GetDatabase())
	}

	return NewMemory()
}

type postgresService struct {
	db         *gorm.DB
	repository Repository
}

// NewPostgres new cache backed by the events_cache table
func NewPostgres(db *gorm.DB) Service {
	return &postgresService{
		db:         db,
		repository: NewRepository(),
	}
}

func (s *postgresService) Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	var res []*nostr.Event
	seen := make(map[string]struct{})
	for i := range filters {
		fetch, err := s.repository.FindAll(ctx, s.db, &Request{NostrFilter: &filters[i]})
		if err != nil {
			return nil, err
		}

		for _, v := range fetch {
			if _, ok := seen[v.ID]; ok {
				continue
			}
			seen[v.ID] = struct{}{}
			res = append(res, v.Event())
		}
	}

	return res, nil
}

func (s *postgresService) Insert(ctx context.Context, evt *nostr.Event) error {
	return s.repository.Upsert(ctx, s.db, models.NewCachedEvent(evt))
}

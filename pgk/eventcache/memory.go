package eventcache

import (
	"context"
	"sort"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

type memoryService struct {
	mu     sync.RWMutex
	events map[string]*nostr.Event
}

// NewMemory new in-process cache
func NewMemory() Service {
	return &memoryService{
		events: make(map[string]*nostr.Event),
	}
}

func (s *memoryService) Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := make([]*nostr.Event, 0, len(s.events))
	for _, evt := range s.events {
		all = append(all, evt)
	}
	s.mu.RUnlock()

	// created_at DESC, id ASC เหมือน repository
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt > all[j].CreatedAt
		}
		return all[i].ID < all[j].ID
	})

	var res []*nostr.Event
	seen := make(map[string]struct{})
	for _, filter := range filters {
		limit := defaultLimit
		if filter.Limit > 0 {
			limit = filter.Limit
		}

		n := 0
		for _, evt := range all {
			if n >= limit {
				break
			}
			if !filter.Matches(evt) {
				continue
			}
			n++

			if _, ok := seen[evt.ID]; ok {
				continue
			}
			seen[evt.ID] = struct{}{}
			res = append(res, evt)
		}
	}

	return res, nil
}

func (s *memoryService) Insert(ctx context.Context, evt *nostr.Event) error {
	if evt == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *evt
	s.events[evt.ID] = &cp

	return nil
}

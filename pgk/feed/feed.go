package feed

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/saveblush/reraw-feed/core/utils"
	"github.com/saveblush/reraw-feed/models"
)

// Feed open feed handle
// แต่ละ feed ถือ token ของตัวเอง ไม่มี state ร่วมกับ feed อื่น
type Feed struct {
	id        string
	svc       *Service
	feedType  models.FeedType
	hashtag   string
	pubkey    string
	requested models.SortMode
	effective models.SortMode
	pageSize  int
	mode      models.TokenKind

	mu   sync.Mutex
	next models.PaginationToken
	done bool
}

// ID feed id
func (f *Feed) ID() string {
	return f.id
}

// Type feed type
func (f *Feed) Type() models.FeedType {
	return f.feedType
}

// Mode pagination mode, offset or cursor
func (f *Feed) Mode() models.TokenKind {
	return f.mode
}

// SortMode effective sort mode ("" = chronological)
func (f *Feed) SortMode() models.SortMode {
	return f.effective
}

// Next next page; หลังหมดแล้วคืน page ว่างโดยไม่ query
func (f *Feed) Next(ctx context.Context) (*models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done {
		return models.NewEmptyPage(), nil
	}

	page, err := f.Page(ctx, f.next)
	if err != nil {
		return nil, err
	}

	f.next = page.Next
	f.done = !page.HasMore()

	return page, nil
}

// Reset start again from the first page
func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next = models.NoToken()
	f.done = false
}

// Page page at token (NoToken = first page)
func (f *Feed) Page(ctx context.Context, token models.PaginationToken) (*models.Page, error) {
	if !token.IsNone() && token.Kind() != f.mode {
		return nil, fmt.Errorf("%w: got %s, feed uses %s", ErrTokenMode, token.Kind(), f.mode)
	}
	if offset, ok := token.Offset(); ok && offset > uint64(math.MaxInt-f.pageSize) {
		return nil, fmt.Errorf("%w: %d", ErrOffsetRange, offset)
	}

	filter, ok := f.filter(token)
	if !ok {
		return models.NewEmptyPage(), nil
	}

	if reject, msg := f.svc.policies.RejectFilter(&filter); reject {
		return nil, fmt.Errorf("%w: %s", ErrRejectedFilter, msg)
	}

	ctx, cancel := context.WithTimeout(ctx, f.svc.opts.QueryTimeout)
	defer cancel()

	log := f.svc.log
	log.Debugf("[feed] %s %s fetch: token=%s filter=%v", f.feedType, f.id, token, filter)

	events, err := f.svc.querier.Query(ctx, nostr.Filters{filter})
	if err != nil {
		return nil, err
	}

	now := f.svc.opts.Now()
	videos := ParseVideos(events, now)
	if mode, ok := f.clientRanking(); ok && len(videos) > 1 {
		Rank(videos, mode, now)
	}

	page := &models.Page{Videos: videos, Next: models.NoToken()}
	switch f.mode {
	case models.TokenOffset:
		offset, _ := token.Offset()
		page.Videos = slice(videos, offset, f.pageSize)
		// full page = อาจมีต่อ
		if len(page.Videos) >= f.pageSize {
			page.Next = models.Offset(offset + uint64(len(page.Videos)))
		}
	default:
		if len(videos) > 0 {
			page.Next = models.Cursor(int64(oldest(videos)) - 1)
		}
	}
	log.Debugf("[feed] %s %s: %d events -> %d videos, next=%s", f.feedType, f.id, len(events), len(page.Videos), page.Next)

	return page, nil
}

// filter build filter for token, ok=false เมื่อไม่มีอะไรต้อง query
func (f *Feed) filter(token models.PaginationToken) (nostr.Filter, bool) {
	filter := nostr.Filter{
		Kinds: append([]int(nil), models.VideoKinds...),
		Limit: f.pageSize,
	}

	if offset, ok := token.Offset(); ok {
		filter.Limit = int(offset) + f.pageSize
	} else if cursor, ok := token.Cursor(); ok {
		filter.Until = utils.Pointer(nostr.Timestamp(cursor))
	}

	switch f.feedType {
	case models.FeedHashtag:
		// ห้ามใส่ search คู่กับ #t, จัดเรียงฝั่ง client แทน
		filter.Tags = nostr.TagMap{"t": {f.hashtag}}

	case models.FeedProfile:
		filter.Authors = []string{f.pubkey}

	case models.FeedHome:
		viewer := f.svc.opts.Viewer
		if viewer == nil || viewer.Pubkey() == "" {
			f.svc.log.Debugf("[feed] home %s: no user signed in", f.id)
			return filter, false
		}

		follows, loading := viewer.Follows()
		if loading {
			f.svc.log.Debugf("[feed] home %s: follow list still loading", f.id)
			return filter, false
		}
		if len(follows) == 0 {
			f.svc.log.Debugf("[feed] home %s: user has no follows", f.id)
			return filter, false
		}

		filter.Authors = append([]string(nil), follows...)
		if f.effective != models.SortNone {
			filter.Search = f.effective.Directive()
		}

	case models.FeedTrending:
		// classic: #platform แทน search, เรียงตาม loops ฝั่ง client
		if f.effective == models.SortTop {
			filter.Tags = nostr.TagMap{"platform": {"vine"}}
		} else if f.effective != models.SortNone {
			filter.Search = f.effective.Directive()
		}

	case models.FeedDiscovery:
		if f.effective != models.SortNone {
			filter.Search = f.effective.Directive()
		}

	case models.FeedRecent:
	}

	return filter, true
}

// clientRanking sort mode ที่ต้องเรียงเองหลัง fetch
func (f *Feed) clientRanking() (models.SortMode, bool) {
	switch {
	case f.feedType == models.FeedTrending && f.effective == models.SortTop:
		return models.SortTop, true
	case f.feedType == models.FeedHashtag && f.requested != models.SortNone:
		return f.requested, true
	}

	return models.SortNone, false
}

func slice(videos []*models.VideoRecord, offset uint64, size int) []*models.VideoRecord {
	if offset >= uint64(len(videos)) {
		return []*models.VideoRecord{}
	}

	end := offset + uint64(size)
	if end > uint64(len(videos)) {
		end = uint64(len(videos))
	}

	return videos[offset:end]
}

func oldest(videos []*models.VideoRecord) nostr.Timestamp {
	ts := videos[0].CreatedAt
	for _, v := range videos[1:] {
		if v.CreatedAt < ts {
			ts = v.CreatedAt
		}
	}

	return ts
}

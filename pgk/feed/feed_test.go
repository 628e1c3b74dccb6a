package feed

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/saveblush/reraw-feed/core/cctx"
	"github.com/saveblush/reraw-feed/core/config"
	"github.com/saveblush/reraw-feed/models"
)

var testNow = time.Unix(1700000000, 0)

type fakeSource struct {
	mu      sync.Mutex
	events  []*nostr.Event
	filters []nostr.Filter
	err     error
}

func loopsOf(evt *nostr.Event) int64 {
	for _, tag := range evt.Tags {
		if len(tag) >= 2 && tag[0] == "loops" {
			n, _ := strconv.ParseInt(tag[1], 10, 64)
			return n
		}
	}

	return 0
}

func (s *fakeSource) Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filters = append(s.filters, filters...)
	if s.err != nil {
		return nil, s.err
	}

	f := filters[0]
	res := []*nostr.Event{}
	for _, evt := range s.events {
		if f.Matches(evt) {
			res = append(res, evt)
		}
	}

	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt > res[j].CreatedAt })
	if f.Search == "sort:top" {
		sort.SliceStable(res, func(i, j int) bool { return loopsOf(res[i]) > loopsOf(res[j]) })
	}
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}

	return res, nil
}

func (s *fakeSource) calls() []nostr.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]nostr.Filter(nil), s.filters...)
}

type fakeViewer struct {
	pubkey  string
	follows []string
	loading bool
}

func (v *fakeViewer) Pubkey() string { return v.pubkey }

func (v *fakeViewer) Follows() ([]string, bool) { return v.follows, v.loading }

type blockingSource struct{}

func (blockingSource) Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func video(id string, createdAt int64, loops int64, tags ...nostr.Tag) *nostr.Event {
	tags = append(tags, nostr.Tag{"loops", strconv.FormatInt(loops, 10)})

	return &nostr.Event{
		ID:        id,
		PubKey:    "author-" + id,
		Kind:      34236,
		CreatedAt: nostr.Timestamp(createdAt),
		Tags:      tags,
	}
}

func newTestService(t *testing.T, src Querier, opts Options) *Service {
	opts.Now = func() time.Time { return testNow }
	opts.Log = zaptest.NewLogger(t).Sugar()

	return New(src, opts)
}

func ids(videos []*models.VideoRecord) []string {
	res := make([]string, 0, len(videos))
	for _, v := range videos {
		res = append(res, v.ID)
	}

	return res
}

func TestOpenFeedMissingParameters(t *testing.T) {
	s := newTestService(t, &fakeSource{}, Options{})

	_, err := s.OpenFeed(models.FeedHashtag, Params{})
	assert.ErrorIs(t, err, ErrHashtagRequired)

	_, err = s.OpenFeed(models.FeedProfile, Params{Hashtag: "vine"})
	assert.ErrorIs(t, err, ErrPubkeyRequired)

	_, err = s.OpenFeed(models.FeedType("popular"), Params{})
	assert.ErrorIs(t, err, ErrUnknownFeedType)
}

func TestHomeFeedWithoutUserIsEmptyWithoutQuery(t *testing.T) {
	cases := map[string]Viewer{
		"no viewer":      nil,
		"no pubkey":      &fakeViewer{follows: []string{"a"}},
		"still loading":  &fakeViewer{pubkey: "me", loading: true},
		"no follows yet": &fakeViewer{pubkey: "me"},
	}

	for name, viewer := range cases {
		t.Run(name, func(t *testing.T) {
			src := &fakeSource{events: []*nostr.Event{video("a", 100, 1)}}
			s := newTestService(t, src, Options{Viewer: viewer})

			f, err := s.OpenFeed(models.FeedHome, Params{})
			require.NoError(t, err)

			page, err := f.Next(context.Background())
			require.NoError(t, err)
			assert.Empty(t, page.Videos)
			assert.False(t, page.HasMore())
			assert.Empty(t, src.calls())
		})
	}
}

func TestHomeFeedUsesFollows(t *testing.T) {
	src := &fakeSource{events: []*nostr.Event{video("a", 100, 1), video("b", 90, 1)}}
	viewer := &fakeViewer{pubkey: "me", follows: []string{"author-a"}}
	s := newTestService(t, src, Options{Viewer: viewer, RankingSupport: true})

	f, err := s.OpenFeed(models.FeedHome, Params{SortMode: models.SortHot})
	require.NoError(t, err)
	assert.Equal(t, models.TokenOffset, f.Mode())

	page, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(page.Videos))

	calls := src.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"author-a"}, calls[0].Authors)
	assert.Equal(t, "sort:hot", calls[0].Search)
}

func TestHashtagTopSortsByLoopsWithoutDirective(t *testing.T) {
	for _, ranking := range []bool{false, true} {
		src := &fakeSource{events: []*nostr.Event{
			video("new-few", 300, 5, nostr.Tag{"t", "vine"}),
			video("mid-many", 200, 500, nostr.Tag{"t", "vine"}),
			video("old-some", 100, 50, nostr.Tag{"t", "vine"}),
			video("other", 250, 9999, nostr.Tag{"t", "cats"}),
		}}
		s := newTestService(t, src, Options{RankingSupport: ranking})

		f, err := s.OpenFeed(models.FeedHashtag, Params{Hashtag: "VINE", SortMode: models.SortTop})
		require.NoError(t, err)

		page, err := f.Page(context.Background(), models.NoToken())
		require.NoError(t, err)
		assert.Equal(t, []string{"mid-many", "old-some", "new-few"}, ids(page.Videos))

		calls := src.calls()
		require.Len(t, calls, 1)
		assert.Equal(t, nostr.TagMap{"t": {"vine"}}, calls[0].Tags)
		assert.Empty(t, calls[0].Search)
	}
}

func TestProfileFeedFilter(t *testing.T) {
	src := &fakeSource{events: []*nostr.Event{video("a", 100, 1), video("b", 90, 1)}}
	s := newTestService(t, src, Options{RankingSupport: true})

	f, err := s.OpenFeed(models.FeedProfile, Params{Pubkey: "author-b"})
	require.NoError(t, err)
	assert.Equal(t, models.TokenCursor, f.Mode())

	page, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(page.Videos))
	assert.Equal(t, []string{"author-b"}, src.calls()[0].Authors)
	assert.ElementsMatch(t, models.VideoKinds, src.calls()[0].Kinds)
}

func TestTrendingDefaultsToHot(t *testing.T) {
	src := &fakeSource{}
	s := newTestService(t, src, Options{RankingSupport: true})

	f, err := s.OpenFeed(models.FeedTrending, Params{})
	require.NoError(t, err)
	assert.Equal(t, models.SortHot, f.SortMode())
	assert.Equal(t, models.TokenOffset, f.Mode())

	_, err = f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sort:hot", src.calls()[0].Search)
	assert.Empty(t, src.calls()[0].Tags)
}

func TestRankingFallsBackToChronologicalWithoutSupport(t *testing.T) {
	for _, feedType := range []models.FeedType{models.FeedTrending, models.FeedDiscovery} {
		src := &fakeSource{events: []*nostr.Event{video("a", 100, 1)}}
		s := newTestService(t, src, Options{RankingSupport: false})

		f, err := s.OpenFeed(feedType, Params{SortMode: models.SortRising})
		require.NoError(t, err)
		assert.Equal(t, models.SortNone, f.SortMode())
		assert.Equal(t, models.TokenCursor, f.Mode())

		page, err := f.Next(context.Background())
		require.NoError(t, err)
		assert.Len(t, page.Videos, 1)
		assert.Empty(t, src.calls()[0].Search)
	}
}

func TestTrendingClassicUsesPlatformTagAndLoops(t *testing.T) {
	events := []*nostr.Event{
		video("a", 400, 10, nostr.Tag{"platform", "vine"}),
		video("b", 300, 1000, nostr.Tag{"platform", "vine"}),
		video("c", 200, 10, nostr.Tag{"platform", "vine"}),
		video("d", 100, 300, nostr.Tag{"platform", "vine"}),
		video("x", 500, 99999),
	}
	src := &fakeSource{events: events}
	s := newTestService(t, src, Options{RankingSupport: true})

	f, err := s.OpenFeed(models.FeedTrending, Params{SortMode: models.SortTop})
	require.NoError(t, err)

	page, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids(page.Videos))

	calls := src.calls()
	assert.Equal(t, nostr.TagMap{"platform": {"vine"}}, calls[0].Tags)
	assert.Empty(t, calls[0].Search)

	// เรียงแบบเดียวกับ top ทั่วไป
	generic := ParseVideos(events[:4], testNow)
	Rank(generic, models.SortTop, testNow)
	assert.Equal(t, ids(generic), ids(page.Videos))
}

func TestOffsetPaginationMatchesSlicedRankedSet(t *testing.T) {
	var events []*nostr.Event
	for i := 0; i < 7; i++ {
		events = append(events, video(strconv.Itoa(i), int64(1000+i), int64(i*10+3)))
	}
	src := &fakeSource{events: events}
	s := newTestService(t, src, Options{RankingSupport: true})

	f, err := s.OpenFeed(models.FeedDiscovery, Params{SortMode: models.SortTop, PageSize: 3})
	require.NoError(t, err)

	var got []string
	var pages int
	for {
		page, err := f.Next(context.Background())
		require.NoError(t, err)
		pages++
		got = append(got, ids(page.Videos)...)
		if !page.HasMore() {
			break
		}
		next, ok := page.Next.Offset()
		require.True(t, ok)
		assert.Equal(t, uint64(pages*3), next)
	}

	ranked := ParseVideos(events, testNow)
	Rank(ranked, models.SortTop, testNow)
	assert.Equal(t, ids(ranked), got)
	assert.Equal(t, 3, pages)

	limits := []int{}
	for _, c := range src.calls() {
		limits = append(limits, c.Limit)
		assert.Nil(t, c.Until)
	}
	assert.Equal(t, []int{3, 6, 9}, limits)
}

func TestOffsetPaginationFullLastPageMeansMaybeMore(t *testing.T) {
	var events []*nostr.Event
	for i := 0; i < 6; i++ {
		events = append(events, video(strconv.Itoa(i), int64(1000+i), int64(i)))
	}
	src := &fakeSource{events: events}
	s := newTestService(t, src, Options{RankingSupport: true})

	f, err := s.OpenFeed(models.FeedDiscovery, Params{SortMode: models.SortTop, PageSize: 3})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		page, err := f.Next(context.Background())
		require.NoError(t, err)
		assert.Len(t, page.Videos, 3)
		assert.True(t, page.HasMore())
	}

	page, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page.Videos)
	assert.False(t, page.HasMore())
	assert.Len(t, src.calls(), 3)

	// หมดแล้วไม่ query อีก
	_, err = f.Next(context.Background())
	require.NoError(t, err)
	assert.Len(t, src.calls(), 3)
}

func TestCursorPaginationIsStrictlyDecreasing(t *testing.T) {
	var events []*nostr.Event
	for i := 0; i < 7; i++ {
		events = append(events, video(strconv.Itoa(i), int64(1000+i*10), 1))
	}
	src := &fakeSource{events: events}
	s := newTestService(t, src, Options{RankingSupport: true})

	f, err := s.OpenFeed(models.FeedRecent, Params{SortMode: models.SortTop, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, models.TokenCursor, f.Mode())

	seen := map[string]bool{}
	var prevLast *models.VideoRecord
	for {
		page, err := f.Next(context.Background())
		require.NoError(t, err)
		for _, v := range page.Videos {
			assert.False(t, seen[v.ID], "duplicate %s", v.ID)
			seen[v.ID] = true
			if prevLast != nil {
				assert.Less(t, v.CreatedAt, prevLast.CreatedAt)
			}
		}
		if len(page.Videos) > 0 {
			prevLast = page.Videos[len(page.Videos)-1]
			cursor, ok := page.Next.Cursor()
			require.True(t, ok)
			assert.Equal(t, int64(prevLast.CreatedAt)-1, cursor)
		}
		if !page.HasMore() {
			break
		}
	}
	assert.Len(t, seen, 7)

	calls := src.calls()
	assert.Nil(t, calls[0].Until)
	for _, c := range calls {
		assert.Empty(t, c.Search)
	}
}

func TestPageRejectsTokenOfOtherMode(t *testing.T) {
	s := newTestService(t, &fakeSource{}, Options{RankingSupport: true})

	ranked, err := s.OpenFeed(models.FeedDiscovery, Params{SortMode: models.SortHot})
	require.NoError(t, err)
	_, err = ranked.Page(context.Background(), models.Cursor(100))
	assert.ErrorIs(t, err, ErrTokenMode)

	chrono, err := s.OpenFeed(models.FeedRecent, Params{})
	require.NoError(t, err)
	_, err = chrono.Page(context.Background(), models.Offset(20))
	assert.ErrorIs(t, err, ErrTokenMode)
}

func TestPageRejectsOffsetOutOfRange(t *testing.T) {
	src := &fakeSource{}
	s := newTestService(t, src, Options{RankingSupport: true, PageSize: 20})

	f, err := s.OpenFeed(models.FeedDiscovery, Params{SortMode: models.SortHot})
	require.NoError(t, err)

	_, err = f.Page(context.Background(), models.Offset(math.MaxUint64))
	assert.ErrorIs(t, err, ErrOffsetRange)
	_, err = f.Page(context.Background(), models.Offset(uint64(math.MaxInt-19)))
	assert.ErrorIs(t, err, ErrOffsetRange)
	assert.Empty(t, src.calls())

	// ขอบบนที่ยังรับได้
	_, err = f.Page(context.Background(), models.Offset(uint64(math.MaxInt-20)))
	require.NoError(t, err)
	require.Len(t, src.calls(), 1)
	assert.Equal(t, math.MaxInt, src.calls()[0].Limit)
}

func TestPageQueryErrorPropagates(t *testing.T) {
	src := &fakeSource{err: errors.New("relay down")}
	s := newTestService(t, src, Options{})

	f, err := s.OpenFeed(models.FeedRecent, Params{})
	require.NoError(t, err)

	_, err = f.Next(context.Background())
	assert.EqualError(t, err, "relay down")
}

func TestPageQueryTimeout(t *testing.T) {
	s := newTestService(t, blockingSource{}, Options{QueryTimeout: 20 * time.Millisecond})

	f, err := s.OpenFeed(models.FeedRecent, Params{})
	require.NoError(t, err)

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeedsDoNotShareState(t *testing.T) {
	var events []*nostr.Event
	for i := 0; i < 4; i++ {
		events = append(events, video(strconv.Itoa(i), int64(1000+i), 1))
	}
	s := newTestService(t, &fakeSource{events: events}, Options{})

	a, err := s.OpenFeed(models.FeedRecent, Params{PageSize: 2})
	require.NoError(t, err)
	b, err := s.OpenFeed(models.FeedRecent, Params{PageSize: 2})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	_, err = a.Next(context.Background())
	require.NoError(t, err)
	pa, err := a.Next(context.Background())
	require.NoError(t, err)
	pb, err := b.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "0"}, ids(pa.Videos))
	assert.Equal(t, []string{"3", "2"}, ids(pb.Videos))

	a.Reset()
	pa, err = a.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2"}, ids(pa.Videos))
}

func TestNewServiceFromConfig(t *testing.T) {
	cf := &config.Configs{}
	cf.Feed.PageSize = 7
	cf.Feed.QueryTimeout = 2 * time.Second
	cf.Relay.RankingSupport = true

	s, err := NewService(cctx.New(cf, zaptest.NewLogger(t).Sugar()), &fakeSource{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, s.opts.PageSize)
	assert.Equal(t, 2*time.Second, s.opts.QueryTimeout)
	assert.True(t, s.opts.RankingSupport)
}

package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/saveblush/reraw-feed/core/cctx"
	"github.com/saveblush/reraw-feed/core/utils"
	"github.com/saveblush/reraw-feed/core/utils/logger"
	"github.com/saveblush/reraw-feed/models"
	"github.com/saveblush/reraw-feed/pgk/policies"
)

const (
	defaultPageSize     = 20
	defaultQueryTimeout = 10 * time.Second
)

var (
	ErrHashtagRequired = errors.New("feed: hashtag required for hashtag feed")
	ErrPubkeyRequired  = errors.New("feed: pubkey required for profile feed")
	ErrUnknownFeedType = errors.New("feed: unknown feed type")
	ErrTokenMode       = errors.New("feed: pagination token does not match feed mode")
	ErrOffsetRange     = errors.New("feed: pagination offset out of range")
	ErrRejectedFilter  = errors.New("feed: filter rejected")
)

// Querier resolves filters to events (the dispatcher)
type Querier interface {
	Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error)
}

// Viewer signed-in user ของ home feed
type Viewer interface {
	Pubkey() string
	// Follows follow list, loading=true ระหว่างยังโหลดไม่เสร็จ
	Follows() (follows []string, loading bool)
}

// Params feed parameters
type Params struct {
	Hashtag  string
	Pubkey   string
	SortMode models.SortMode
	PageSize int
}

// Options options
type Options struct {
	PageSize     int
	QueryTimeout time.Duration
	// RankingSupport source รองรับ sort:<mode> (NIP-50)
	RankingSupport bool
	Viewer         Viewer
	Now            utils.Clock
	Log            *zap.SugaredLogger
}

// Service feed service
type Service struct {
	querier  Querier
	policies policies.Service
	opts     Options
	log      *zap.SugaredLogger
}

// New new service
func New(querier Querier, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	opts.Now = opts.Now.OrNow()

	return &Service{
		querier:  querier,
		policies: policies.NewService(),
		opts:     opts,
		log:      logger.OrNop(opts.Log),
	}
}

// NewService new service from session config; viewer may be nil
func NewService(c *cctx.Context, querier Querier, viewer Viewer) (*Service, error) {
	opts := Options{}
	if err := copier.Copy(&opts, &c.Config.Feed); err != nil {
		return nil, fmt.Errorf("feed: copy config: %w", err)
	}
	opts.RankingSupport = c.Config.Relay.RankingSupport
	opts.Viewer = viewer
	opts.Log = c.Log

	return New(querier, opts), nil
}

// OpenFeed open feed; pagination mode ถูกกำหนดครั้งเดียวตอนเปิด
func (s *Service) OpenFeed(feedType models.FeedType, params Params) (*Feed, error) {
	if !feedType.Valid() {
		return nil, ErrUnknownFeedType
	}

	hashtag := strings.ToLower(strings.TrimSpace(params.Hashtag))
	if feedType == models.FeedHashtag && hashtag == "" {
		return nil, ErrHashtagRequired
	}

	pubkey := strings.TrimSpace(params.Pubkey)
	if feedType == models.FeedProfile && pubkey == "" {
		return nil, ErrPubkeyRequired
	}

	requested := params.SortMode
	switch {
	case feedType == models.FeedRecent:
		requested = models.SortNone
	case feedType == models.FeedTrending && requested == models.SortNone:
		requested = models.SortHot
	}

	effective := models.SortNone
	if s.opts.RankingSupport {
		effective = requested
	} else if requested != models.SortNone {
		s.log.Debugf("[feed] source has no ranking support, using chronological order instead of %s", requested.Directive())
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = s.opts.PageSize
	}

	mode := models.TokenCursor
	if effective.Ranked() {
		mode = models.TokenOffset
	}

	f := &Feed{
		id:        uuid.NewString(),
		svc:       s,
		feedType:  feedType,
		hashtag:   hashtag,
		pubkey:    pubkey,
		requested: requested,
		effective: effective,
		pageSize:  pageSize,
		mode:      mode,
		next:      models.NoToken(),
	}
	s.log.Debugf("[feed] open %s feed %s: sort=%q mode=%s page_size=%d", feedType, f.id, effective, mode, pageSize)

	return f, nil
}

package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/saveblush/reraw-feed/core/cctx"
	"github.com/saveblush/reraw-feed/core/utils/logger"
)

const (
	defaultSpec    = "*/5 * * * *"
	defaultTimeout = 10 * time.Second
)

// Refresher job ที่รันตามรอบ
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Service service interface
type Service interface {
	Start() error
	Stop()
}

type service struct {
	cron       *cron.Cron
	spec       string
	timeout    time.Duration
	refreshers []Refresher
	log        *zap.SugaredLogger
}

// NewService new service, spec จาก CRON.FOLLOWS_SPEC
func NewService(c *cctx.Context, refreshers ...Refresher) Service {
	spec := c.Config.Cron.FollowsSpec
	if spec == "" {
		spec = defaultSpec
	}

	timeout := c.Config.Feed.QueryTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &service{
		cron:       cron.New(),
		spec:       spec,
		timeout:    timeout,
		refreshers: refreshers,
		log:        logger.OrNop(c.Log),
	}
}

func (s *service) Start() error {
	s.log.Info("Cron init...")
	if err := s.schedule(); err != nil {
		return err
	}
	s.cron.Start()

	return nil
}

func (s *service) Stop() {
	<-s.cron.Stop().Done()
}

func (s *service) schedule() error {
	// รันทุก 5 นาที (default)
	_, err := s.cron.AddFunc(s.spec, s.run)
	return err
}

func (s *service) run() {
	for _, r := range s.refreshers {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := r.Refresh(ctx); err != nil {
			s.log.Warnf("[cron] refresh error: %s", err)
		}
		cancel()
	}
}

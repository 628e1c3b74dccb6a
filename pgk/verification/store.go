package verification

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/saveblush/reraw-feed/core/cctx"
	"github.com/saveblush/reraw-feed/core/utils"
	"github.com/saveblush/reraw-feed/core/utils/logger"
)

const defaultDuration = 30 * 24 * time.Hour

type record struct {
	Confirmed bool  `json:"confirmed" mapstructure:"confirmed"`
	Expiry    int64 `json:"expiry" mapstructure:"expiry"` // unix ms
}

// Store verified-access flag ที่มีวันหมดอายุ, เก็บเป็นไฟล์ json
type Store struct {
	mu       sync.RWMutex
	path     string
	duration time.Duration
	now      utils.Clock
	record   record
	v        *viper.Viper
	log      *zap.SugaredLogger
}

// Options options
type Options struct {
	Duration time.Duration
	Now      utils.Clock
	Log      *zap.SugaredLogger
}

// NewStore open store at path, ไฟล์ที่ยังไม่มีถือว่ายังไม่ยืนยัน
func NewStore(path string, opts Options) (*Store, error) {
	if opts.Duration <= 0 {
		opts.Duration = defaultDuration
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	s := &Store{
		path:     path,
		duration: opts.Duration,
		now:      opts.Now.OrNow(),
		v:        v,
		log:      logger.OrNop(opts.Log),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// NewService new store from session config
func NewService(c *cctx.Context) (*Store, error) {
	return NewStore(c.Config.Auth.VerificationFile, Options{
		Duration: c.Config.Auth.VerificationDuration,
		Log:      c.Log,
	})
}

func (s *Store) load() error {
	err := s.v.ReadInConfig()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.setRecord(record{})
			return nil
		}
		return fmt.Errorf("read verification file: %w", err)
	}

	rec := record{}
	err = s.v.Unmarshal(&rec)
	if err != nil {
		return fmt.Errorf("decode verification file: %w", err)
	}
	s.setRecord(rec)

	return nil
}

func (s *Store) setRecord(rec record) {
	s.mu.Lock()
	s.record = rec
	s.mu.Unlock()
}

// Watch reload เมื่อไฟล์ถูกแก้จากภายนอก
func (s *Store) Watch() {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.log.Debugf("[verification] file changed: %s", e.Name)
		if err := s.load(); err != nil {
			s.log.Warnf("[verification] reload error: %s", err)
		}
	})
	s.v.WatchConfig()
}

// Verified ยืนยันแล้วและยังไม่หมดอายุ; record ที่หมดอายุจะถูกลบ
func (s *Store) Verified() bool {
	s.mu.RLock()
	rec := s.record
	s.mu.RUnlock()

	if !rec.Confirmed {
		return false
	}

	if s.now().UnixMilli() < rec.Expiry {
		return true
	}

	s.log.Debug("[verification] verification expired")
	if err := s.Revoke(); err != nil {
		s.log.Warnf("[verification] clear expired verification error: %s", err)
	}

	return false
}

// ExpiresAt expiry of the current verification, zero when not verified
func (s *Store) ExpiresAt() time.Time {
	if !s.Verified() {
		return time.Time{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return time.UnixMilli(s.record.Expiry)
}

// Confirm verified, หมดอายุใน duration
func (s *Store) Confirm() error {
	rec := record{
		Confirmed: true,
		Expiry:    s.now().Add(s.duration).UnixMilli(),
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	err = os.WriteFile(s.path, b, 0o600)
	if err != nil {
		return err
	}
	s.setRecord(rec)

	return nil
}

// Revoke clear verification
func (s *Store) Revoke() error {
	s.setRecord(record{})

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

package cctx

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saveblush/reraw-feed/core/config"
	"github.com/saveblush/reraw-feed/core/sql"
	"github.com/saveblush/reraw-feed/core/utils/logger"
)

// Context session context, สร้างครั้งเดียวตอนเริ่ม session แล้วส่งต่อให้ทุก service
type Context struct {
	Config *config.Configs
	Log    *zap.SugaredLogger

	db *gorm.DB
}

// New new session context
func New(cf *config.Configs, log *zap.SugaredLogger) *Context {
	if cf == nil {
		cf = &config.Configs{}
	}

	return &Context{
		Config: cf,
		Log:    logger.OrNop(log),
	}
}

// OpenDatabase open connection database of the local event cache
func (c *Context) OpenDatabase() error {
	cf := c.Config.Database.CacheSQL
	session, err := sql.InitConnection(&sql.Configuration{
		Host:         cf.Host,
		Port:         cf.Port,
		Username:     cf.Username,
		Password:     cf.Password,
		DatabaseName: cf.DatabaseName,
		MaxIdleConns: cf.MaxIdleConns,
		MaxOpenConns: cf.MaxOpenConns,
		MaxLifetime:  cf.MaxLifetime,
	})
	if err != nil {
		return err
	}

	if !c.Config.App.Environment.Production() {
		session.Database = session.Database.Debug()
	}

	err = sql.Migration(session.Database)
	if err != nil {
		_ = sql.CloseConnection(session.Database)
		return err
	}
	c.db = session.Database

	return nil
}

// GetDatabase get connection database
func (c *Context) GetDatabase() *gorm.DB {
	return c.db
}

// Close close session
func (c *Context) Close() {
	if c.db != nil {
		if err := sql.CloseConnection(c.db); err != nil {
			c.Log.Errorf("close database error: %s", err)
		}
		c.db = nil
	}
	_ = c.Log.Sync()
}

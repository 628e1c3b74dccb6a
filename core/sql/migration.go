package sql

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/saveblush/reraw-feed/core/generic"
	"github.com/saveblush/reraw-feed/core/utils"
)

func createDatabase(cf *Configuration) error {
	dsn := fmt.Sprintf("user=%s password=%s host=%s port=%d sslmode=disable TimeZone=%s",
		cf.Username,
		cf.Password,
		cf.Host,
		cf.Port,
		utils.TimeZone(),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return err
	}
	defer CloseConnection(db)

	var exc string
	sql := "SELECT 'CREATE DATABASE " + cf.DatabaseName + "' WHERE NOT EXISTS (SELECT 1 FROM pg_database WHERE datname = ?)"
	err = db.Raw(sql, cf.DatabaseName).Scan(&exc).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check already database: %w", err)
	}
	if !generic.IsEmpty(exc) {
		err := db.Exec(exc).Error
		if err != nil {
			return fmt.Errorf("create database: %w", err)
		}
	}

	return nil
}

// Migration migration table ของ local event cache
func Migration(db *gorm.DB) error {
	var sqls []string
	sqls = append(sqls, `
		CREATE OR REPLACE FUNCTION json_value_to_array(jsonb)
			RETURNS text[]
			LANGUAGE SQL
			IMMUTABLE
		AS 'SELECT array_agg(t->>1) FROM (SELECT jsonb_array_elements($1) AS t)s WHERE length(t->>0) = 1;'
		RETURNS NULL ON NULL INPUT;
	`)

	sqls = append(sqls, `
		CREATE TABLE IF NOT EXISTS events_cache (
			id varchar(64) NOT NULL PRIMARY KEY,
			created_at integer DEFAULT NULL,
			pubkey varchar(64) DEFAULT NULL,
			kind integer DEFAULT NULL,
			tags jsonb DEFAULT NULL,
			content text DEFAULT NULL,
			sig text DEFAULT NULL,
			tagvalues text[] GENERATED ALWAYS AS (json_value_to_array(tags)) STORED
		);
	`)

	// index events_cache
	sqls = append(sqls, `CREATE INDEX IF NOT EXISTS idx_events_cache_pubkey_kind ON events_cache (pubkey, kind);`)
	sqls = append(sqls, `CREATE INDEX IF NOT EXISTS idx_events_cache_created_at ON events_cache (created_at DESC);`)
	sqls = append(sqls, `CREATE INDEX IF NOT EXISTS idx_events_cache_tagvalues ON events_cache USING gin (tagvalues);`)

	for _, sql := range sqls {
		err := db.Exec(sql).Error
		if err != nil {
			return fmt.Errorf("db migration: %w", err)
		}
	}

	return nil
}

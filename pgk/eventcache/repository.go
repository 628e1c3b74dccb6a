package eventcache

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/saveblush/reraw-feed/core/generic"
	"github.com/saveblush/reraw-feed/models"
)

const defaultLimit = 500

// Repository repository interface
type Repository interface {
	FindAll(ctx context.Context, db *gorm.DB, req *Request) ([]*models.CachedEvent, error)
	Upsert(ctx context.Context, db *gorm.DB, req *models.CachedEvent) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func makePlaceParams(n int) string {
	return strings.TrimRight(strings.Repeat("?,", n), ",")
}

func (r *repository) query(req *Request) (string, []any) {
	var conditions []string
	var params []any
	filter := req.NostrFilter

	if len(filter.IDs) > 0 {
		for _, v := range filter.IDs {
			params = append(params, v)
		}
		conditions = append(conditions, `id IN (`+makePlaceParams(len(filter.IDs))+`)`)
	}

	if len(filter.Kinds) > 0 {
		for _, v := range filter.Kinds {
			params = append(params, v)
		}
		conditions = append(conditions, `kind IN (`+makePlaceParams(len(filter.Kinds))+`)`)
	}

	if len(filter.Authors) > 0 {
		for _, v := range filter.Authors {
			params = append(params, v)
		}
		conditions = append(conditions, `pubkey IN (`+makePlaceParams(len(filter.Authors))+`)`)
	}

	if !generic.IsEmpty(filter.Since) {
		conditions = append(conditions, `created_at >= ?`)
		params = append(params, int64(*filter.Since))
	}

	if !generic.IsEmpty(filter.Until) {
		conditions = append(conditions, `created_at <= ?`)
		params = append(params, int64(*filter.Until))
	}

	// tagvalues (GIN) กรองหยาบก่อน แล้วเช็ค key ทีละ tag, key ต่างกันต้องตรงทุก key
	tagKeys := make([]string, 0, len(filter.Tags))
	tagQuery := make([]string, 0, 1)
	for k, v := range filter.Tags {
		if len(v) == 0 {
			continue
		}
		tagKeys = append(tagKeys, k)
		tagQuery = append(tagQuery, v...)
	}
	if !generic.IsEmpty(tagQuery) {
		sort.Strings(tagKeys)
		for _, k := range tagKeys {
			for _, tagValue := range filter.Tags[k] {
				params = append(params, tagValue)
			}
		}
		conditions = append(conditions, `tagvalues && ARRAY[`+makePlaceParams(len(tagQuery))+`]`)

		for _, k := range tagKeys {
			values := filter.Tags[k]
			params = append(params, k)
			for _, tagValue := range values {
				params = append(params, tagValue)
			}
			conditions = append(conditions, `EXISTS (SELECT 1 FROM jsonb_array_elements(tags) AS tag WHERE tag->>0 = ? AND tag->>1 IN (`+makePlaceParams(len(values))+`))`)
		}
	}

	if len(conditions) == 0 {
		conditions = append(conditions, `TRUE`)
	}

	limit := defaultLimit
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	params = append(params, limit)

	sql := `SELECT id, created_at, pubkey, kind, content, tags, sig FROM ` + models.CachedEvent{}.TableName() +
		` WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC, id LIMIT ?`

	return sql, params
}

func (r *repository) FindAll(ctx context.Context, db *gorm.DB, req *Request) ([]*models.CachedEvent, error) {
	sql, params := r.query(req)

	entities := []*models.CachedEvent{}
	err := db.WithContext(ctx).Raw(sql, params...).Scan(&entities).Error
	if err != nil {
		return nil, err
	}

	return entities, nil
}

// Upsert insert or replace by id (last write wins)
func (r *repository) Upsert(ctx context.Context, db *gorm.DB, req *models.CachedEvent) error {
	tags, err := req.Tags.Value()
	if err != nil {
		return err
	}

	sql := `INSERT INTO ` + models.CachedEvent{}.TableName() + ` (id, created_at, pubkey, kind, content, tags, sig)` +
		` VALUES (?, ?, ?, ?, ?, ?, ?)` +
		` ON CONFLICT (id) DO UPDATE SET created_at = EXCLUDED.created_at, pubkey = EXCLUDED.pubkey,` +
		` kind = EXCLUDED.kind, content = EXCLUDED.content, tags = EXCLUDED.tags, sig = EXCLUDED.sig`

	return db.WithContext(ctx).Exec(sql,
		req.ID,
		int64(req.CreatedAt),
		req.Pubkey,
		req.Kind,
		req.Content,
		tags,
		req.Sig,
	).Error
}

// Package cached wraps repositories with an in-process cache.
package cached

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/repositories"
	"github.com/robuust/reverserelations/pkg/cache"
)

// FieldRepository serves field definitions from a cache. Every resolver
// operation looks up the reverse field and its target field, while the
// definitions change only when fields are edited.
//
// Lookups that fail are not cached, so a missing target field is reported
// again on every call.
type FieldRepository struct {
	next   repositories.FieldRepository
	lookup singleflight.Group
	byUID  cache.Cache[string, *entities.FieldConfig]
	byID   cache.Cache[int64, *entities.FieldConfig]
	ttl    time.Duration
}

var _ repositories.FieldRepository = (*FieldRepository)(nil)

// NewFieldRepository creates a caching FieldRepository in front of next
func NewFieldRepository(
	next repositories.FieldRepository,
	byUID cache.Cache[string, *entities.FieldConfig],
	byID cache.Cache[int64, *entities.FieldConfig],
	ttl time.Duration,
) *FieldRepository {
	return &FieldRepository{
		next:  next,
		byUID: byUID,
		byID:  byID,
		ttl:   ttl,
	}
}

// Create stores a field and caches it
func (r *FieldRepository) Create(ctx context.Context, field *entities.FieldConfig) error {
	if err := r.next.Create(ctx, field); err != nil {
		return err
	}
	r.store(field)
	return nil
}

// GetByUID retrieves a field by uid
func (r *FieldRepository) GetByUID(ctx context.Context, uid string) (*entities.FieldConfig, error) {
	if field, ok := r.byUID.Get(uid); ok {
		return copyField(field), nil
	}

	v, err, _ := r.lookup.Do("uid:"+uid, func() (interface{}, error) {
		field, err := r.next.GetByUID(ctx, uid)
		if err != nil {
			return nil, err
		}
		r.store(field)
		return field, nil
	})
	if err != nil {
		return nil, err
	}
	return copyField(v.(*entities.FieldConfig)), nil
}

// GetByID retrieves a field by id
func (r *FieldRepository) GetByID(ctx context.Context, id int64) (*entities.FieldConfig, error) {
	if field, ok := r.byID.Get(id); ok {
		return copyField(field), nil
	}

	v, err, _ := r.lookup.Do(fmt.Sprintf("id:%d", id), func() (interface{}, error) {
		field, err := r.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		r.store(field)
		return field, nil
	})
	if err != nil {
		return nil, err
	}
	return copyField(v.(*entities.FieldConfig)), nil
}

// List always reads through; listings are only used when configuring fields
func (r *FieldRepository) List(ctx context.Context) ([]*entities.FieldConfig, error) {
	return r.next.List(ctx)
}

// Metrics returns the combined hit and miss counts of both lookups
func (r *FieldRepository) Metrics() *cache.Metrics {
	byUID, byID := r.byUID.Metrics(), r.byID.Metrics()
	return &cache.Metrics{
		Hits:   byUID.Hits + byID.Hits,
		Misses: byUID.Misses + byID.Misses,
	}
}

func (r *FieldRepository) store(field *entities.FieldConfig) {
	c := copyField(field)
	r.byUID.Set(c.UID, c, r.ttl)
	r.byID.Set(c.ID, c, r.ttl)
}

// copyField keeps callers from mutating cached definitions
func copyField(f *entities.FieldConfig) *entities.FieldConfig {
	c := *f
	if f.InputSources.Specifiers != nil {
		c.InputSources.Specifiers = append([]string(nil), f.InputSources.Specifiers...)
	}
	if f.TargetSiteID != nil {
		site := *f.TargetSiteID
		c.TargetSiteID = &site
	}
	return &c
}

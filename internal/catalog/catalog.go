// Package catalog resolves celebrity reference data owned by the catalog tables.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Africahassucceed/celebsbridgenew/internal/errs"
	"github.com/Africahassucceed/celebsbridgenew/internal/model"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Celebrity is the slice of catalog data the lifecycle needs.
type Celebrity struct {
	ID     string
	Price  decimal.Decimal
	Active bool
}

// Service reads celebrities from the database with a Redis read-through cache.
// A nil Redis client disables caching.
type Service struct {
	db  *gorm.DB
	rdb *redis.Client
	ttl time.Duration
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, rdb *redis.Client, ttl time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{db: db, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(id string) string { return "celebrity:" + id }

// Lookup returns price and active flag for id.
func (s *Service) Lookup(ctx context.Context, id string) (Celebrity, error) {
	if c, err := s.cached(ctx, id); err == nil {
		return c, nil
	} else if !errors.Is(err, redis.Nil) && s.rdb != nil {
		s.log.Warnw("celebrity cache read failed", "celebrity_id", id, "error", err)
	}

	var row model.Celebrity
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Celebrity{}, errs.NotFound("celebrity", id)
		}
		return Celebrity{}, errs.Storage("lookup celebrity", err)
	}
	c := Celebrity{ID: row.ID, Price: row.Price, Active: row.IsActive}
	if err := s.cache(ctx, c); err != nil {
		s.log.Warnw("celebrity cache write failed", "celebrity_id", id, "error", err)
	}
	return c, nil
}

// ListActive returns active celebrities ordered by name, as offered on the request form.
func (s *Service) ListActive(ctx context.Context) ([]model.Celebrity, error) {
	var rows []model.Celebrity
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&rows).Error; err != nil {
		return nil, errs.Storage("list celebrities", err)
	}
	return rows, nil
}

// Invalidate drops the cached entry after a catalog edit.
func (s *Service) Invalidate(ctx context.Context, id string) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, cacheKey(id)).Err()
}

func (s *Service) cache(ctx context.Context, c Celebrity) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Set(ctx, cacheKey(c.ID), encode(c), s.ttl).Err()
}

func (s *Service) cached(ctx context.Context, id string) (Celebrity, error) {
	if s.rdb == nil {
		return Celebrity{}, redis.Nil
	}
	str, err := s.rdb.Get(ctx, cacheKey(id)).Result()
	if err != nil {
		return Celebrity{}, err
	}
	return decode(id, str)
}

// encode stores "price|active", e.g. "500|true".
func encode(c Celebrity) string {
	return fmt.Sprintf("%s|%t", c.Price.String(), c.Active)
}

func decode(id, raw string) (Celebrity, error) {
	price, active, ok := strings.Cut(raw, "|")
	if !ok {
		return Celebrity{}, fmt.Errorf("malformed cache entry %q", raw)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return Celebrity{}, err
	}
	return Celebrity{ID: id, Price: p, Active: active == "true"}, nil
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/echannel-booking/pkg/logging"
)

var catalogTracer = otel.Tracer("echannel.internal.catalog")

const defaultDoctorTTL = 10 * time.Minute

// CachedRepository keeps doctor snapshots in Redis in front of another
// Repository. Redis errors fall through to the inner repository. An edited
// doctor is served stale until Invalidate is called (DELETE
// /v1/admin/doctors/{id}/cache) or the TTL expires.
type CachedRepository struct {
	Repository
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedRepository wraps inner. A nil redis client disables caching.
func NewCachedRepository(inner Repository, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedRepository {
	if inner == nil {
		panic("catalog: inner repository required")
	}
	if ttl <= 0 {
		ttl = defaultDoctorTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedRepository{Repository: inner, redis: client, ttl: ttl, logger: logger}
}

func doctorKey(id int64) string {
	return fmt.Sprintf("catalog:doctor:%d", id)
}

// GetDoctor returns the cached snapshot or loads and caches it.
func (c *CachedRepository) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog.get_doctor")
	defer span.End()
	span.SetAttributes(attribute.Int64("echannel.doctor_id", id))

	if c.redis != nil {
		if d, ok := c.readCache(ctx, span, id); ok {
			return d, nil
		}
	}

	d, err := c.Repository.GetDoctor(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrDoctorNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}

	if c.redis != nil {
		if data, err := json.Marshal(d); err == nil {
			if err := c.redis.Set(ctx, doctorKey(id), data, c.ttl).Err(); err != nil {
				c.logger.Warn("doctor cache write failed", "doctor_id", id, "error", err)
			}
		}
	}
	return d, nil
}

func (c *CachedRepository) readCache(ctx context.Context, span trace.Span, id int64) (*Doctor, bool) {
	data, err := c.redis.Get(ctx, doctorKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("doctor cache read failed", "doctor_id", id, "error", err)
		}
		span.SetAttributes(attribute.Bool("echannel.cache_hit", false))
		return nil, false
	}
	var d Doctor
	if err := json.Unmarshal(data, &d); err != nil {
		c.logger.Warn("doctor cache entry corrupt", "doctor_id", id, "error", err)
		return nil, false
	}
	span.SetAttributes(attribute.Bool("echannel.cache_hit", true))
	return &d, true
}

// Invalidate drops a cached doctor so the next read goes to the database.
func (c *CachedRepository) Invalidate(ctx context.Context, id int64) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, doctorKey(id)).Err(); err != nil {
		return fmt.Errorf("catalog: invalidate doctor: %w", err)
	}
	return nil
}

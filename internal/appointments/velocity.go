package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/echannel-booking/pkg/logging"
)

// VelocityConfig bounds how many bookings one patient phone may hold per
// window.
type VelocityConfig struct {
	MaxBookingsPerPhone int
	Window              time.Duration
	Enabled             bool
}

// DefaultVelocityConfig allows 5 bookings per phone per day.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxBookingsPerPhone: 5,
		Window:              24 * time.Hour,
		Enabled:             true,
	}
}

// VelocityGuard stops one phone number from hoarding slots. Counters live in
// Redis; when Redis is unavailable the guard fails open.
type VelocityGuard struct {
	redis  *redis.Client
	config VelocityConfig
	logger *logging.Logger
}

func NewVelocityGuard(client *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityGuard {
	if logger == nil {
		logger = logging.Default()
	}
	if config.Window <= 0 {
		config.Window = 24 * time.Hour
	}
	return &VelocityGuard{redis: client, config: config, logger: logger}
}

func velocityKey(phone string) string {
	return fmt.Sprintf("velocity:booking:%s", phone)
}

// AllowBooking reports whether phone is still under its limit of committed
// bookings for the current window. It does not count the attempt; rejected
// or failed bookings never use up the quota.
func (v *VelocityGuard) AllowBooking(ctx context.Context, phone string) (bool, error) {
	if v == nil || v.redis == nil || !v.config.Enabled {
		return true, nil
	}
	ctx, span := appointmentsTracer.Start(ctx, "appointments.velocity_check")
	defer span.End()

	count, err := v.redis.Get(ctx, velocityKey(phone)).Int64()
	if errors.Is(err, redis.Nil) {
		count, err = 0, nil
	}
	if err != nil {
		v.logger.Error("velocity check failed", "error", err)
		return true, nil
	}

	allowed := int(count) < v.config.MaxBookingsPerPhone
	span.SetAttributes(
		attribute.Int64("velocity.count", count),
		attribute.Bool("velocity.exceeded", !allowed),
	)
	if !allowed {
		v.logger.Warn("booking velocity exceeded", "count", count, "max", v.config.MaxBookingsPerPhone)
	}
	return allowed, nil
}

// RecordBooking counts one committed booking for phone. The window starts
// with the first booking counted.
func (v *VelocityGuard) RecordBooking(ctx context.Context, phone string) error {
	if v == nil || v.redis == nil || !v.config.Enabled {
		return nil
	}
	key := velocityKey(phone)
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("appointments: record velocity: %w", err)
	}
	if count == 1 {
		if err := v.redis.Expire(ctx, key, v.config.Window).Err(); err != nil {
			v.logger.Warn("velocity expiry not set", "error", err)
		}
	}
	return nil
}

// Reset clears the counter for phone (admin use).
func (v *VelocityGuard) Reset(ctx context.Context, phone string) error {
	if v == nil || v.redis == nil {
		return nil
	}
	if err := v.redis.Del(ctx, velocityKey(phone)).Err(); err != nil {
		return fmt.Errorf("appointments: reset velocity: %w", err)
	}
	return nil
}

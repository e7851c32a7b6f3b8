package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/sse"
)

// SSEBus carries client events between processes. Chat streaming happens in
// the API process, but renders and image optimization finish in the Temporal
// worker; the worker publishes those events here and each API process
// forwards them into its local hub.
type SSEBus interface {
	Publish(ctx context.Context, msg sse.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error
	Close() error
}

const busSchemaVersion = 1

// busEnvelope versions the wire format so an older API process skips payloads
// from a newer worker instead of forwarding garbage, and timestamps them so
// events that sat in redis through an outage are dropped rather than replayed
// into a live stream.
type busEnvelope struct {
	V       int            `json:"v"`
	SentAt  time.Time      `json:"sent_at"`
	Message sse.SSEMessage `json:"message"`
}

type redisSSEBus struct {
	log    *logger.Logger
	rdb    *redis.Client
	prefix string
	maxAge time.Duration
}

func NewRedisSSEBus(log *logger.Logger) (SSEBus, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(os.Getenv("SSE_BUS_PREFIX"))
	if prefix == "" {
		prefix = "nestplan:events"
	}
	maxAge := 60 * time.Second
	if raw := strings.TrimSpace(os.Getenv("SSE_BUS_MAX_AGE_SECONDS")); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
			maxAge = time.Duration(secs) * time.Second
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisSSEBus{
		log:    log.With("service", "RedisSSEBus"),
		rdb:    rdb,
		prefix: prefix,
		maxAge: maxAge,
	}, nil
}

// eventFamily splits traffic onto per-family redis channels so job events can
// be inspected or muted without touching the chat token stream.
func eventFamily(ev sse.SSEEvent) string {
	switch ev {
	case sse.SSEEventJobUpdated, sse.SSEEventRenderReady:
		return "jobs"
	default:
		return "chat"
	}
}

func (b *redisSSEBus) Publish(ctx context.Context, msg sse.SSEMessage) error {
	if strings.TrimSpace(msg.Channel) == "" {
		return fmt.Errorf("sse bus publish: message has no client channel")
	}
	raw, err := json.Marshal(busEnvelope{
		V:       busSchemaVersion,
		SentAt:  time.Now().UTC(),
		Message: msg,
	})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.prefix+":"+eventFamily(msg.Event), raw).Err()
}

func decodeBusEnvelope(payload []byte) (busEnvelope, error) {
	var env busEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return busEnvelope{}, err
	}
	if env.V != busSchemaVersion {
		return busEnvelope{}, fmt.Errorf("bus schema version %d not supported", env.V)
	}
	return env, nil
}

// staleBusEnvelope reports whether the event is too old to forward. A zero
// maxAge disables the cutoff; an envelope without a timestamp is kept.
func staleBusEnvelope(env busEnvelope, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 || env.SentAt.IsZero() {
		return false
	}
	return now.Sub(env.SentAt) > maxAge
}

func (b *redisSSEBus) StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error {
	sub := b.rdb.PSubscribe(ctx, b.prefix+":*")

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				env, err := decodeBusEnvelope([]byte(m.Payload))
				if err != nil {
					b.log.Warn("Dropping bus payload", "bus_channel", m.Channel, "error", err)
					continue
				}
				if staleBusEnvelope(env, b.maxAge, time.Now()) {
					b.log.Debug("Dropping stale bus event", "event", env.Message.Event, "sent_at", env.SentAt)
					continue
				}
				onMsg(env.Message)
			}
		}
	}()

	return nil
}

func (b *redisSSEBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// Package audit delivers core audit events to external storage. Persisting
// and querying the audit log happens elsewhere.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"procurement/internal/core"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// QueueKey is the Redis list audit events are pushed onto.
const QueueKey = "audit:events"

const (
	pushTimeout = 2 * time.Second
	queueSize   = 256
)

// NewRedis creates and validates a go-redis client connection.
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// RedisSink pushes JSON-encoded events onto a Redis list for an external
// consumer. Emit only enqueues; a single worker does the LPush. Events are
// dropped with a log line when the queue is full or the push fails.
type RedisSink struct {
	rdb  *redis.Client
	key  string
	jobs chan []byte
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRedisSink starts the push worker. Call Close to flush it.
func NewRedisSink(rdb *redis.Client) *RedisSink {
	s := &RedisSink{
		rdb:  rdb,
		key:  QueueKey,
		jobs: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *RedisSink) Emit(_ context.Context, event core.AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("action", event.Action).Msg("audit: failed to marshal event")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		log.Warn().Str("action", event.Action).Str("record_id", event.RecordID).Msg("audit: sink closed, event dropped")
		return
	}
	select {
	case s.jobs <- data:
	default:
		log.Warn().Str("action", event.Action).Str("record_id", event.RecordID).Msg("audit: queue full, event dropped")
	}
}

func (s *RedisSink) run() {
	defer close(s.done)
	for data := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := s.rdb.LPush(ctx, s.key, data).Err()
		cancel()
		if err != nil {
			log.Error().Err(err).Int("bytes", len(data)).Msg("audit: failed to push event")
		}
	}
}

// Close stops accepting events and waits for queued ones to be pushed.
// It does not close the Redis client.
func (s *RedisSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()
	<-s.done
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink logs to the given logger. A nil logger uses the global one.
func NewLogSink(logger *zerolog.Logger) *LogSink {
	if logger == nil {
		return &LogSink{logger: log.Logger}
	}
	return &LogSink{logger: *logger}
}

func (s *LogSink) Emit(_ context.Context, event core.AuditEvent) {
	s.logger.Info().
		Str("audit_id", event.ID.String()).
		Str("action", event.Action).
		Str("table", event.Table).
		Str("record_id", event.RecordID).
		Int("actor_id", event.ActorID).
		Time("at", event.Timestamp).
		Interface("details", event.Details).
		Msg("audit")
}

// Open returns a RedisSink when redisURL is set and a LogSink otherwise.
// The returned close function flushes pending events and releases the Redis
// client.
func Open(ctx context.Context, redisURL string) (core.AuditSink, func(), error) {
	if redisURL == "" {
		return NewLogSink(nil), func() {}, nil
	}
	rdb, err := NewRedis(ctx, redisURL)
	if err != nil {
		return nil, nil, err
	}
	sink := NewRedisSink(rdb)
	return sink, func() {
		sink.Close()
		_ = rdb.Close()
	}, nil
}

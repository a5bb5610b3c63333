package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"procurement/internal/audit"
	"procurement/internal/core"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSink_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	sink := audit.NewLogSink(&logger)

	ev := core.NewAuditEvent(core.AuditDocumentCreated, "documents", "17",
		core.Actor{UserID: 4, Email: "buyer@example.com"},
		map[string]any{"type": "PURCHASE_ORDER"})
	sink.Emit(context.Background(), ev)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["message"])
	assert.Equal(t, core.AuditDocumentCreated, line["action"])
	assert.Equal(t, "documents", line["table"])
	assert.Equal(t, "17", line["record_id"])
	assert.EqualValues(t, 4, line["actor_id"])
	assert.Equal(t, ev.ID.String(), line["audit_id"])
}

func TestRedisSink_EmitDoesNotWaitForRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	sink := audit.NewRedisSink(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	for i := 0; i < 3; i++ {
		sink.Emit(ctx, core.NewAuditEvent(core.AuditStatusChanged, "documents", "1", core.Actor{}, nil))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "Emit must only enqueue")

	closed := make(chan struct{})
	go func() {
		sink.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not drain against an unreachable Redis")
	}

	// Emit after Close is dropped, not a panic.
	sink.Emit(context.Background(), core.NewAuditEvent(core.AuditStatusChanged, "documents", "2", core.Actor{}, nil))
	sink.Close()
}

func TestCoreSinkInterface(t *testing.T) {
	var _ core.AuditSink = (*audit.RedisSink)(nil)
	var _ core.AuditSink = (*audit.LogSink)(nil)
}

func TestOpen(t *testing.T) {
	sink, closeFn, err := audit.Open(context.Background(), "")
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &audit.LogSink{}, sink)

	_, _, err = audit.Open(context.Background(), "not a redis url")
	assert.Error(t, err)
}

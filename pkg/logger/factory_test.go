package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teneolabs/teneo-go/pkg/logger"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json format by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf))
		log.Info("hello")

		rec := decodeRecord(t, &buf)
		assert.Equal(t, "hello", rec["msg"])
		assert.Equal(t, "INFO", rec["level"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatText))
		log.Info("hello")

		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			logger.New(logger.WithFormat(logger.Format("yaml")))
		})
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		assert.Zero(t, buf.Len())

		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("static attributes attach to every record", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithAttr(logger.Component("transport")),
		)
		log.Info("connected")

		rec := decodeRecord(t, &buf)
		assert.Equal(t, "transport", rec["component"])
	})

	t.Run("context extractor injects attributes", func(t *testing.T) {
		t.Parallel()

		type ctxKey struct{}
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithContextValue("request_id", ctxKey{}),
		)

		ctx := context.WithValue(context.Background(), ctxKey{}, "req-42")
		log.InfoContext(ctx, "sent")

		rec := decodeRecord(t, &buf)
		assert.Equal(t, "req-42", rec["request_id"])
	})

	t.Run("extractor skips missing values", func(t *testing.T) {
		t.Parallel()

		type ctxKey struct{}
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithContextValue("request_id", ctxKey{}),
		)

		log.InfoContext(context.Background(), "sent")

		rec := decodeRecord(t, &buf)
		_, present := rec["request_id"]
		assert.False(t, present)
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for tag, want := range cases {
		assert.Equal(t, want, logger.ParseLevel(tag), "tag %q", tag)
	}
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	t.Run("error attr", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, slog.Attr{}, logger.Error(nil))
		attr := logger.Error(assert.AnError)
		assert.Equal(t, "error", attr.Key)
	})

	t.Run("empty ids collapse to empty attrs", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, slog.Attr{}, logger.MessageID(""))
		assert.Equal(t, slog.Attr{}, logger.RequestID(""))
		assert.Equal(t, slog.Attr{}, logger.TaskID(""))
	})

	t.Run("domain attrs use stable keys", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "room", logger.Room("r-1").Key)
		assert.Equal(t, "agent_id", logger.AgentID("a-1").Key)
		assert.Equal(t, "attempt", logger.Attempt(3).Key)
		assert.Equal(t, "message_type", logger.MessageType("chat").Key)
	})
}

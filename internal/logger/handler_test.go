package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestContextHandlerSurfacesCorrelation(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newContextHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithRID(context.Background(), "7:11:42")
	ctx = WithUpdateMeta(ctx, 7, 42, 11)
	ctx = WithHandler(ctx, "start")

	log.InfoContext(ctx, "hello")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "7:11:42", rec["rid"])
	assert.Equal(t, float64(7), rec["update_id"])
	assert.Equal(t, float64(42), rec["user_id"])
	assert.Equal(t, float64(11), rec["chat_id"])
	assert.Equal(t, "start", rec["handler"])
}

func TestContextHandlerPlainContext(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newContextHandler(slog.NewJSONHandler(&buf, nil)))

	log.InfoContext(context.Background(), "hello")

	rec := decodeLine(t, &buf)
	assert.NotContains(t, rec, "rid")
	assert.NotContains(t, rec, "update_id")
	assert.NotContains(t, rec, "handler")
}

func TestContextHandlerKeepsExplicitAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newContextHandler(slog.NewJSONHandler(&buf, nil))).With("component", "tg")

	ctx := WithRID(context.Background(), "1:2:3")
	log.InfoContext(ctx, "hello", slog.String("event", "test"))

	rec := decodeLine(t, &buf)
	assert.Equal(t, "tg", rec["component"])
	assert.Equal(t, "test", rec["event"])
	assert.Equal(t, "1:2:3", rec["rid"])
}

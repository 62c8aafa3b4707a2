package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/JeevanLal1/ProChat/pkg/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureCtx() (context.Context, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	return log.WithLogger(context.Background(), logger), &buf
}

func TestLogTarget_WritesAuditFields(t *testing.T) {
	ctx, buf := captureCtx()

	LogTarget(ctx, ActionJoinRoom, "alice", "R1", "joined room")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, log.LogTypeAudit, entry[log.FieldLogType])
	assert.Equal(t, ActionJoinRoom, entry[FieldAction])
	assert.Equal(t, "alice", entry[log.FieldUserID])
	assert.Equal(t, "R1", entry[FieldTargetID])
	assert.Equal(t, "info", entry["level"])
}

func TestLogFailure_IsWarn(t *testing.T) {
	ctx, buf := captureCtx()

	LogFailure(ctx, ActionSendFailed, "alice", "bob", errors.New("store down"), "send failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "store down", entry[FieldDetail])
}

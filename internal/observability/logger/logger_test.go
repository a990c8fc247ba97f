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

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

// TestPurpose: Validates that denied decisions are logged at WARN with the tenancy attributes.
// Scope: Unit Test
// Security: Observability of authorization denials
// Expected: JSON line with level WARN, actor kind, organization_id, token_id, action, resource and reason.
// Test Case ID: LOG-01
func TestAuditLogger_DeniedAtWarn(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", ServiceName: "qaguard", Output: &buf, DisableOTel: true})

	NewAuditLogger(l).Log(context.Background(), AuditEvent{
		EventType:      "authz_decision",
		ActorKind:      "token",
		UserID:         "user-1",
		TokenID:        "tok-1",
		OrganizationID: "org-1",
		Action:         "delete",
		Resource:       "testCase",
		Result:         "denied",
		Reason:         "permission",
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "audit", line["component"])
	assert.Equal(t, "org-1", line["organization_id"])
	assert.Equal(t, "tok-1", line["token_id"])
	assert.Equal(t, "permission", line["reason"])
	assert.Equal(t, "token", line["actor_kind"])
	assert.Equal(t, "delete", line["action"])
	assert.Equal(t, "testCase", line["resource"])
	assert.Equal(t, "qaguard", line["service"])
}

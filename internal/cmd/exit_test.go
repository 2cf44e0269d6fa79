package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errwrap "github.com/callgate/callgate/internal/errors"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want foundry.ExitCode
	}{
		{"plain error", errors.New("boom"), foundry.ExitFailure},
		{"config", errwrap.WrapConfigInvalid(context.Background(), errors.New("bad yaml"), "config load failed"), foundry.ExitConfigInvalid},
		{"wrapped config", fmt.Errorf("serve: %w", errwrap.NewConfigInvalidError("store.backend unknown")), foundry.ExitConfigInvalid},
		{"store down", errwrap.NewExternalServiceError("redis unreachable"), foundry.ExitExternalServiceUnavailable},
		{"unavailable", errwrap.NewServiceUnavailableError("telemetry disabled"), foundry.ExitExternalServiceUnavailable},
		{"bad argument", errwrap.NewInvalidInputError("not an E.164 number"), foundry.ExitInvalidArgument},
		{"internal", errwrap.NewInternalError("server error"), foundry.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestWriteBuildInfo(t *testing.T) {
	prev := versionInfo
	t.Cleanup(func() { versionInfo = prev })
	SetVersionInfo("1.2.3", "abc123", "2026-10-01")

	t.Run("Basic", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeBuildInfo(&out, currentBuildInfo(false), false))
		assert.Equal(t, serviceName()+" 1.2.3\n", out.String())
	})

	t.Run("Extended JSON", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeBuildInfo(&out, currentBuildInfo(true), true))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.Equal(t, "1.2.3", decoded["version"])
		assert.Equal(t, "abc123", decoded["commit"])
		assert.NotEmpty(t, decoded["go"])
		assert.NotEmpty(t, decoded["service"])
	})
}

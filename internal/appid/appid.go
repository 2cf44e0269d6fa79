// Package appid resolves the callgate application identity (binary name,
// environment prefix, config name).
package appid

import (
	"context"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/callgate/callgate/internal/assets/appidentity"
)

const (
	// DefaultBinaryName is used when no identity document can be loaded.
	DefaultBinaryName = "callgate"
	// DefaultEnvPrefix is used when no identity document can be loaded.
	DefaultEnvPrefix = "CALLGATE_"
)

func init() {
	// Explicit identity overrides (FULMEN_APP_IDENTITY_PATH) stay authoritative;
	// the embedded document only covers standalone binaries.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Get returns the loaded application identity.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// EnvPrefix returns the identity env prefix with a trailing underscore,
// falling back to DefaultEnvPrefix.
func EnvPrefix(ctx context.Context) string {
	identity, err := Get(ctx)
	if err != nil || identity == nil || strings.TrimSpace(identity.EnvPrefix) == "" {
		return DefaultEnvPrefix
	}
	prefix := strings.TrimSpace(identity.EnvPrefix)
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// BinaryName returns the identity binary name, falling back to
// DefaultBinaryName.
func BinaryName(ctx context.Context) string {
	identity, err := Get(ctx)
	if err != nil || identity == nil || strings.TrimSpace(identity.BinaryName) == "" {
		return DefaultBinaryName
	}
	return identity.BinaryName
}

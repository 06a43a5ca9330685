package version_test

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/taskmaster/internal/version"
)

type stubBuildInfoProvider struct {
	info      *debug.BuildInfo
	available bool
}

func (provider stubBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	if !provider.available {
		return nil, false
	}
	return provider.info, true
}

func TestVersionUsesBuildInfoWhenAvailable(t *testing.T) {
	provider := stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, available: true}
	detector := version.NewDetector(version.Dependencies{BuildInfoProvider: provider})

	versionString := detector.Version()
	require.Equal(t, "v1.2.3", versionString)
}

func TestVersionIgnoresDevelBuildInfoVersion(t *testing.T) {
	provider := stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "devel"}}, available: true}
	detector := version.NewDetector(version.Dependencies{BuildInfoProvider: provider})

	versionString := detector.Version()
	require.Equal(t, "unknown", versionString)
}

func TestVersionReturnsUnknownWhenBuildInfoUnavailable(t *testing.T) {
	detector := version.NewDetector(version.Dependencies{BuildInfoProvider: stubBuildInfoProvider{}})

	versionString := detector.Version()
	require.Equal(t, "unknown", versionString)
}

func TestDetectReturnsVersionWithDefaults(t *testing.T) {
	provider := stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "v0.4.0"}}, available: true}
	versionString := version.Detect(version.Dependencies{BuildInfoProvider: provider})
	require.Equal(t, "v0.4.0", versionString)
}

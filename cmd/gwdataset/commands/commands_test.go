package commands

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubcommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"index", "build", "features", "predict", "validate"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, buildCmd.Flags().Lookup("force"))
	assert.Nil(t, predictCmd.Flags().Lookup("force"))
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	season, dataRoot, outputURL, logLevel = "2024-2025", "/srv/fpl", "gs://bucket/out", "debug"
	t.Cleanup(func() { season, dataRoot, outputURL, logLevel = "", "", "", "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "2024-2025", cfg.Source.Season)
	assert.Equal(t, "/srv/fpl", cfg.Source.Root)
	assert.Equal(t, "gs://bucket/out", cfg.Output.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

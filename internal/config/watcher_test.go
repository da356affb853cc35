package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/config"
)

func TestWatchRejectsAPathlessConfig(t *testing.T) {
	_, err := config.Watch(config.Default())
	assert.Error(t, err)
}

func TestWatchStartsAndStopsCleanlyAgainstARealFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.ini")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	w, err := config.Watch(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, w.Close()) }()

	require.NoError(t, cfg.SaveInPlace())
}

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YAtOff/s3rsync/internal/config"
)

func TestNewConfigCmd_HasShowSubcommand(t *testing.T) {
	cmd := newConfigCmd()

	found := false

	for _, sub := range cmd.Commands() {
		if sub.Name() == "show" {
			found = true
		}
	}

	assert.True(t, found)
}

func TestRunConfigShow_WritesEffectiveConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StorageBucket = "storage-bucket"
	cfg.InternalBucket = "internal-bucket"

	cc := &CLIContext{Cfg: cfg, Logger: testLogger(t)}

	cmd := newConfigShowCmd()
	ctx := context.WithValue(context.Background(), cliContextKey{}, cc)
	cmd.SetContext(ctx)

	err := runConfigShow(cmd, nil)
	require.NoError(t, err)
}

func TestRunConfigShow_JSON(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StorageBucket = "storage-bucket"
	cfg.InternalBucket = "internal-bucket"

	cc := &CLIContext{Cfg: cfg, Logger: testLogger(t), JSON: true}

	cmd := newConfigShowCmd()
	ctx := context.WithValue(context.Background(), cliContextKey{}, cc)
	cmd.SetContext(ctx)

	err := runConfigShow(cmd, nil)
	require.NoError(t, err)
}

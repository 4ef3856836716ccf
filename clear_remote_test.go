package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClearRemoteCmd_Structure(t *testing.T) {
	cmd := newClearRemoteCmd()
	assert.Equal(t, "clear-remote", cmd.Name())
	assert.NotNil(t, cmd.RunE)
}

func TestNewClearRemoteCmd_RequiresPrefix(t *testing.T) {
	cmd := newClearRemoteCmd()
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix")
}

func TestNewClearRemoteCmd_TakesNoPositionalArgs(t *testing.T) {
	cmd := newClearRemoteCmd()

	// clear-remote is the one command with no root-folder argument — it
	// never touches local state.
	assert.Nil(t, cmd.Args)
}

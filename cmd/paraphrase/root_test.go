package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdRequiresInputAndOutput(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--input", "in.csv"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output")
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-i", "a.csv", "-o", "b.csv", "--provider", "openai", "--max-retries", "3"}))

	provider, err := cmd.Flags().GetString("provider")
	require.NoError(t, err)
	assert.Equal(t, "openai", provider)

	retries, err := cmd.Flags().GetInt("max-retries")
	require.NoError(t, err)
	assert.Equal(t, 3, retries)

	configFile, err := cmd.Flags().GetString("config")
	require.NoError(t, err)
	assert.Equal(t, "./config/config.yml", configFile)
}

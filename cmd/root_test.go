package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"crawl", "index", "market", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "insider-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentPreRunE)
}

func TestIndexCommand_HasDownload(t *testing.T) {
	var found bool
	for _, c := range indexCmd.Commands() {
		if c.Name() == "download" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, "indexes", indexDownloadCmd.Flags().Lookup("dir").DefValue)
}

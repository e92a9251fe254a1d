package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jurisprudence-archiver/internal/app"
	"github.com/JakeFAU/jurisprudence-archiver/internal/config"
)

func TestRootCommandHasStages(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"scrape", "download", "clean", "run"} {
		assert.True(t, names[want], want)
	}

	scrape, _, err := root.Find([]string{"scrape"})
	require.NoError(t, err)
	for _, flag := range []string{"from-year", "to-year", "month"} {
		assert.NotNil(t, scrape.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestResolveAppMissing(t *testing.T) {
	_, err := resolveApp(context.Background())
	assert.Error(t, err)
}

func TestAppFactoryErrorAborts(t *testing.T) {
	orig := newApp
	t.Cleanup(func() { newApp = orig })
	newApp = func(context.Context, config.Config) (*app.App, error) {
		return nil, errors.New("boom")
	}

	root := newRootCmd()
	root.SetArgs([]string{"clean"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCleanCommandOnEmptyTree(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARCHIVER_PATHS_DETAILED", filepath.Join(dir, "detailed"))
	t.Setenv("ARCHIVER_PATHS_DOWNLOADS", filepath.Join(dir, "downloads"))
	t.Setenv("ARCHIVER_PATHS_CLEANED", filepath.Join(dir, "cleaned"))
	t.Setenv("ARCHIVER_LOGGING_DEVELOPMENT", "false")
	t.Setenv("ARCHIVER_LOGGING_LEVEL", "error")

	root := newRootCmd()
	root.SetArgs([]string{"clean"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.NoFileExists(t, filepath.Join(dir, "cleaned", "untitled_log.txt"))
}

func TestScrapeRejectsUnknownMonth(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARCHIVER_PATHS_DETAILED", filepath.Join(dir, "detailed"))
	t.Setenv("ARCHIVER_PATHS_DOWNLOADS", filepath.Join(dir, "downloads"))
	t.Setenv("ARCHIVER_PATHS_CLEANED", filepath.Join(dir, "cleaned"))
	t.Setenv("ARCHIVER_LOGGING_LEVEL", "error")

	root := newRootCmd()
	root.SetArgs([]string{"scrape", "--from-year", "2000", "--to-year", "2000", "--month", "Smarch"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve months")
}

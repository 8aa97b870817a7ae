package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tmlineage/internal/cli/config"
	"github.com/leapstack-labs/tmlineage/internal/cli/output"
	"github.com/leapstack-labs/tmlineage/internal/cli/testutil"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cmd := NewRootCmd()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCmd_Help(t *testing.T) {
	out, _, err := run(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"convert", "export", "inspect", "generations", "list", "version", "completion"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCmd_Version(t *testing.T) {
	t.Chdir(t.TempDir())

	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tmlineage v"+Version)
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()
	for _, flag := range []string{"config", "store", "store-path", "log-level", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCmd_ConvertThenList(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := testutil.WriteDocument(t, "cells.xml", testutil.SampleDocument)
	db := filepath.Join(dir, "lineage.db")

	out, _, err := run(t, "convert", doc, "--store", "sqlite", "--store-path", db, "-o", "markdown")
	require.NoError(t, err)
	testutil.AssertNoANSI(t, out)
	assert.Contains(t, out, "cells_mother, cells_Track_1")
	assert.FileExists(t, db)

	out, _, err = run(t, "list", "--store=sqlite", "--store-path", db, "-o", "json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "["))
	assert.Contains(t, out, `"name": "cells_mother"`)
}

func TestRootCmd_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte("store: sqlite\nstore_path: from-file.db\n"), 0o600))
	doc := testutil.WriteDocument(t, "cells.xml", testutil.SampleDocument)

	_, _, err := run(t, "--config", "custom.yaml", "convert", doc)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "from-file.db"))
}

func TestRootCmd_VerboseLogsToStderr(t *testing.T) {
	t.Chdir(t.TempDir())
	doc := testutil.WriteDocument(t, "cells.xml", testutil.SampleDocument)

	_, errOut, err := run(t, "inspect", doc, "-v", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, errOut, "level=DEBUG")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := run(t, "list", "--store", "s3")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRootCmd_Completion(t *testing.T) {
	out, _, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "tmlineage")

	_, _, err = run(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, config.Defaults(), GetConfig(ctx))
	assert.NotNil(t, GetRenderer(ctx))

	cfg := &config.Config{Store: "sqlite"}
	ctx = context.WithValue(ctx, configKey{}, cfg)
	assert.Same(t, cfg, GetConfig(ctx))

	r := output.NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, false, output.ModeJSON)
	ctx = context.WithValue(ctx, rendererKey{}, r)
	assert.Same(t, r, GetRenderer(ctx))
}

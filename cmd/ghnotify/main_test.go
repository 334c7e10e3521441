package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ghnotify/internal/apperror"
	"github.com/sakif/ghnotify/internal/config"
	"github.com/sakif/ghnotify/internal/logging"
	"github.com/sakif/ghnotify/internal/model"
	"github.com/sakif/ghnotify/internal/repository/sqlite"
)

// cli runs commands against one shared in-memory store.
type cli struct {
	t      *testing.T
	db     *sqlite.DB
	config string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv(config.EnvLogLevel, "error")
	db := sqlite.New(":memory:", logging.Discard())
	t.Cleanup(func() { db.Close() })
	return &cli{t: t, db: db, config: filepath.Join(t.TempDir(), "config.yaml")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	a := &app{open: func(*slog.Logger) *sqlite.DB { return c.db }}
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", c.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestDevCommands(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("dev", "add", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "watching alice")

	_, err = c.run("dev", "add", "alice")
	assert.ErrorIs(t, err, apperror.ErrInsert)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	out, err = c.run("dev", "set", "alice", "ev_9", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "ev_9")

	out, err = c.run("unread")
	require.NoError(t, err)
	assert.Contains(t, out, "total: 4")

	out, err = c.run("dev", "mark", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "ev_9")

	out, err = c.run("dev", "ls", "--json")
	require.NoError(t, err)
	var recs []model.DevWatch
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Equal(t, []model.DevWatch{{Login: "alice", LastReadID: "ev_9", UnreadCount: 0}}, recs)

	_, err = c.run("dev", "rm", "alice")
	require.NoError(t, err)

	_, err = c.run("dev", "show", "alice")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = c.run("dev", "rm", "alice")
	assert.ErrorIs(t, err, apperror.ErrDelete)
}

func TestRepoCommands(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("repo", "add", "octo/repo")
	require.NoError(t, err)

	_, err = c.run("repo", "add", "not-a-repo")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = c.run("repo", "set", "octo/repo", "abc", "x")
	assert.Error(t, err)

	out, err := c.run("repo", "show", "octo/repo")
	require.NoError(t, err)
	assert.Contains(t, out, "octo/repo")
	assert.Contains(t, out, "-")
}

func TestSchemaCommand(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("schema")
	require.NoError(t, err)
	assert.Contains(t, out, ":memory:")
	assert.Contains(t, out, "schema: ok")
}

func TestStoreUnavailable(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, c.db.Close())

	_, err := c.run("dev", "ls")
	assert.ErrorIs(t, err, apperror.ErrConnection)
}

func TestServeRejectsNonLoopback(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("serve", "--listen", "0.0.0.0:7878")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, c.config)

	cfg, err := config.LoadFile(c.config)
	require.NoError(t, err)
	assert.Equal(t, config.Version, cfg.ConfigVersion)
	assert.Equal(t, config.Defaults().API, cfg.API)

	_, err = c.run("config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = c.run("config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigInit_RewritesBrokenFile(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(c.config, []byte("logging:\n  levle: debug\n"), 0o600))

	_, err := c.run("dev", "ls")
	assert.ErrorContains(t, err, "invalid config")

	_, err = c.run("config", "init", "--force")
	require.NoError(t, err)

	_, err = c.run("dev", "ls")
	assert.NoError(t, err)
}

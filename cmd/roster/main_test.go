package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brattlof/roster/internal/app/config"
	"github.com/brattlof/roster/internal/app/router"
	"github.com/brattlof/roster/internal/stubapi"
	"github.com/brattlof/roster/internal/stubapi/sqlite"
	"github.com/brattlof/roster/internal/usersapi"
)

func startStub(t *testing.T) *usersapi.Client {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(stubapi.New(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Router())
	t.Cleanup(srv.Close)

	client, err := usersapi.New(srv.URL)
	require.NoError(t, err)
	return client
}

func TestDeleteUsersConcurrently(t *testing.T) {
	client := startStub(t)
	ctx := context.Background()

	var ids []string
	for _, in := range []usersapi.Input{
		{Name: "Ann", Email: "a@x"},
		{Name: "Bo", Email: "b@x"},
		{Name: "Cy", Email: "c@x"},
	} {
		res, err := client.Create(ctx, in)
		require.NoError(t, err)
		ids = append(ids, res.User.ID)
	}

	cmd := &cobra.Command{}
	cmd.SetContext(ctx)

	deleted, err := deleteUsers(cmd, client, ids, 2)
	require.NoError(t, err)
	assert.Equal(t, ids, deleted)

	users, err := client.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestDeleteUsersReportsFailure(t *testing.T) {
	client := startStub(t)
	ctx := context.Background()

	res, err := client.Create(ctx, usersapi.Input{Name: "Ann", Email: "a@x"})
	require.NoError(t, err)

	cmd := &cobra.Command{}
	cmd.SetContext(ctx)

	deleted, err := deleteUsers(cmd, client, []string{res.User.ID, "missing"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete missing")
	assert.Equal(t, []string{res.User.ID}, deleted)
}

func TestPrintUsers(t *testing.T) {
	var buf bytes.Buffer
	printUsers(&buf, nil)
	assert.Equal(t, "No users\n", buf.String())

	buf.Reset()
	printUsers(&buf, []usersapi.User{{ID: "1", Name: "Ann", Email: "a@x"}})
	assert.Contains(t, buf.String(), "ID  NAME  EMAIL")
	assert.Contains(t, buf.String(), "1   Ann   a@x")
}

func TestPrintRoutesJSON(t *testing.T) {
	routes := []*router.Route{
		{Method: "GET", Pattern: "/users", Name: "users", Type: router.RouteTypePage},
		{Method: "GET", Pattern: "/users/live", Name: "users.live", Type: router.RouteTypeStream},
	}

	var buf bytes.Buffer
	require.NoError(t, printRoutes(&buf, routes, true))

	var out struct {
		Routes []map[string]string `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Routes, 2)
	assert.Equal(t, "stream", out.Routes[1]["type"])
}

func TestSetupLoggerFollowsLevelVar(t *testing.T) {
	var (
		buf   bytes.Buffer
		level slog.LevelVar
	)
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "warn", Format: "json"}}
	logger := setupLogger(cfg, &level, &buf)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	level.Set(slog.LevelDebug)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

package stubapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brattlof/roster/internal/apperrors"
	"github.com/brattlof/roster/internal/stubapi/sqlite"
	"github.com/brattlof/roster/internal/usersapi"
)

func newStub(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "stub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(New(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCreateValidation(t *testing.T) {
	srv := newStub(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{"empty name", `{"name":"","email":"a@x"}`, http.StatusBadRequest, "add user name"},
		{"empty email", `{"name":"Ann","email":""}`, http.StatusBadRequest, "add user email"},
		{"whitespace name", `{"name":"  ","email":"a@x"}`, http.StatusBadRequest, "add user name"},
		{"bad json", `{`, http.StatusBadRequest, "request body is not valid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, http.MethodPost, srv.URL+"/users", tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestCreateAndDuplicate(t *testing.T) {
	srv := newStub(t)

	code, body := do(t, http.MethodPost, srv.URL+"/users", `{"name":"Ann","email":"a@x"}`)
	require.Equal(t, http.StatusCreated, code)
	created := body["data"].(map[string]any)
	assert.Equal(t, "Ann", created["name"])
	assert.NotEmpty(t, created["id"])

	code, body = do(t, http.MethodPost, srv.URL+"/users", `{"name":"Other","email":"a@x"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Email already exists", body["message"])
	assert.Equal(t, created["id"], body["data"].(map[string]any)["id"])
}

func TestListEmptyIsArray(t *testing.T) {
	srv := newStub(t)

	code, body := do(t, http.MethodGet, srv.URL+"/users", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["data"])
}

func TestMissingUser(t *testing.T) {
	srv := newStub(t)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			code, body := do(t, method, srv.URL+"/users/nope", `{"name":"x","email":"y"}`)
			assert.Equal(t, http.StatusNotFound, code)
			assert.Equal(t, "user not found", body["message"])
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newStub(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/users/1", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://elsewhere")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPut, resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestCORSSimpleRequest(t *testing.T) {
	srv := newStub(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/users", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://elsewhere")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

// The UI's client and the stub agree on the contract end to end.
func TestClientAgainstStub(t *testing.T) {
	srv := newStub(t)
	ctx := context.Background()

	client, err := usersapi.New(srv.URL)
	require.NoError(t, err)

	res, err := client.Create(ctx, usersapi.Input{Name: "Ann", Email: "a@x"})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	id := res.User.ID

	_, err = client.Create(ctx, usersapi.Input{Name: "", Email: ""})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindStatus))
	assert.Equal(t, "add user name", apperrors.UserMessage(err))

	_, err = client.Update(ctx, id, usersapi.Input{Name: "Anna", Email: "a@x"})
	require.NoError(t, err)

	got, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, usersapi.User{ID: id, Name: "Anna", Email: "a@x"}, got)

	users, err := client.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = client.Delete(ctx, id, usersapi.Input{Name: "Anna", Email: "a@x"})
	require.NoError(t, err)

	users, err = client.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

package sqlite

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brattlof/roster/internal/apperrors"
	"github.com/brattlof/roster/internal/usersapi"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	n := 0
	clock := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	store.newID = func() string { n++; return "u" + strconv.Itoa(n) }
	store.now = func() time.Time { clock = clock.Add(time.Second); return clock }
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	ctx := context.Background()

	first, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = first.Create(ctx, usersapi.Input{Name: "Ann", Email: "a@x"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(ctx, path)
	require.NoError(t, err)
	defer second.Close()
	users, err := second.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateListInCreationOrder(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	users, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NotNil(t, users)

	for _, in := range []usersapi.Input{{Name: "Ann", Email: "a@x"}, {Name: "Bo", Email: "b@x"}} {
		_, err := store.Create(ctx, in)
		require.NoError(t, err)
	}

	users, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []usersapi.User{
		{ID: "u1", Name: "Ann", Email: "a@x"},
		{ID: "u2", Name: "Bo", Email: "b@x"},
	}, users)
}

func TestCreateDuplicateEmailConflicts(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, usersapi.Input{Name: "Ann", Email: "a@x"})
	require.NoError(t, err)
	_, err = store.Create(ctx, usersapi.Input{Name: "Other", Email: "a@x"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict), "err = %v", err)

	existing, err := store.FindByEmail(ctx, "a@x")
	require.NoError(t, err)
	assert.Equal(t, "Ann", existing.Name)
}

func TestUpdateOnlyNonEmptyFields(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	u, err := store.Create(ctx, usersapi.Input{Name: "Ann", Email: "a@x"})
	require.NoError(t, err)

	got, err := store.Update(ctx, u.ID, usersapi.Input{Name: "Anna"})
	require.NoError(t, err)
	assert.Equal(t, usersapi.User{ID: u.ID, Name: "Anna", Email: "a@x"}, got)

	got, err = store.Update(ctx, u.ID, usersapi.Input{Email: "anna@x"})
	require.NoError(t, err)
	assert.Equal(t, usersapi.User{ID: u.ID, Name: "Anna", Email: "anna@x"}, got)
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "nope", usersapi.Input{Name: "x"})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = store.Delete(ctx, "nope")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = store.Get(ctx, "nope")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestDelete(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	u, err := store.Create(ctx, usersapi.Input{Name: "Ann", Email: "a@x"})
	require.NoError(t, err)

	n, err := store.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	users, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no markers", "CREATE TABLE t (id INT);", "CREATE TABLE t (id INT);"},
		{"up only", "-- +migrate Up\nCREATE TABLE t (id INT);", "\nCREATE TABLE t (id INT);"},
		{"up and down", "-- +migrate Up\nA;\n-- +migrate Down\nB;", "\nA;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, upSection(tt.content))
		})
	}
}

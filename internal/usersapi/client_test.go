package usersapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brattlof/roster/internal/apperrors"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	ContentType string
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Body:        string(body),
			ContentType: r.Header.Get("Content-Type"),
		})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	return c, &reqs
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New("")
	require.Error(t, err)

	_, err = New("ftp://example.com")
	require.Error(t, err)

	c, err := New("http://localhost:3000/api")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/api/users/a%2Fb", c.endpoint([]string{"a/b"}))
}

func TestListDecodesDataEnvelope(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":1,"name":"Ana","email":"ana@x.com"},{"Id":"b2","name":"Bo","email":"bo@x.com"}]}`))
	})

	users, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []User{
		{ID: "1", Name: "Ana", Email: "ana@x.com"},
		{ID: "b2", Name: "Bo", Email: "bo@x.com"},
	}, users)

	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodGet, (*reqs)[0].Method)
	assert.Equal(t, "/users", (*reqs)[0].Path)
}

func TestListTreatsNullDataAsEmpty(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	})

	users, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NotNil(t, users)
}

func TestListMalformedBodyIsDecodeError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":"not a list"`))
	})

	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindDecode), "kind = %s", apperrors.KindOf(err))
}

func TestListCoalescesConcurrentCalls(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(`{"data":[{"id":"1","name":"Ana","email":"ana@x.com"}]}`))
	})

	var wg sync.WaitGroup
	results := make([][]User, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			users, err := c.List(context.Background())
			assert.NoError(t, err)
			results[i] = users
		}(i)
	}

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, users := range results {
		require.Len(t, users, 1)
	}
	results[0][0].Name = "mutated"
	assert.Equal(t, "Ana", results[1][0].Name)
}

func TestListAfterMutationDoesNotJoinEarlierFetch(t *testing.T) {
	var (
		mu     sync.Mutex
		stored []string
		gets   atomic.Int32
	)
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	defer unblock()

	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			row := `{"id":"1","name":"Ana","email":"ana@x.com"}`
			mu.Lock()
			stored = append(stored, row)
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":` + row + `}`))
		case http.MethodGet:
			mu.Lock()
			body := `{"data":[` + strings.Join(stored, ",") + `]}`
			mu.Unlock()
			if gets.Add(1) == 1 {
				<-release
			}
			w.Write([]byte(body))
		}
	})
	ctx := context.Background()

	earlier := make(chan []User, 1)
	go func() {
		users, err := c.List(ctx)
		assert.NoError(t, err)
		earlier <- users
	}()
	require.Eventually(t, func() bool { return gets.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := c.Create(ctx, Input{Name: "Ana", Email: "ana@x.com"})
	require.NoError(t, err)

	users, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1, "list after create must not reuse the earlier request")
	assert.Equal(t, "Ana", users[0].Name)
	assert.Equal(t, int32(2), gets.Load())

	unblock()
	assert.Empty(t, <-earlier)
}

func TestListHonorsCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"data":[]}`))
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.List(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindTransport))
}

func TestCreateSendsEmptyFields(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"9","name":"","email":""}}`))
	})

	res, err := c.Create(context.Background(), Input{})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, "9", res.User.ID)

	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodPost, (*reqs)[0].Method)
	assert.Equal(t, "/users", (*reqs)[0].Path)
	assert.Equal(t, "application/json", (*reqs)[0].ContentType)
	assert.JSONEq(t, `{"name":"","email":""}`, (*reqs)[0].Body)
}

func TestCreateSurfacesAPIMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message field", `{"data":{"Id":"1","name":"Ana","email":"ana@x.com"},"message":"Email already exists"}`, "Email already exists"},
		{"string data", `{"data":"add user name"}`, "add user name"},
		{"insert result", `{"data":{"InsertedID":"64f1"}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			res, err := c.Create(context.Background(), Input{Name: "Ana", Email: "ana@x.com"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Message)
		})
	}
}

func TestNon2xxIsStatusError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "Email already exists"})
	})

	_, err := c.Create(context.Background(), Input{Name: "Ana", Email: "ana@x.com"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindStatus))
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(err))
	assert.Equal(t, "Email already exists", apperrors.UserMessage(err))
}

func TestUpdateAndDeleteTargetUserPath(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"MatchedCount":1}}`))
	})

	_, err := c.Update(context.Background(), "1", Input{Name: "Ana B", Email: "ana@x.com"})
	require.NoError(t, err)
	_, err = c.Delete(context.Background(), "1", Input{Name: "Ana B", Email: "ana@x.com"})
	require.NoError(t, err)

	require.Len(t, *reqs, 2)
	assert.Equal(t, recordedRequest{
		Method: http.MethodPut, Path: "/users/1", Body: `{"name":"Ana B","email":"ana@x.com"}`, ContentType: "application/json",
	}, (*reqs)[0])
	assert.Equal(t, http.MethodDelete, (*reqs)[1].Method)
	assert.Equal(t, "/users/1", (*reqs)[1].Path)
	assert.JSONEq(t, `{"name":"Ana B","email":"ana@x.com"}`, (*reqs)[1].Body)
}

func TestUpdateRequiresID(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := c.Update(context.Background(), " ", Input{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))
	assert.Empty(t, *reqs)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, WithTimeout(time.Second))
	require.NoError(t, err)
	_, err = c.Create(context.Background(), Input{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindTransport))
}

func TestGetDecodesUser(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"_id":"64f1","name":"Ana","email":"ana@x.com"}}`))
	})

	u, err := c.Get(context.Background(), "64f1")
	require.NoError(t, err)
	assert.Equal(t, User{ID: "64f1", Name: "Ana", Email: "ana@x.com"}, u)
	assert.Equal(t, "/users/64f1", (*reqs)[0].Path)
}

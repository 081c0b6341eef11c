package userview

import (
	"context"
	"io"
	"log/slog"
	"strconv"

	"github.com/brattlof/roster/internal/usersapi"
)

type call struct {
	Method string
	ID     string
	Input  usersapi.Input
}

// fakeAPI is an in-memory users API that echoes created records.
type fakeAPI struct {
	users  []usersapi.User
	nextID int
	calls  []call
	lists  int

	listErr   error
	createErr error
	updateErr error
	deleteErr error
	echo      bool
	message   string
}

func newFakeAPI(users ...usersapi.User) *fakeAPI {
	return &fakeAPI{users: users, nextID: len(users) + 1, echo: true}
}

func (f *fakeAPI) List(context.Context) ([]usersapi.User, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]usersapi.User, len(f.users))
	copy(out, f.users)
	return out, nil
}

func (f *fakeAPI) Create(_ context.Context, in usersapi.Input) (usersapi.Result, error) {
	f.calls = append(f.calls, call{Method: "POST", Input: in})
	if f.createErr != nil {
		return usersapi.Result{}, f.createErr
	}
	u := usersapi.User{ID: strconv.Itoa(f.nextID), Name: in.Name, Email: in.Email}
	f.nextID++
	f.users = append(f.users, u)
	res := usersapi.Result{Message: f.message}
	if f.echo {
		res.User = &u
	}
	return res, nil
}

func (f *fakeAPI) Update(_ context.Context, id string, in usersapi.Input) (usersapi.Result, error) {
	f.calls = append(f.calls, call{Method: "PUT", ID: id, Input: in})
	if f.updateErr != nil {
		return usersapi.Result{}, f.updateErr
	}
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].Name = in.Name
			f.users[i].Email = in.Email
		}
	}
	return usersapi.Result{}, nil
}

func (f *fakeAPI) Delete(_ context.Context, id string, in usersapi.Input) (usersapi.Result, error) {
	f.calls = append(f.calls, call{Method: "DELETE", ID: id, Input: in})
	if f.deleteErr != nil {
		return usersapi.Result{}, f.deleteErr
	}
	kept := f.users[:0]
	for _, u := range f.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	f.users = kept
	return usersapi.Result{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

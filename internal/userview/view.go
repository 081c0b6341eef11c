// Package userview holds the state and operations of the users page: the
// scratch form fields, the fetched list, the edit modal and the outcome of
// the last operation.
package userview

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brattlof/roster/internal/apperrors"
	"github.com/brattlof/roster/internal/usersapi"
)

// API is the subset of the users API the view needs.
type API interface {
	List(ctx context.Context) ([]usersapi.User, error)
	Create(ctx context.Context, in usersapi.Input) (usersapi.Result, error)
	Update(ctx context.Context, id string, in usersapi.Input) (usersapi.Result, error)
	Delete(ctx context.Context, id string, in usersapi.Input) (usersapi.Result, error)
}

// RefreshMode selects how the list is brought up to date after a mutation.
type RefreshMode int

const (
	// RefreshRefetch replaces the list with a fresh GET after every mutation.
	RefreshRefetch RefreshMode = iota
	// RefreshPatch edits the fetched list in place keyed by user id.
	RefreshPatch
)

// ParseRefreshMode maps a config value to a RefreshMode.
func ParseRefreshMode(s string) RefreshMode {
	switch s {
	case "patch":
		return RefreshPatch
	default:
		return RefreshRefetch
	}
}

func (m RefreshMode) String() string {
	if m == RefreshPatch {
		return "patch"
	}
	return "refetch"
}

// ModalState is either closed or editing exactly one user. The zero value is
// closed.
type ModalState struct {
	user *usersapi.User
}

// Closed returns the closed modal state.
func Closed() ModalState { return ModalState{} }

// Editing returns the modal state for editing u.
func Editing(u usersapi.User) ModalState { return ModalState{user: &u} }

// IsOpen reports whether the modal is shown.
func (m ModalState) IsOpen() bool { return m.user != nil }

// User returns the user being edited.
func (m ModalState) User() (usersapi.User, bool) {
	if m.user == nil {
		return usersapi.User{}, false
	}
	return *m.user, true
}

// NoticeLevel is the severity of a Notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeError   NoticeLevel = "error"
)

// Notice is the rendered outcome of the last operation.
type Notice struct {
	Level   NoticeLevel
	Message string
	Kind    apperrors.Kind
}

// View is the state of one users page. It is not safe for concurrent use;
// Sessions serializes access per session.
type View struct {
	Name   string
	Email  string
	List   []usersapi.User
	Modal  ModalState
	Notice *Notice

	api     API
	mode    RefreshMode
	logger  *slog.Logger
	fetches int
}

// Option configures a View.
type Option func(*View)

// WithRefreshMode sets how the list is refreshed after mutations.
func WithRefreshMode(m RefreshMode) Option {
	return func(v *View) { v.mode = m }
}

// WithLogger sets the view logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *View) { v.logger = l }
}

// New returns an empty view backed by api.
func New(api API, opts ...Option) *View {
	v := &View{
		List:   []usersapi.User{},
		api:    api,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Fetches returns how many list fetches the view has issued.
func (v *View) Fetches() int { return v.fetches }

// Mode returns the view's refresh mode.
func (v *View) Mode() RefreshMode { return v.mode }

// SetName updates the scratch name field.
func (v *View) SetName(name string) { v.Name = name }

// SetEmail updates the scratch email field.
func (v *View) SetEmail(email string) { v.Email = email }

// Find returns the listed user with the given id.
func (v *View) Find(id string) (usersapi.User, bool) {
	for _, u := range v.List {
		if u.ID == id {
			return u, true
		}
	}
	return usersapi.User{}, false
}

// OpenModal selects u for editing and copies its fields into the scratch
// fields.
func (v *View) OpenModal(u usersapi.User) {
	v.Modal = Editing(u)
	v.Name = u.Name
	v.Email = u.Email
}

// CloseModal deselects the edited user and clears the scratch fields.
func (v *View) CloseModal() {
	v.Modal = Closed()
	v.Name = ""
	v.Email = ""
}

// Fetch replaces the list with the API's current users. On failure the
// previous list is kept.
func (v *View) Fetch(ctx context.Context) error {
	v.fetches++
	users, err := v.api.List(ctx)
	if err != nil {
		v.fail("list users", err)
		return fmt.Errorf("list users: %w", err)
	}
	v.List = users
	return nil
}

// Create posts the scratch fields as a new user and refreshes the list
// whatever the outcome.
func (v *View) Create(ctx context.Context) error {
	in := v.input()
	res, err := v.api.Create(ctx, in)
	if err != nil {
		v.fail("create user", err)
		if ferr := v.Fetch(ctx); ferr != nil {
			v.logger.Warn("Refresh after failed create failed", "error", ferr)
		}
		return fmt.Errorf("create user: %w", err)
	}

	v.logger.Info("User created", "name", in.Name, "email", in.Email)
	v.succeed("User created", res.Message)

	if v.mode == RefreshPatch && res.User != nil {
		v.List = append(v.List, *res.User)
		return nil
	}
	return v.refetch(ctx)
}

// Update saves the scratch fields onto the user being edited. On success the
// modal closes; on failure it stays open with the current field values.
func (v *View) Update(ctx context.Context) error {
	u, ok := v.Modal.User()
	if !ok {
		err := apperrors.E(apperrors.KindInvalidState, "no user is being edited")
		v.fail("update user", err)
		return err
	}

	in := v.input()
	res, err := v.api.Update(ctx, u.ID, in)
	if err != nil {
		v.fail("update user", err)
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}

	v.logger.Info("User updated", "id", u.ID)
	v.CloseModal()
	v.succeed("User updated", res.Message)

	if v.mode == RefreshPatch {
		updated := usersapi.User{ID: u.ID, Name: in.Name, Email: in.Email}
		if res.User != nil && res.User.ID == u.ID {
			updated = *res.User
		}
		v.replace(updated)
		return nil
	}
	return v.refetch(ctx)
}

// Delete removes the user being edited. Success and failure are handled as
// in Update.
func (v *View) Delete(ctx context.Context) error {
	u, ok := v.Modal.User()
	if !ok {
		err := apperrors.E(apperrors.KindInvalidState, "no user is being edited")
		v.fail("delete user", err)
		return err
	}

	res, err := v.api.Delete(ctx, u.ID, v.input())
	if err != nil {
		v.fail("delete user", err)
		return fmt.Errorf("delete user %s: %w", u.ID, err)
	}

	v.logger.Info("User deleted", "id", u.ID)
	v.CloseModal()
	v.succeed("User deleted", res.Message)

	if v.mode == RefreshPatch {
		v.remove(u.ID)
		return nil
	}
	return v.refetch(ctx)
}

func (v *View) refetch(ctx context.Context) error {
	notice := v.Notice
	if err := v.Fetch(ctx); err != nil {
		return err
	}
	v.Notice = notice
	return nil
}

func (v *View) replace(u usersapi.User) {
	for i := range v.List {
		if v.List[i].ID == u.ID {
			v.List[i] = u
			return
		}
	}
}

func (v *View) remove(id string) {
	kept := v.List[:0]
	for _, u := range v.List {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	v.List = kept
}

func (v *View) input() usersapi.Input {
	return usersapi.Input{Name: v.Name, Email: v.Email}
}

func (v *View) succeed(message, apiMessage string) {
	if apiMessage != "" {
		v.Notice = &Notice{Level: NoticeInfo, Message: apiMessage}
		return
	}
	v.Notice = &Notice{Level: NoticeSuccess, Message: message}
}

func (v *View) fail(op string, err error) {
	kind := apperrors.KindOf(err)
	v.logger.Error("Users operation failed", "op", op, "kind", kind, "error", err)
	v.Notice = &Notice{
		Level:   NoticeError,
		Message: op + ": " + apperrors.UserMessage(err),
		Kind:    kind,
	}
}

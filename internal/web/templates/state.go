// Package templates holds the page components of the web UI. The components
// live in .templ files; the _templ.go files next to them are generated.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ generate

import (
	"net/url"

	"github.com/a-h/templ"
)

// NavItem is one link of the top navigation.
type NavItem struct {
	Label string
	URL   templ.SafeURL
}

// Nav lists the pages of the app, in display order.
var Nav = []NavItem{
	{Label: "Home", URL: "/"},
	{Label: "Users", URL: "/users"},
}

// UserRow is one row of the users table.
type UserRow struct {
	ID    string
	Name  string
	Email string
}

// EditURL is the action that opens the edit modal for the row.
func (r UserRow) EditURL() templ.SafeURL {
	return templ.URL("/users/" + url.PathEscape(r.ID) + "/edit")
}

// Notice is the banner shown above the form.
type Notice struct {
	Level   string
	Message string
}

// UsersPageState is everything the users page renders.
type UsersPageState struct {
	// Name and Email are the shared scratch fields.
	Name    string
	Email   string
	Users   []UserRow
	Editing *UserRow
	Notice  *Notice
	Live    bool
}

// CreateName is the value of the create form's name field. The scratch
// fields belong to the modal while a user is being edited.
func (s UsersPageState) CreateName() string {
	if s.Editing != nil {
		return ""
	}
	return s.Name
}

// CreateEmail is CreateName for the email field.
func (s UsersPageState) CreateEmail() string {
	if s.Editing != nil {
		return ""
	}
	return s.Email
}

package usersapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// User is the record managed by the remote users API. The client holds a
// transient copy only.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Input is the request body of create, update and delete calls. Fields are
// always sent, empty or not.
type Input struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Input returns the user's editable fields.
func (u User) Input() Input {
	return Input{Name: u.Name, Email: u.Email}
}

var idKeys = []string{"id", "_id"}

// UnmarshalJSON accepts the identifier under id, Id, ID or _id, as a string,
// a number or a {"$oid": "..."} object.
func (u *User) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var out User
	for _, key := range idKeys {
		raw, ok := lookup(fields, key)
		if !ok {
			continue
		}
		id, err := decodeID(raw)
		if err != nil {
			return fmt.Errorf("user %s: %w", key, err)
		}
		if id != "" {
			out.ID = id
			break
		}
	}
	if raw, ok := lookup(fields, "name"); ok {
		if err := decodeString(raw, &out.Name); err != nil {
			return fmt.Errorf("user name: %w", err)
		}
	}
	if raw, ok := lookup(fields, "email"); ok {
		if err := decodeString(raw, &out.Email); err != nil {
			return fmt.Errorf("user email: %w", err)
		}
	}

	*u = out
	return nil
}

func lookup(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	if raw, ok := fields[key]; ok {
		return raw, true
	}
	for k, raw := range fields {
		if strings.EqualFold(k, key) {
			return raw, true
		}
	}
	return nil, false
}

func decodeString(raw json.RawMessage, dst *string) error {
	if isNull(raw) {
		*dst = ""
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func decodeID(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var oid struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(raw, &oid); err == nil && oid.OID != "" {
		return oid.OID, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("unsupported identifier %s", string(raw))
	}
	return n.String(), nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/nikolayk812/storefront-state/internal/domain"
)

// AuthResponse is the body of the login and register endpoints:
//
//	{"token": "...", "user": {"id": "..." | 42, "name": "...", "email": "...", "role": "user", ...}}
//
// Some deployments name the id "_id". User fields beyond the known ones end
// up in AuthUser.Extra.
type AuthResponse struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

type AuthUser struct {
	ID    string
	Name  string
	Email string
	Role  string
	Extra map[string]any
}

var authUserKnownFields = []string{"id", "_id", "name", "email", "role"}

func (u *AuthUser) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	id, ok := raw["id"]
	if !ok {
		id = raw["_id"]
	}
	if len(id) > 0 {
		s, err := flexibleID(id)
		if err != nil {
			return err
		}
		u.ID = s
	}

	for field, dst := range map[string]*string{"name": &u.Name, "email": &u.Email, "role": &u.Role} {
		v, ok := raw[field]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("user.%s: %w", field, err)
		}
	}

	for _, k := range authUserKnownFields {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil
	}

	u.Extra = make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("user.%s: %w", k, err)
		}
		u.Extra[k] = val
	}

	return nil
}

// flexibleID accepts an id sent either as a string or as a number.
func flexibleID(raw json.RawMessage) (string, error) {
	if string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("user.id[%s] is neither string nor number", raw)
	}
	return n.String(), nil
}

// Normalize maps the response onto credentials. It is deterministic: defaults
// such as the role or a missing id are left to the session container.
func (r AuthResponse) Normalize() domain.Credentials {
	return domain.Credentials{
		ID:    r.User.ID,
		Name:  strings.TrimSpace(r.User.Name),
		Email: strings.TrimSpace(r.User.Email),
		Role:  domain.Role(strings.ToLower(strings.TrimSpace(r.User.Role))),
		Token: r.Token,
		Extra: maps.Clone(r.User.Extra),
	}
}

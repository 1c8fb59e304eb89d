package domain

import (
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Session is the authenticated user as persisted by the session container.
// Fields the backend sends beyond the known ones are kept in Extra and
// written back at the top level of the JSON object.
type Session struct {
	ID    string
	Name  string
	Email string
	Role  Role
	Token string
	Extra map[string]any
}

// Credentials is a normalized login or register response.
type Credentials struct {
	ID    string
	Name  string
	Email string
	Role  Role
	Token string
	Extra map[string]any
}

// ProfilePatch carries the fields of a profile update; nil fields are left as is.
type ProfilePatch struct {
	Name  *string
	Email *string
	Extra map[string]any
}

var sessionKnownFields = []string{"id", "name", "email", "role", "token"}

func (s Session) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Extra)+len(sessionKnownFields))
	for k, v := range s.Extra {
		m[k] = v
	}
	m["id"] = s.ID
	m["name"] = s.Name
	m["email"] = s.Email
	m["role"] = s.Role
	m["token"] = s.Token

	return json.Marshal(m)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Session{}
	targets := map[string]*string{
		"id":    &out.ID,
		"name":  &out.Name,
		"email": &out.Email,
		"token": &out.Token,
	}
	for field, dst := range targets {
		v, ok := raw[field]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("session field %s: %w", field, err)
		}
	}
	if v, ok := raw["role"]; ok {
		var role string
		if err := json.Unmarshal(v, &role); err != nil {
			return fmt.Errorf("session field role: %w", err)
		}
		out.Role = Role(role)
	}

	for _, field := range sessionKnownFields {
		delete(raw, field)
	}
	if len(raw) > 0 {
		out.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var decoded any
			if err := json.Unmarshal(v, &decoded); err != nil {
				return fmt.Errorf("session field %s: %w", k, err)
			}
			out.Extra[k] = decoded
		}
	}

	*s = out
	return nil
}

package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UserID accepts numeric or string ids on the wire and keeps them as text.
type UserID string

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// User is the signed-in identity as returned by the auth service.
type User struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// UnmarshalJSON also accepts "_id" for services that expose document ids.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    UserID `json:"id"`
		DocID UserID `json:"_id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	if u.ID == "" {
		u.ID = raw.DocID
	}
	u.Name = raw.Name
	u.Email = raw.Email
	return nil
}

// DisplayName prefers the name, then the email's local part.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return string(u.ID)
}

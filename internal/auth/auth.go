// Package auth talks to the external authentication service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/recycle-ai/recycle/internal/backend"
	"github.com/recycle-ai/recycle/internal/session"
)

// Kind separates auth failures that need different user text.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindRejected           Kind = "rejected" // signup refused by the service
	KindNetwork            Kind = "network"
	KindServer             Kind = "server"
)

// Error is returned by every Client call.
type Error struct {
	Kind    Kind
	Op      string
	Message string // service-provided text, if any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("auth %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindInvalidCredentials:
		return "Invalid credentials"
	case KindRejected:
		if e.Message != "" {
			return "Could not register: " + e.Message
		}
		return "Could not register"
	case KindNetwork:
		return "Could not reach the sign-in service. Check your connection."
	default:
		return "The sign-in service is unavailable. Please try again later."
	}
}

// Credentials is the /login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the /signup request body.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the /login response body.
type LoginResponse struct {
	Message string        `json:"message"`
	User    *session.User `json:"user"`
}

// Client calls /login, /signup and /logout on the backend. It shares the
// backend's cookie jar so the session cookie set at login is sent on logout.
type Client struct {
	backend *backend.Client
}

func NewClient(b *backend.Client) *Client {
	return &Client{backend: b}
}

// Login returns the user the service signed in.
func (c *Client) Login(ctx context.Context, cred Credentials) (*LoginResponse, error) {
	if strings.TrimSpace(cred.Email) == "" || cred.Password == "" {
		return nil, &Error{Kind: KindInvalidCredentials, Op: "login", Err: errors.New("email and password are required")}
	}
	var res LoginResponse
	if err := c.backend.PostJSON(ctx, "/login", cred, &res); err != nil {
		return nil, classify("login", err, KindInvalidCredentials)
	}
	if res.User == nil {
		return nil, &Error{Kind: KindServer, Op: "login", Err: errors.New("response has no user")}
	}
	return &res, nil
}

// Signup registers a new account. The service does not sign the user in.
func (c *Client) Signup(ctx context.Context, reg Registration) error {
	if strings.TrimSpace(reg.Name) == "" || strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
		return &Error{Kind: KindRejected, Op: "signup", Err: errors.New("name, email and password are required")}
	}
	if err := c.backend.PostJSON(ctx, "/signup", reg, nil); err != nil {
		return classify("signup", err, KindRejected)
	}
	return nil
}

// Logout ends the session on the service. It implements session.Terminator.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.backend.PostJSON(ctx, "/logout", nil, nil); err != nil {
		return classify("logout", err, KindServer)
	}
	return nil
}

// classify maps a backend error. 4xx responses become clientKind.
func classify(op string, err error, clientKind Kind) error {
	be, ok := backend.AsError(err)
	if !ok {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	switch be.Kind {
	case backend.KindNetwork:
		return &Error{Kind: KindNetwork, Op: op, Err: be}
	case backend.KindStatus:
		if be.Status >= http.StatusBadRequest && be.Status < http.StatusInternalServerError {
			return &Error{Kind: clientKind, Op: op, Message: be.Message, Err: be}
		}
		return &Error{Kind: KindServer, Op: op, Message: be.Message, Err: be}
	default:
		return &Error{Kind: KindServer, Op: op, Err: be}
	}
}

var _ session.Terminator = (*Client)(nil)

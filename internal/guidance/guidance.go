// Package guidance fetches disposal guidance for a predicted label.
package guidance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/recycle-ai/recycle/internal/backend"
)

// Result is the backend's /class-info payload.
type Result struct {
	Category     string        `json:"category"`
	Recyclable   Recyclability `json:"recyclable"`
	Instructions string        `json:"instructions"`
	Tip          string        `json:"tip"`
	Impact       string        `json:"impact"`
}

// ErrorKind separates the three ways a guidance fetch fails.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindServer    ErrorKind = "server"
	KindMalformed ErrorKind = "malformed"
)

// FetchError reports a failed guidance fetch.
type FetchError struct {
	Kind   ErrorKind
	Label  string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Kind == KindServer {
		return fmt.Sprintf("guidance for %q: server returned %d", e.Label, e.Status)
	}
	return fmt.Sprintf("guidance for %q: %s: %v", e.Label, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the user for this failure.
func (e *FetchError) UserMessage() string {
	switch e.Kind {
	case KindNetwork:
		return "Could not reach the guidance service. Check your connection and try again."
	case KindServer:
		if e.Status == 404 {
			return "No disposal guidance is available for this item yet."
		}
		return "The guidance service had a problem answering. Please try again later."
	default:
		return "The guidance service sent an unreadable answer."
	}
}

// Fetcher is what the analyzer needs from this package.
type Fetcher interface {
	Fetch(ctx context.Context, label string) (*Result, error)
}

// Client calls POST /class-info.
type Client struct {
	backend *backend.Client
}

func NewClient(b *backend.Client) *Client {
	return &Client{backend: b}
}

type classInfoRequest struct {
	Pred string `json:"pred"`
}

// Fetch sends label unmodified; the backend looks guidance up by the exact string.
func (c *Client) Fetch(ctx context.Context, label string) (*Result, error) {
	var res Result
	err := c.backend.PostJSON(ctx, "/class-info", classInfoRequest{Pred: label}, &res)
	if err != nil {
		return nil, classify(label, err)
	}
	if strings.TrimSpace(res.Category) == "" {
		return nil, &FetchError{Kind: KindMalformed, Label: label, Err: errors.New("missing category")}
	}
	return &res, nil
}

func classify(label string, err error) error {
	be, ok := backend.AsError(err)
	if !ok {
		return &FetchError{Kind: KindNetwork, Label: label, Err: err}
	}
	switch be.Kind {
	case backend.KindStatus:
		return &FetchError{Kind: KindServer, Label: label, Status: be.Status, Err: be}
	case backend.KindDecode:
		return &FetchError{Kind: KindMalformed, Label: label, Status: be.Status, Err: be}
	default:
		return &FetchError{Kind: KindNetwork, Label: label, Err: be}
	}
}

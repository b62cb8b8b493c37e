// Package pickup submits a pickup request: host the photo, resolve the
// caller's location, then record the request with the backend.
package pickup

import (
	"context"
	"errors"
	"fmt"

	"github.com/recycle-ai/recycle/internal/backend"
)

// Stage names the step a pickup failed at.
type Stage string

const (
	StageHost   Stage = "host"
	StageLocate Stage = "locate"
	StageRecord Stage = "record"
)

// Error reports a failed pickup. HostedURL is set once the image upload has
// succeeded so the caller can retry without uploading again.
type Error struct {
	Stage     Stage
	HostedURL string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pickup %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) UserMessage() string {
	switch {
	case e.Stage == StageHost:
		return "The photo could not be uploaded. Please try again."
	case errors.Is(e.Err, ErrLocationDenied):
		return "Location permission was denied. Allow location access to request a pickup."
	case errors.Is(e.Err, ErrLocationTimeout):
		return "Getting your location took too long. Please try again."
	case e.Stage == StageLocate:
		return "Your location could not be determined."
	default:
		return "The pickup request could not be submitted."
	}
}

// Request is one photo to be picked up.
type Request struct {
	Filename string
	Image    []byte
	// ImageURL skips the upload when a previous attempt already hosted the photo.
	ImageURL string
}

// Receipt is a recorded pickup.
type Receipt struct {
	ImageURL string   `json:"image_url"`
	Position Position `json:"position"`
	Message  string   `json:"message"`
}

type uploadRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Image     string  `json:"image"`
}

type uploadResponse struct {
	Message string `json:"message"`
}

// Flow runs the three pickup steps strictly in order.
type Flow struct {
	host    ImageHost
	locator Locator
	backend *backend.Client
}

func NewFlow(host ImageHost, locator Locator, b *backend.Client) *Flow {
	return &Flow{host: host, locator: locator, backend: b}
}

// Submit hosts the image, then locates, then records. The record call is
// only made when both earlier steps succeeded.
func (f *Flow) Submit(ctx context.Context, req Request) (*Receipt, error) {
	imageURL := req.ImageURL
	if imageURL == "" {
		u, err := f.host.Upload(ctx, req.Filename, req.Image)
		if err != nil {
			return nil, &Error{Stage: StageHost, Err: err}
		}
		imageURL = u
	}

	pos, err := f.locator.Locate(ctx)
	if err != nil {
		return nil, &Error{Stage: StageLocate, HostedURL: imageURL, Err: err}
	}

	var res uploadResponse
	body := uploadRequest{Latitude: pos.Latitude, Longitude: pos.Longitude, Image: imageURL}
	if err := f.backend.PostJSON(ctx, "/upload", body, &res); err != nil {
		return nil, &Error{Stage: StageRecord, HostedURL: imageURL, Err: err}
	}
	return &Receipt{ImageURL: imageURL, Position: pos, Message: res.Message}, nil
}

package pickup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// ImageHost stores an image publicly and returns its URL.
type ImageHost interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

const maxHostResponseBytes = 1 << 20

// Cloudinary performs unsigned uploads with an upload preset.
type Cloudinary struct {
	endpoint string
	preset   string
	client   *http.Client
}

// NewCloudinary builds an uploader for {baseURL}/v1_1/{cloudName}/image/upload.
func NewCloudinary(baseURL, cloudName, preset string, timeout time.Duration, client *http.Client) (*Cloudinary, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.cloudinary.com"
	}
	if strings.TrimSpace(cloudName) == "" {
		return nil, errors.New("image host cloud name is empty")
	}
	if strings.TrimSpace(preset) == "" {
		return nil, errors.New("image host upload preset is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid image host url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Cloudinary{
		endpoint: baseURL + "/v1_1/" + url.PathEscape(cloudName) + "/image/upload",
		preset:   preset,
		client:   client,
	}, nil
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Cloudinary) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("image is empty")
	}
	if filename == "" {
		filename = "upload"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", path.Base(filename))
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := mw.WriteField("upload_preset", c.preset); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxHostResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	var out cloudinaryResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("image host returned %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("image host returned %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode upload response: %w", decodeErr)
	}
	if out.SecureURL == "" {
		return "", errors.New("upload response has no secure_url")
	}
	return out.SecureURL, nil
}

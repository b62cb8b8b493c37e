package pickup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recycle-ai/recycle/internal/backend"
)

type steps struct {
	mu  sync.Mutex
	log []string
}

func (s *steps) add(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, step)
}

func (s *steps) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

type fakeHost struct {
	steps *steps
	url   string
	err   error
}

func (h *fakeHost) Upload(_ context.Context, _ string, _ []byte) (string, error) {
	h.steps.add("host")
	return h.url, h.err
}

func recordingLocator(s *steps, pos Position, err error) Locator {
	return LocatorFunc(func(context.Context) (Position, error) {
		s.add("locate")
		return pos, err
	})
}

func newUploadBackend(t *testing.T, s *steps, status int) (*backend.Client, *uploadRequest) {
	t.Helper()
	got := &uploadRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.add("record")
		_ = json.NewDecoder(r.Body).Decode(got)
		w.WriteHeader(status)
		w.Write([]byte(`{"message":"Pickup scheduled"}`))
	}))
	t.Cleanup(ts.Close)
	c, err := backend.New(ts.URL, 5*time.Second, 1<<20, nil)
	require.NoError(t, err)
	return c, got
}

func TestSubmitRunsStepsInOrder(t *testing.T) {
	s := &steps{}
	b, got := newUploadBackend(t, s, http.StatusOK)
	flow := NewFlow(
		&fakeHost{steps: s, url: "https://res.example/img.jpg"},
		recordingLocator(s, Position{Latitude: 12.97, Longitude: 77.59}, nil),
		b,
	)

	rec, err := flow.Submit(context.Background(), Request{Filename: "a.jpg", Image: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"host", "locate", "record"}, s.all())
	assert.Equal(t, "Pickup scheduled", rec.Message)
	assert.Equal(t, uploadRequest{Latitude: 12.97, Longitude: 77.59, Image: "https://res.example/img.jpg"}, *got)
}

func TestHostFailureStopsBeforeLocate(t *testing.T) {
	s := &steps{}
	b, _ := newUploadBackend(t, s, http.StatusOK)
	flow := NewFlow(&fakeHost{steps: s, err: errors.New("quota")}, recordingLocator(s, Position{}, nil), b)

	_, err := flow.Submit(context.Background(), Request{Image: []byte{1}})
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageHost, pe.Stage)
	assert.Empty(t, pe.HostedURL)
	assert.Equal(t, []string{"host"}, s.all())
}

func TestLocationFailuresKeepHostedImage(t *testing.T) {
	for _, locErr := range []error{ErrLocationDenied, ErrLocationTimeout} {
		s := &steps{}
		b, _ := newUploadBackend(t, s, http.StatusOK)
		flow := NewFlow(&fakeHost{steps: s, url: "https://res.example/x.jpg"}, recordingLocator(s, Position{}, locErr), b)

		_, err := flow.Submit(context.Background(), Request{Image: []byte{1}})
		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, StageLocate, pe.Stage)
		assert.Equal(t, "https://res.example/x.jpg", pe.HostedURL)
		assert.ErrorIs(t, err, locErr)
		assert.Equal(t, []string{"host", "locate"}, s.all(), "no record call without a position")
	}

	denied := (&Error{Stage: StageLocate, Err: ErrLocationDenied}).UserMessage()
	timeout := (&Error{Stage: StageLocate, Err: ErrLocationTimeout}).UserMessage()
	assert.NotEqual(t, denied, timeout)
}

func TestRetryWithHostedURLSkipsUpload(t *testing.T) {
	s := &steps{}
	b, got := newUploadBackend(t, s, http.StatusOK)
	flow := NewFlow(&fakeHost{steps: s, url: "unused"}, recordingLocator(s, Position{Latitude: 1, Longitude: 2}, nil), b)

	_, err := flow.Submit(context.Background(), Request{ImageURL: "https://res.example/kept.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []string{"locate", "record"}, s.all())
	assert.Equal(t, "https://res.example/kept.jpg", got.Image)
}

func TestRecordFailure(t *testing.T) {
	s := &steps{}
	b, _ := newUploadBackend(t, s, http.StatusInternalServerError)
	flow := NewFlow(&fakeHost{steps: s, url: "https://res.example/x.jpg"}, recordingLocator(s, Position{}, nil), b)

	_, err := flow.Submit(context.Background(), Request{Image: []byte{1}})
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageRecord, pe.Stage)
	assert.Equal(t, "https://res.example/x.jpg", pe.HostedURL)
}

func TestWithTimeout(t *testing.T) {
	slow := LocatorFunc(func(ctx context.Context) (Position, error) {
		time.Sleep(200 * time.Millisecond)
		return Position{Latitude: 1}, nil
	})
	_, err := WithTimeout(slow, 20*time.Millisecond).Locate(context.Background())
	assert.ErrorIs(t, err, ErrLocationTimeout)

	fast := StaticLocator{Position: Position{Latitude: 5, Longitude: 6}}
	pos, err := WithTimeout(fast, time.Second).Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, pos.Latitude)

	_, err = WithTimeout(StaticLocator{Denied: true}, time.Second).Locate(context.Background())
	assert.ErrorIs(t, err, ErrLocationDenied)
}

func TestCloudinaryUpload(t *testing.T) {
	var preset, filename, path string
	var fileBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		preset = r.FormValue("upload_preset")
		f, hdr, err := r.FormFile("file")
		if err == nil {
			filename = hdr.Filename
			fileBody, _ = io.ReadAll(f)
			f.Close()
		}
		w.Write([]byte(`{"secure_url":"https://res.example/demo/abc.jpg"}`))
	}))
	defer ts.Close()

	host, err := NewCloudinary(ts.URL, "demo", "unsigned_preset", 5*time.Second, nil)
	require.NoError(t, err)
	u, err := host.Upload(context.Background(), "dir/photo.jpg", []byte("jpegbytes"))
	require.NoError(t, err)

	assert.Equal(t, "https://res.example/demo/abc.jpg", u)
	assert.Equal(t, "/v1_1/demo/image/upload", path)
	assert.Equal(t, "unsigned_preset", preset)
	assert.Equal(t, "photo.jpg", filename)
	assert.Equal(t, []byte("jpegbytes"), fileBody)
}

func TestCloudinaryErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
	}))
	defer ts.Close()

	host, err := NewCloudinary(ts.URL, "demo", "bad", time.Second, nil)
	require.NoError(t, err)
	_, err = host.Upload(context.Background(), "a.jpg", []byte{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Upload preset not found")

	_, err = host.Upload(context.Background(), "a.jpg", nil)
	assert.Error(t, err)

	_, err = NewCloudinary(ts.URL, "", "p", time.Second, nil)
	assert.Error(t, err)
	_, err = NewCloudinary(ts.URL, "demo", "", time.Second, nil)
	assert.Error(t, err)
}

// Package mockbackend serves a local stand-in for the recycle backend and the
// image host so the service can run end to end without external accounts.
package mockbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recycle-ai/recycle/internal/redact"
)

const (
	defaultPort    = 18081
	defaultDelayMS = 20

	// DemoEmail and DemoPassword are the seeded account.
	DemoEmail    = "demo@example.com"
	DemoPassword = "demo"

	sessionCookie = "recycle_session"
)

type account struct {
	ID       int    `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

type classInfo struct {
	Category     string `json:"category"`
	Recyclable   any    `json:"recyclable"`
	Instructions string `json:"instructions"`
	Tip          string `json:"tip"`
	Impact       string `json:"impact"`
}

// Pickup is one recorded /upload call.
type Pickup struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Image     string  `json:"image"`
	// UserID is the account behind the session cookie, 0 when anonymous.
	UserID int `json:"-"`
}

// Backend is the in-memory state behind the mock endpoints.
type Backend struct {
	delay time.Duration

	mu       sync.Mutex
	accounts map[string]account
	sessions map[string]int
	pickups  []Pickup
	nextID   int
	baseURL  string
}

// NewBackend returns a backend seeded with the demo account.
func NewBackend(delay time.Duration) *Backend {
	b := &Backend{
		delay:    delay,
		accounts: make(map[string]account),
		sessions: make(map[string]int),
		nextID:   1,
	}
	b.addAccount("Demo", DemoEmail, DemoPassword)
	return b
}

func (b *Backend) addAccount(name, email, password string) account {
	a := account{ID: b.nextID, Name: name, Email: email, Password: password}
	b.nextID++
	b.accounts[strings.ToLower(email)] = a
	return a
}

// Sessions reports how many cookie sessions are live.
func (b *Backend) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Pickups returns the recorded pickup requests.
func (b *Backend) Pickups() []Pickup {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Pickup(nil), b.pickups...)
}

var guidanceTable = map[string]classInfo{
	"ewaste": {
		Category:     "Ewaste",
		Recyclable:   "special",
		Instructions: "Drop it at an authorised e-waste collection centre. Never put batteries in household bins.",
		Tip:          "Wipe personal data from phones and laptops before handing them over.",
		Impact:       "Keeps lead and mercury out of soil and groundwater.",
	},
	"wet waste": {
		Category:     "Wet Waste",
		Recyclable:   true,
		Instructions: "Put it in the green bin or a home compost pit.",
		Tip:          "Drain liquids first to keep the bin from smelling.",
		Impact:       "Composting returns nutrients to the soil and cuts landfill methane.",
	},
	"dry waste": {
		Category:     "Dry Waste",
		Recyclable:   true,
		Instructions: "Rinse and dry it, then put it in the blue bin.",
		Tip:          "Flatten cardboard boxes to save space.",
		Impact:       "Recycled paper and plastic save raw material and energy.",
	},
}

// Handler returns the mock route table.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		redact.Logf("mock backend request method=%s path=%s", r.Method, r.URL.Path)

		p := r.URL.Path
		if len(p) > 1 {
			p = strings.TrimSuffix(p, "/")
		}
		if b.delay > 0 {
			time.Sleep(b.delay)
		}

		if r.Method != http.MethodPost {
			writeMessage(w, http.StatusNotFound, "Not found")
			return
		}

		switch {
		case p == "/class-info":
			b.handleClassInfo(w, r)
		case p == "/login":
			b.handleLogin(w, r)
		case p == "/signup":
			b.handleSignup(w, r)
		case p == "/logout":
			b.handleLogout(w, r)
		case p == "/upload":
			b.handleUpload(w, r)
		case strings.HasPrefix(p, "/v1_1/") && strings.HasSuffix(p, "/image/upload"):
			b.handleImageUpload(w, r)
		default:
			writeMessage(w, http.StatusNotFound, "Not found")
		}
	})
	return mux
}

func (b *Backend) handleClassInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pred string `json:"pred"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	info, ok := guidanceTable[strings.ToLower(strings.TrimSpace(req.Pred))]
	if !ok {
		writeMessage(w, http.StatusNotFound, "No information for "+req.Pred)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b.mu.Lock()
	a, ok := b.accounts[strings.ToLower(strings.TrimSpace(req.Email))]
	if !ok || a.Password != req.Password {
		b.mu.Unlock()
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := uuid.NewString()
	b.sessions[token] = a.ID
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Login successful", "user": a})
}

func (b *Backend) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[strings.ToLower(req.Email)]; exists {
		writeMessage(w, http.StatusBadRequest, "User already exists")
		return
	}
	b.addAccount(req.Name, req.Email, req.Password)
	writeMessage(w, http.StatusCreated, "User registered successfully")
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, c.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeMessage(w, http.StatusOK, "Logged out")
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req Pickup
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Image == "" {
		writeMessage(w, http.StatusBadRequest, "image is required")
		return
	}
	b.mu.Lock()
	if c, err := r.Cookie(sessionCookie); err == nil {
		req.UserID = b.sessions[c.Value]
	}
	b.pickups = append(b.pickups, req)
	b.mu.Unlock()
	writeMessage(w, http.StatusOK, "Pickup request received")
}

// handleImageUpload mimics an unsigned Cloudinary upload.
func (b *Backend) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeCloudinaryError(w, http.StatusBadRequest, "Upload must be multipart")
		return
	}
	if r.FormValue("upload_preset") == "" {
		writeCloudinaryError(w, http.StatusBadRequest, "Upload preset must be specified when using unsigned upload")
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		writeCloudinaryError(w, http.StatusBadRequest, "Missing required parameter - file")
		return
	}
	defer f.Close()
	n, err := io.Copy(io.Discard, f)
	if err != nil || n == 0 {
		writeCloudinaryError(w, http.StatusBadRequest, "Empty file")
		return
	}

	b.mu.Lock()
	base := b.baseURL
	b.mu.Unlock()
	if base == "" {
		base = "http://" + r.Host
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"public_id":  uuid.NewString(),
		"bytes":      n,
		"secure_url": base + "/images/" + uuid.NewString() + ".jpg",
	})
}

// Start launches the mock backend. If addr is empty, it listens on
// 127.0.0.1:MOCK_BACKEND_PORT (default 18081). It returns a shutdown
// function, the backend state and the base URL.
func Start(addr string) (func(context.Context) error, *Backend, string, error) {
	if strings.TrimSpace(addr) == "" {
		port := strings.TrimSpace(os.Getenv("MOCK_BACKEND_PORT"))
		if port == "" {
			port = fmt.Sprintf("%d", defaultPort)
		}
		addr = "127.0.0.1:" + port
	}

	delay := defaultDelayMS
	if val := strings.TrimSpace(os.Getenv("MOCK_DELAY_MS")); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			delay = parsed
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	b := NewBackend(time.Duration(delay) * time.Millisecond)
	baseURL := "http://" + ln.Addr().String()
	b.baseURL = baseURL

	srv := &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			redact.Logf("mock backend server error: %v", err)
		}
	}()

	shutdown := func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}

	redact.Logf("mock backend listening on %s (delay_ms=%d)", baseURL, delay)
	return shutdown, b, baseURL, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeCloudinaryError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": msg}})
}

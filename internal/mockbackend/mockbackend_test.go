package mockbackend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/recycle-ai/recycle/internal/auth"
	"github.com/recycle-ai/recycle/internal/backend"
	"github.com/recycle-ai/recycle/internal/guidance"
	"github.com/recycle-ai/recycle/internal/pickup"
	"github.com/recycle-ai/recycle/internal/session"
)

func startBackend(t *testing.T) (*Backend, *backend.Client, string) {
	t.Helper()

	t.Setenv("MOCK_DELAY_MS", "0")
	shutdown, b, baseURL, err := Start("127.0.0.1:0")
	if err != nil {
		t.Skipf("start mock backend: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	client, err := backend.New(baseURL, 5*time.Second, 0, nil)
	if err != nil {
		t.Fatalf("new backend client: %v", err)
	}
	return b, client, baseURL
}

func TestMockBackendGuidance(t *testing.T) {
	_, client, _ := startBackend(t)
	g := guidance.NewClient(client)

	res, err := g.Fetch(context.Background(), "Ewaste")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Category != "Ewaste" || res.Recyclable != guidance.SpecialDisposal {
		t.Fatalf("unexpected guidance: %+v", res)
	}

	_, err = g.Fetch(context.Background(), "Plastic")
	var fe *guidance.FetchError
	if !errors.As(err, &fe) || fe.Kind != guidance.KindServer || fe.Status != 404 {
		t.Fatalf("expected 404 server error, got %v", err)
	}
}

func TestMockBackendAuth(t *testing.T) {
	_, client, _ := startBackend(t)
	a := auth.NewClient(client)
	ctx := context.Background()

	_, err := a.Login(ctx, auth.Credentials{Email: DemoEmail, Password: "wrong"})
	var ae *auth.Error
	if !errors.As(err, &ae) || ae.Kind != auth.KindInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	resp, err := a.Login(ctx, auth.Credentials{Email: DemoEmail, Password: DemoPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.User.ID != "1" || resp.User.Name != "Demo" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}

	if err := a.Signup(ctx, auth.Registration{Name: "B", Email: "b@example.com", Password: "pw"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	err = a.Signup(ctx, auth.Registration{Name: "B", Email: "b@example.com", Password: "pw"})
	if !errors.As(err, &ae) || ae.Kind != auth.KindRejected || ae.Message != "User already exists" {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	if err := a.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
}

func TestMockBackendPickup(t *testing.T) {
	b, client, baseURL := startBackend(t)

	host, err := pickup.NewCloudinary(baseURL, "demo", "unsigned", 5*time.Second, nil)
	if err != nil {
		t.Fatalf("new cloudinary: %v", err)
	}
	locator := pickup.StaticLocator{Position: pickup.Position{Latitude: 12.9716, Longitude: 77.5946}}
	flow := pickup.NewFlow(host, locator, client)

	receipt, err := flow.Submit(context.Background(), pickup.Request{Filename: "photo.jpg", Image: []byte("jpeg")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.ImageURL == "" || receipt.Message != "Pickup request received" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	got := b.Pickups()
	if len(got) != 1 || got[0].Image != receipt.ImageURL || got[0].Latitude != 12.9716 {
		t.Fatalf("unexpected recorded pickups: %+v", got)
	}
}

func TestSessionCookieSurvivesRestart(t *testing.T) {
	b, first, baseURL := startBackend(t)
	ctx := context.Background()
	storage, err := session.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("file storage: %v", err)
	}

	mgr, err := session.NewManager(ctx, storage, session.DefaultKey, auth.NewClient(first), session.WithCookies(first))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	resp, err := auth.NewClient(first).Login(ctx, auth.Credentials{Email: DemoEmail, Password: DemoPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := mgr.Login(ctx, *resp.User); err != nil {
		t.Fatalf("persist login: %v", err)
	}
	if n := b.Sessions(); n != 1 {
		t.Fatalf("expected 1 backend session, got %d", n)
	}

	// A later run starts with a fresh client over the same storage.
	second, err := backend.New(baseURL, 5*time.Second, 0, nil)
	if err != nil {
		t.Fatalf("new backend client: %v", err)
	}
	restored, err := session.NewManager(ctx, storage, session.DefaultKey, auth.NewClient(second), session.WithCookies(second))
	if err != nil {
		t.Fatalf("restore manager: %v", err)
	}
	if u, ok := restored.Current(); !ok || u.ID != "1" {
		t.Fatalf("expected restored user 1, got %+v ok=%v", u, ok)
	}

	host, err := pickup.NewCloudinary(baseURL, "demo", "unsigned", 5*time.Second, nil)
	if err != nil {
		t.Fatalf("new cloudinary: %v", err)
	}
	flow := pickup.NewFlow(host, pickup.StaticLocator{Position: pickup.Position{Latitude: 1, Longitude: 2}}, second)
	if _, err := flow.Submit(ctx, pickup.Request{Filename: "photo.jpg", Image: []byte("jpeg")}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := b.Pickups(); len(got) != 1 || got[0].UserID != 1 {
		t.Fatalf("pickup should carry the restored session, got %+v", got)
	}

	if err := restored.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if n := b.Sessions(); n != 0 {
		t.Fatalf("backend session survived logout: %d live", n)
	}
	if c := second.Cookies(); len(c) != 0 {
		t.Fatalf("jar should be empty after logout, got %+v", c)
	}
}

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/recycle-ai/recycle/internal/config"
	"github.com/recycle-ai/recycle/internal/quiz"
)

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Session.Dir = dir
	return cfg
}

func TestLeaderboardOutlivesTheApp(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := newApp(ctx, testConfig(t, dir))
	if err != nil {
		t.Fatalf("first app: %v", err)
	}
	res := quiz.NewResult("7", "Ada", "plastic", 4, 5, time.Now())
	if err := first.leaderboard.Record(ctx, res); err != nil {
		t.Fatalf("record: %v", err)
	}
	first.Close()

	second, err := newApp(ctx, testConfig(t, dir))
	if err != nil {
		t.Fatalf("second app: %v", err)
	}
	defer second.Close()
	top, err := second.leaderboard.Top(ctx, "plastic", 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 || top[0].UserID != "7" || top[0].Percentage != 80 {
		t.Fatalf("expected the recorded result after restart, got %+v", top)
	}
}

func TestLeaderboardUsesSQLiteWithFileSessions(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Session.Store = "file"

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()
	if a.db == nil || a.leaderboard != a.db {
		t.Fatalf("leaderboard should be the sqlite store, got %T", a.leaderboard)
	}
}

func TestSetColorMode(t *testing.T) {
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })

	if err := setColorMode("always"); err != nil || color.NoColor {
		t.Fatalf("always: err=%v NoColor=%v", err, color.NoColor)
	}
	if err := setColorMode("never"); err != nil || !color.NoColor {
		t.Fatalf("never: err=%v NoColor=%v", err, color.NoColor)
	}
	if err := setColorMode("auto"); err != nil || !color.NoColor {
		t.Fatalf("auto should leave the current setting, err=%v", err)
	}
	for _, bad := range []string{"on", "off", "yes", ""} {
		if err := setColorMode(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestCapitalize(t *testing.T) {
	for in, want := range map[string]string{
		"plastic": "Plastic",
		"éco":     "Éco",
		"":        "",
		"ñ":       "Ñ",
	} {
		if got := capitalize(in); got != want {
			t.Fatalf("capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

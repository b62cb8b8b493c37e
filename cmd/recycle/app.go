package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/recycle-ai/recycle/internal/activation"
	"github.com/recycle-ai/recycle/internal/auth"
	"github.com/recycle-ai/recycle/internal/backend"
	"github.com/recycle-ai/recycle/internal/classifier"
	"github.com/recycle-ai/recycle/internal/config"
	"github.com/recycle-ai/recycle/internal/guidance"
	"github.com/recycle-ai/recycle/internal/pickup"
	"github.com/recycle-ai/recycle/internal/quiz"
	"github.com/recycle-ai/recycle/internal/redact"
	"github.com/recycle-ai/recycle/internal/session"
	"github.com/recycle-ai/recycle/internal/store"
)

// app holds everything the subcommands share. Fields are nil when the
// matching feature is not configured.
type app struct {
	cfg         *config.Config
	backend     *backend.Client
	auth        *auth.Client
	guidance    *guidance.Client
	session     *session.Manager
	leaderboard quiz.Leaderboard
	bank        quiz.Bank
	pickup      *pickup.Flow
	activation  *activation.Emitter

	db *store.DB
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp wires the backend-facing services, session state and quiz data.
// The model is loaded separately since not every command needs it.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	b, err := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Backend.MaxResponseBytes, nil)
	if err != nil {
		return nil, err
	}
	a.backend = b
	a.auth = auth.NewClient(b)
	a.guidance = guidance.NewClient(b)

	// The SQLite store always backs the leaderboard so results outlive the
	// process; sessions use it too when session.store is sqlite.
	if err := os.MkdirAll(cfg.Session.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := store.Open(filepath.Join(cfg.Session.Dir, "recycle.db"))
	if err != nil {
		return nil, err
	}
	a.db = db
	a.leaderboard = db

	var storage session.Storage = db
	if strings.ToLower(cfg.Session.Store) != "sqlite" {
		fs, err := session.NewFileStorage(cfg.Session.Dir)
		if err != nil {
			a.Close()
			return nil, err
		}
		storage = fs
	}

	mgr, err := session.NewManager(ctx, storage, cfg.Session.Key, a.auth, session.WithCookies(b))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.session = mgr

	a.bank = quiz.DefaultBank()
	if cfg.Quiz.BankPath != "" {
		bank, err := quiz.LoadBank(cfg.Quiz.BankPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load quiz bank: %w", err)
		}
		a.bank = bank
	}

	if cfg.ImageHost.CloudName != "" && cfg.ImageHost.UploadPreset != "" {
		host, err := pickup.NewCloudinary(cfg.ImageHost.BaseURL, cfg.ImageHost.CloudName, cfg.ImageHost.UploadPreset, cfg.ImageHost.Timeout, nil)
		if err != nil {
			a.Close()
			return nil, err
		}
		locator := pickup.StaticLocator{
			Position: pickup.Position{Latitude: cfg.Location.Latitude, Longitude: cfg.Location.Longitude},
			Denied:   !cfg.Location.Enabled,
		}
		a.pickup = pickup.NewFlow(host, pickup.WithTimeout(locator, cfg.Location.Timeout), b)
	} else {
		redact.Logf("image host not configured; pickup requests disabled")
	}

	em, err := activation.NewFromConfig(cfg.Activation)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.activation = em

	return a, nil
}

// loadModel starts the background model load.
func (a *app) loadModel() *classifier.Loader {
	m := a.cfg.Model
	return classifier.NewModelLoader(m.Dir, classifier.Options{
		ModelFile:         m.ModelFile,
		MetadataFile:      m.MetadataFile,
		SharedLibraryPath: m.SharedLibraryPath,
		InputName:         m.InputName,
		OutputName:        m.OutputName,
		IntraOpThreads:    m.IntraOpThreads,
	})
}

func (a *app) Close() {
	if a.activation != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Activation.ShutdownTimeout+time.Second)
		a.activation.Close(ctx)
		cancel()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			redact.Logf("close store: %v", err)
		}
	}
}

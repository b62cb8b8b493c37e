package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/recycle-ai/recycle/internal/config"
	"github.com/recycle-ai/recycle/internal/mockbackend"
	"github.com/recycle-ai/recycle/internal/redact"
	"github.com/recycle-ai/recycle/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `serve starts the HTTP API. The model loads in the background; requests
that need it wait for the load to finish.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().Bool("mock-backend", false, "start an in-process mock backend and image host and point the service at it")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if useMock, _ := cmd.Flags().GetBool("mock-backend"); useMock {
		shutdown, _, baseURL, err := mockbackend.Start("")
		if err != nil {
			return err
		}
		defer shutdownWithTimeout(shutdown)
		pointAtMock(cfg, baseURL)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	loader := a.loadModel()
	defer func() {
		if err := loader.Close(); err != nil {
			redact.Logf("close model: %v", err)
		}
	}()

	srv := server.New(cfg, server.Deps{
		Model:       loader,
		Guidance:    a.guidance,
		Auth:        a.auth,
		Session:     a.session,
		Pickup:      pickupService(a),
		Bank:        a.bank,
		Leaderboard: a.leaderboard,
		Activation:  a.activation,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	g.Go(func() error {
		select {
		case <-loader.Done():
			if err := loader.Err(); err != nil {
				redact.Logf("model unavailable: %v", err)
			} else {
				redact.Logf("model ready: %d labels", len(loader.Labels()))
			}
		case <-gctx.Done():
		}
		return nil
	})
	return g.Wait()
}

// pickupService keeps a nil *pickup.Flow from becoming a non-nil interface.
func pickupService(a *app) server.PickupService {
	if a.pickup == nil {
		return nil
	}
	return a.pickup
}

func pointAtMock(cfg *config.Config, baseURL string) {
	cfg.Backend.BaseURL = baseURL
	cfg.ImageHost.BaseURL = baseURL
	cfg.ImageHost.AllowPrivateNetworks = true
	if cfg.ImageHost.CloudName == "" {
		cfg.ImageHost.CloudName = "mock"
	}
	if cfg.ImageHost.UploadPreset == "" {
		cfg.ImageHost.UploadPreset = "unsigned"
	}
	redact.Logf("using mock backend at %s", baseURL)
}

func shutdownWithTimeout(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		redact.Logf("shutdown mock backend: %v", err)
	}
}

var mockBackendCmd = &cobra.Command{
	Use:   "mock-backend",
	Short: "Run a local mock of the backend and image host",
	Long: fmt.Sprintf(`mock-backend serves /class-info, /login, /signup, /logout, /upload and an
unsigned image upload endpoint. The seeded account is %s / %s.`, mockbackend.DemoEmail, mockbackend.DemoPassword),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		shutdown, _, _, err := mockbackend.Start(addr)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		shutdownWithTimeout(shutdown)
		return nil
	},
}

func init() {
	mockBackendCmd.Flags().String("addr", "", "listen address (default 127.0.0.1:$MOCK_BACKEND_PORT or 127.0.0.1:18081)")
}

// Package app wires configuration, devices, credentials, storage and
// observers into a running live voice session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/teslashibe/go-livevoice/internal/config"
	"github.com/teslashibe/go-livevoice/pkg/audioio"
	"github.com/teslashibe/go-livevoice/pkg/auth"
	"github.com/teslashibe/go-livevoice/pkg/display"
	"github.com/teslashibe/go-livevoice/pkg/i18n"
	"github.com/teslashibe/go-livevoice/pkg/live"
	"github.com/teslashibe/go-livevoice/pkg/metrics"
	"github.com/teslashibe/go-livevoice/pkg/rtpout"
	"github.com/teslashibe/go-livevoice/pkg/store"
	"github.com/teslashibe/go-livevoice/pkg/web"
)

// App is the livevoice orchestrator. It owns every component and their
// lifecycle: New, Init, Run, Shutdown.
type App struct {
	cfg    config.Config
	lang   i18n.Lang
	logger *slog.Logger
	out    io.Writer

	metrics *metrics.Metrics
	store   store.Store
	authn   auth.Authenticator
	source  audioio.Source
	outputs audioio.OutputFactory
	mirror  *rtpout.Forwarder

	display   *display.Terminal
	webServer *web.Server
	manager   *live.Manager
}

// New creates an App. Terminal output goes to out.
func New(cfg config.Config, out io.Writer, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.HasCredentials() {
		return nil, &config.ConfigError{
			Field:   "Auth",
			Message: "no credentials: set auth.worker_url, auth.use_adc or GEMINI_API_KEY",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &App{
		cfg:    cfg,
		lang:   cfg.Language(),
		logger: logger,
		out:    out,
	}, nil
}

// Init opens devices, storage and the dashboard. Call it once before Run.
func (a *App) Init(ctx context.Context) error {
	a.metrics = metrics.New()

	st, err := OpenStore(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	a.store = st

	a.authn, err = NewAuthenticator(ctx, a.cfg.Auth, a.logger)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	a.source, err = audioio.NewSource(a.cfg.Audio, a.logger)
	if err != nil {
		return fmt.Errorf("audio input: %w", err)
	}
	a.outputs, err = audioio.NewOutputFactory(a.cfg.Audio, a.logger)
	if err != nil {
		return fmt.Errorf("audio output: %w", err)
	}

	if a.cfg.RTP.Target != "" {
		a.mirror, err = rtpout.New(rtpout.Config{
			Target:      a.cfg.RTP.Target,
			PayloadType: a.cfg.RTP.PayloadType,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("rtp mirror: %w", err)
		}
	}

	a.display = display.New(a.out, a.lang)
	a.manager = live.NewManager(a.newSession)

	if a.cfg.Dashboard.Addr != "" {
		a.webServer = web.NewServer(web.Config{
			Addr:      a.cfg.Dashboard.Addr,
			Lang:      a.lang,
			StaticDir: a.cfg.Dashboard.StaticDir,
			Metrics:   a.metrics.Handler(),
		}, web.ManagerController{Manager: a.manager}, a.logger)
	}
	return nil
}

func (a *App) observers() live.Observer {
	obs := live.Observers{a.display}
	if a.webServer != nil {
		obs = append(obs, a.webServer)
	}
	return obs
}

func (a *App) newSession() *live.Session {
	opts := []live.Option{
		live.WithModel(a.cfg.Model),
		live.WithInstruction(a.cfg.SystemInstruction()),
		live.WithMaxBuffered(a.cfg.MaxBuffered),
		live.WithStore(a.store),
		live.WithObserver(a.observers()),
		live.WithLogger(a.logger),
		live.WithMetrics(a.metrics),
	}
	if a.mirror != nil {
		opts = append(opts, live.WithMirror(a.mirror))
	}
	return live.New(a.authn, a.source, a.outputs, opts...)
}

// Run starts a session and blocks. Without a dashboard it returns when
// the session ends; with one it keeps serving until ctx is cancelled so
// a failed session can be restarted from the browser.
func (a *App) Run(ctx context.Context) error {
	if a.webServer != nil {
		a.webServer.StartAsync(ctx)
	}

	sess, err := a.manager.Start(ctx)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	if err != nil && a.webServer == nil {
		return err
	}
	if err != nil {
		a.logger.Warn("session failed to start", "error", err)
	}

	if a.webServer != nil {
		<-ctx.Done()
		return nil
	}

	select {
	case <-ctx.Done():
		return nil
	case <-sess.Done():
		if e := sess.LastError(); e != nil {
			return e
		}
		return nil
	}
}

// Manager exposes the session manager.
func (a *App) Manager() *live.Manager {
	return a.manager
}

// Shutdown stops the session and releases every component.
func (a *App) Shutdown() error {
	var errs []error

	if a.manager != nil {
		if err := a.manager.Stop(); err != nil && !errors.Is(err, live.ErrNotStarted) {
			errs = append(errs, err)
		}
	}
	if a.webServer != nil {
		errs = append(errs, a.webServer.Shutdown())
	}
	if a.mirror != nil {
		errs = append(errs, a.mirror.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// NewAuthenticator builds the credential chain: token worker, then
// application default credentials, then the API key.
func NewAuthenticator(ctx context.Context, c config.AuthConfig, logger *slog.Logger) (auth.Authenticator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	chain := &auth.Chain{APIKey: c.APIKey, Logger: logger}

	if c.WorkerURL != "" {
		chain.Tokens = auth.NewWorkerTokenSource(ctx, c.WorkerURL, nil)
	}
	if c.UseADC {
		ts, err := auth.GoogleTokenSource(ctx)
		switch {
		case err == nil:
			chain.OAuth = ts
		case chain.Tokens == nil && chain.APIKey == "":
			return nil, err
		default:
			logger.Warn("application default credentials unavailable", "error", err)
		}
	}

	if chain.Tokens == nil && chain.OAuth == nil && chain.APIKey == "" {
		return nil, auth.ErrNoCredential
	}
	return chain, nil
}

// OpenStore opens Postgres when a database URL is set, otherwise the JSON
// file store.
func OpenStore(ctx context.Context, c config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	if c.DatabaseURL != "" {
		pg, err := store.NewPGStore(ctx, c.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	path := c.Path
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	js, err := store.NewJSONStore(path)
	if err != nil {
		return nil, err
	}
	return js, nil
}

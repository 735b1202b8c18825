package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/civicstack/ballotcore/internal/vote/http"
	"github.com/civicstack/ballotcore/internal/vote/ledger"
	"github.com/civicstack/ballotcore/internal/vote/notify"
	"github.com/civicstack/ballotcore/internal/vote/service"
	"github.com/civicstack/ballotcore/internal/vote/store"
	"github.com/civicstack/ballotcore/internal/vote/store/drivers/sqlite"
	"github.com/civicstack/ballotcore/pkg/cryptox"
	"github.com/civicstack/ballotcore/pkg/jwtx"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the voting portal core with all its
// dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	keypair *jwtx.Keypair
	tally   ledger.Client

	credentialService  *service.CredentialService
	challengeService   *service.ChallengeService
	sessionService     *service.SessionService
	eligibilityService *service.EligibilityService
	receiptService     *service.ReceiptService
	electionService    *service.ElectionService
	housekeeping       *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "ballotcore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initSigner(); err != nil {
		return nil, err
	}

	if err := app.initLedger(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("ballotcore starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the server, the housekeeping worker and the
// database, in that order.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down ballotcore...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("ballotcore stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore("file:" + app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initSigner sets up the Ed25519 keypair. With a configured seed every
// replica verifies the same tokens; without one the key is ephemeral
// and sessions do not survive a restart.
func (app *Application) initSigner() error {
	if app.cfg.SigningSeed == "" {
		keypair, err := jwtx.NewKeypair()
		if err != nil {
			return err
		}
		app.keypair = keypair
		app.logger.Info("signing with an ephemeral keypair")
		return nil
	}

	seed, err := base64.RawURLEncoding.DecodeString(app.cfg.SigningSeed)
	if err != nil {
		return fmt.Errorf("invalid signing seed: %w", err)
	}
	keypair, err := jwtx.KeypairFromSeed(seed)
	if err != nil {
		return fmt.Errorf("invalid signing seed: %w", err)
	}
	app.keypair = keypair
	return nil
}

func (app *Application) initLedger() error {
	switch app.cfg.LedgerMode {
	case "", "embedded":
		app.tally = ledger.NewEmbedded(app.db)
		app.logger.Info("using embedded vote ledger")
	case "remote":
		if app.cfg.LedgerURL == "" {
			return fmt.Errorf("BALLOT_LEDGER_URL is required when ledger mode is remote")
		}
		app.tally = ledger.NewRemote(app.cfg.LedgerURL, app.cfg.LedgerTimeout)
		app.logger.Info("using remote vote ledger", "url", app.cfg.LedgerURL)
	default:
		return fmt.Errorf("unknown ledger mode %q", app.cfg.LedgerMode)
	}
	return nil
}

func (app *Application) initServices() {
	var sender notify.Sender
	if app.cfg.NotifyURL != "" {
		sender = notify.NewHTTPSender(app.cfg.NotifyURL, app.cfg.NotifyTimeout)
	} else {
		sender = notify.LogSender{}
		app.logger.Warn("no notify gateway configured, passcodes will not be delivered")
	}

	app.challengeService = &service.ChallengeService{
		Store:          app.db,
		Sender:         sender,
		TTL:            app.cfg.ChallengeTTL,
		Attempts:       app.cfg.ChallengeAttempts,
		ResendInterval: app.cfg.ResendInterval,
	}

	app.credentialService = &service.CredentialService{
		Store:            app.db,
		Challenges:       app.challengeService,
		LockoutThreshold: app.cfg.LockoutThreshold,
		LockoutWindow:    app.cfg.LockoutWindow,
	}

	app.sessionService = &service.SessionService{
		Store:      app.db,
		Signer:     app.keypair,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}

	app.eligibilityService = &service.EligibilityService{
		Store:  app.db,
		Ledger: app.tally,
	}

	app.receiptService = &service.ReceiptService{Ledger: app.tally}
	app.electionService = &service.ElectionService{Store: app.db}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keypair,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.CredentialService = app.credentialService
	router.ChallengeService = app.challengeService
	router.SessionService = app.sessionService
	router.EligibilityService = app.eligibilityService
	router.ReceiptService = app.receiptService
	router.ElectionService = app.electionService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

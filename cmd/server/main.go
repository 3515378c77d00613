package main

import (
	"context"
	"flag"
	"log/syslog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/junpoanalyze/chips"
	"github.com/junpoanalyze/chips/auth"
	"github.com/junpoanalyze/chips/config"
	"github.com/junpoanalyze/chips/fetch"
	"github.com/junpoanalyze/chips/inmem"
	"github.com/junpoanalyze/chips/persistent"
	"github.com/junpoanalyze/chips/sweeper"
	"github.com/junpoanalyze/chips/transport/rest"
	"github.com/junpoanalyze/chips/upstream"
	"github.com/sirupsen/logrus"
	logrusys "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/tidwall/buntdb"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

func listenAndServe(
	ctx context.Context,
	cfg config.Config,
	bdb *buntdb.DB,
	db *bun.DB,
) func() error {
	sessionStore := inmem.NewSessionStore(cfg.Session.TTL)

	var auditStore chips.AuditStore
	if db != nil {
		auditStore = &persistent.AuditStore{DB: db}
	} else {
		auditStore = inmem.NewAuditStore()
	}

	fetchOptions := []fetch.Option{
		fetch.WithWorkers(cfg.Fetch.Workers),
		fetch.WithBatchLimit(cfg.Fetch.BatchLimit),
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithLocation(cfg.Fetch.Location),
	}
	if bdb != nil {
		periodCache := &persistent.PeriodCache{Buntdb: bdb, TTL: cfg.Cache.TTL}
		if err := periodCache.CreateIndexes(); err != nil {
			logrus.WithError(err).Fatalln("Could not create period cache indexes.")
		}
		fetchOptions = append(fetchOptions, fetch.WithCache(periodCache))
	}
	fetcher := fetch.New(fetchOptions...)

	authenticator := &auth.Authenticator{
		NewUpstream:   upstreamFactory(cfg),
		Sessions:      sessionStore,
		Audit:         auditStore,
		PageTimeout:   cfg.Upstream.LoginPageTimeout,
		SignInTimeout: cfg.Upstream.LoginTimeout,
	}

	sessionSweeper := &sweeper.Sweeper{
		Store:    sessionStore,
		Audit:    auditStore,
		Interval: cfg.Session.SweepInterval,
	}
	sweeperCtx, stopSweeper := context.WithCancel(ctx)
	go sessionSweeper.Run(sweeperCtx)

	authController := rest.AuthController{
		Authenticator: authenticator,
		Sessions:      sessionStore,
		Audit:         auditStore,
	}
	historyController := rest.HistoryController{
		Service:    fetcher,
		Sessions:   sessionStore,
		BatchLimit: fetcher.BatchLimit(),
	}
	auditController := rest.AuditController{Store: auditStore}

	api := fiber.New(fiber.Config{
		ErrorHandler: rest.ErrorHandler,
	})
	requestAuthorizer := rest.RequestAuthorizer(sessionStore)
	api.Get("/status", monitor.New())
	authController.InstallTo(api)
	historyController.InstallTo(requestAuthorizer, api)
	auditController.InstallTo(requestAuthorizer, api)

	server := newServer(api)

	go func() {
		if err := server.Listen(cfg.Server.Addr); err != nil {
			logrus.WithError(err).Errorln("Fiber listen failed.")
		}
	}()

	return func() error {
		stopSweeper()
		return server.Shutdown()
	}
}

const (
	readTimeout = 10 * time.Second
	// Covers a full batch, whose requests may queue for session leases and
	// fetch slots.
	writeTimeout = 3 * time.Minute
)

// newServer wraps the api in the root app. Timeouts only take effect on the
// app that listens, not on mounted ones.
func newServer(api *fiber.App) *fiber.App {
	server := fiber.New(fiber.Config{
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		ErrorHandler: rest.ErrorHandler,
	})
	server.Use(recover.New())
	server.Use(rest.LogHandler())
	server.Mount("/proxy/api", api)
	server.Use(rest.NotFoundHandler)
	return server
}

// upstreamFactory builds per-session clients that share one connection pool.
// The client timeout is a ceiling above every per-call deadline.
func upstreamFactory(cfg config.Config) func() (chips.Upstream, error) {
	timeout := max(cfg.Fetch.Timeout, cfg.Upstream.LoginPageTimeout, cfg.Upstream.LoginTimeout)
	return upstream.Factory(cfg.Upstream.URL,
		upstream.WithTransport(upstream.NewTransport(cfg.Fetch.Workers)),
		upstream.WithTimeout(timeout+5*time.Second),
	)
}

func setupLogger(verbose bool, useSyslog bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.Stamp,
		FullTimestamp:   true,
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if !useSyslog {
		return
	}

	syslogHook, err := logrusys.NewSyslogHook("", "", syslog.LOG_USER, "chips_proxy")
	if err != nil {
		logrus.WithError(err).Fatalln("Could not create syslog hook.")
		return
	}
	logrus.AddHook(syslogHook)
}

func awaitInterruption() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

func main() {
	flag.Parse()
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warningln("Could not read .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatalln("Invalid configuration.")
	}
	setupLogger(cfg.Debug, cfg.Syslog)
	logrus.WithField("upstream", cfg.Upstream.URL).Infoln("Starting chips proxy.")

	var bdb *buntdb.DB
	if cfg.Cache.Enabled() {
		bdb, err = buntdb.Open(cfg.Cache.Path)
		if err != nil {
			logrus.WithError(err).Fatalln("Could not open buntdb.")
		}
		defer bdb.Close()
	}

	var db *bun.DB
	if cfg.Database.PostgresDSN != "" {
		logrus.Infoln("Opening database.")
		db, err = persistent.PgOpen(context.Background(), cfg.Database.PostgresDSN)
		if err != nil {
			logrus.WithError(err).Fatalln("Could not open pg database.")
		}
		if cfg.Debug || cfg.Database.Verbose {
			db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
		}
		defer db.Close()
		if err := persistent.CreateSchema(context.Background(), db); err != nil {
			logrus.WithError(err).Fatalln("Could not create database schema.")
		}
	} else {
		logrus.Infoln("POSTGRES_DSN not set, audit entries are kept in memory.")
	}

	logrus.WithField("addr", cfg.Server.Addr).Infoln("Starting listening... To shut down use ^C")
	shutdown := listenAndServe(context.Background(), cfg, bdb, db)

	awaitInterruption()

	logrus.Infoln("Shutting down...")
	if err := shutdown(); err != nil {
		logrus.WithError(err).Warningln("Fiber shutdown failed.")
	}
}

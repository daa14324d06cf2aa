package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"newsletter-digest/internal/archive"
	"newsletter-digest/internal/config"
	"newsletter-digest/internal/delivery"
	"newsletter-digest/internal/email"
	"newsletter-digest/internal/events"
	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/gmail"
	"newsletter-digest/internal/httpserver"
	imapclient "newsletter-digest/internal/imap"
	"newsletter-digest/internal/lock"
	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/mailbox"
	"newsletter-digest/internal/models"
	"newsletter-digest/internal/pipeline"
	"newsletter-digest/internal/retry"
	"newsletter-digest/internal/runner"
	"newsletter-digest/internal/snapshot"
	"newsletter-digest/internal/store"
	"newsletter-digest/internal/summarizer"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	once := flag.Bool("once", false, "run the pipeline once, print the report and exit")
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Log.Fatalf("Error reading configuration file: %v", err)
	}
	logging.Configure(cfg.Logging.Level, cfg.Logging.Format)

	if err := config.Validate(cfg); err != nil {
		logging.Log.Fatalf("Invalid configuration: %v", err)
	}

	if err := store.Migrate(cfg.Database.URL); err != nil {
		logging.Log.Fatalf("Database migration failed: %v", err)
	}
	if *migrateOnly {
		logging.Log.Info("Migrations applied")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		logging.Log.Fatalf("Startup failed: %v", err)
	}
	defer app.Close()

	if *once {
		code := runOnce(ctx, app.runner)
		app.Close()
		stop()
		os.Exit(code)
	}

	if err := serve(ctx, cfg, app); err != nil {
		logging.Log.Errorf("Server stopped with error: %v", err)
		app.Close()
		os.Exit(1)
	}
}

type app struct {
	store   *store.Store
	runner  *runner.Runner
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// newApp wires every collaborator from cfg
func newApp(ctx context.Context, cfg *models.Config) (*app, error) {
	a := &app{}

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	mb, err := a.newMailbox(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	completer, err := newCompleter(cfg.Summarizer)
	if err != nil {
		a.Close()
		return nil, err
	}

	orchestrator := pipeline.NewOrchestrator(mb, summarizer.NewSynthesizer(completer), pipeline.Options{
		Label:          cfg.Mail.Label,
		SenderKeywords: cfg.Mail.SenderKeywords,
		Lookback:       cfg.Mail.Lookback,
		Budget:         cfg.Cleaner.Budget,
		Workers:        cfg.Cleaner.Workers,
	})

	opts := delivery.Options{
		Subject:        cfg.Delivery.Subject,
		Title:          cfg.Delivery.Subject,
		UnsubscribeURL: cfg.Delivery.UnsubscribeURL,
		RatePerSecond:  cfg.Delivery.RatePerSecond,
	}
	if pub := a.newPublisher(cfg.Events); pub != nil {
		opts.Publisher = pub
	}
	if arch := a.newArchiver(ctx, cfg.Archive); arch != nil {
		opts.Archiver = arch
	}
	coordinator := delivery.NewCoordinator(st, mb, opts)

	a.runner = runner.New(orchestrator, coordinator, a.newLocker(cfg.Redis), runner.Options{
		LockTTL:         cfg.Redis.LockTTL,
		SendEmptyDigest: cfg.Delivery.SendEmptyDigest,
	})
	return a, nil
}

func (a *app) newMailbox(ctx context.Context, cfg *models.Config) (mailbox.Mailbox, error) {
	var mb mailbox.Mailbox

	switch cfg.Mail.Provider {
	case "imap":
		im := imapclient.NewMailbox(imapclient.NewStandardClient(cfg.Mail.Imap.Timeout), cfg.Mail.Imap)
		a.closers = append(a.closers, func() { _ = im.Close() })
		mb = im
	default:
		srv, err := gmail.NewService(ctx, cfg.Mail.Gmail.CredentialsFile, cfg.Mail.Gmail.TokenFile)
		if err != nil {
			return nil, err
		}
		mb = gmail.NewMailbox(srv, cfg.Delivery.From)
	}

	mb = mailbox.WithRetry(mb, retry.FromConfig(cfg.Mail.Retry))

	switch cfg.Delivery.Sender {
	case "resend":
		mb = email.RouteSends(mb, email.NewResendSender(cfg.Delivery.ResendAPIKey, cfg.Delivery.From))
	case "log":
		mb = email.RouteSends(mb, email.NewLogSender())
	}

	logging.Log.WithField("provider", cfg.Mail.Provider).WithField("sender", cfg.Delivery.Sender).Info("Mailbox ready")
	return mb, nil
}

func newCompleter(cfg models.SummarizerConfig) (summarizer.Completer, error) {
	policy := retry.FromConfig(cfg.Retry)
	gemini := func() summarizer.Completer {
		return summarizer.WithRetry(summarizer.NewGeminiClient(cfg.APIKey, cfg.Model, cfg.Timeout), policy)
	}
	ollama := func() summarizer.Completer {
		return summarizer.WithRetry(summarizer.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout), policy)
	}

	switch cfg.Provider {
	case "gemini":
		return gemini(), nil
	case "ollama":
		return ollama(), nil
	case "auto":
		if cfg.APIKey == "" {
			return ollama(), nil
		}
		return summarizer.NewFallbackCompleter(gemini(), ollama()), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Provider)
	}
}

// newLocker always guards in-process and adds Redis when configured
func (a *app) newLocker(cfg models.RedisConfig) lock.Locker {
	chain := lock.Chain{lock.NewLocal()}
	if cfg.Addr == "" {
		return chain
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	logging.Log.WithField("addr", cfg.Addr).Info("Using Redis run lock")
	return append(chain, lock.NewRedis(rdb))
}

// newPublisher returns nil when events are disabled or the broker is unreachable
func (a *app) newPublisher(cfg models.EventsConfig) *events.Publisher {
	if cfg.URL == "" {
		return nil
	}
	pub, err := events.NewPublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		logging.Log.WithError(err).Warn("Event publishing disabled")
		return nil
	}
	a.closers = append(a.closers, pub.Close)
	return pub
}

func (a *app) newArchiver(ctx context.Context, cfg models.ArchiveConfig) *archive.Archiver {
	var storage archive.Storage
	switch strings.ToLower(cfg.Provider) {
	case "s3":
		s3 := archive.NewS3Storage(cfg.Endpoint, cfg.Bucket, cfg.AccessKey, cfg.SecretKey, cfg.PublicURLBase, cfg.Region)
		if err := s3.CreateBucket(ctx); err != nil {
			logging.Log.WithError(err).WithField("bucket", cfg.Bucket).Warn("Could not create archive bucket")
		}
		storage = s3
	case "file":
		storage = archive.NewFileStorage(cfg.Dir)
	case "log":
		storage = archive.NewLogStorage()
	default:
		return nil
	}

	var browser snapshot.Browser
	if cfg.PDF {
		snapshot.StartCleanup(ctx)
		browser = snapshot.NewRodBrowser()
	}
	return archive.NewArchiver(storage, browser)
}

// runOnce prints the run result as JSON and returns the process exit code
func runOnce(ctx context.Context, r *runner.Runner) int {
	result, err := r.RunOnce(ctx)
	if err != nil {
		var runErr *runner.RunError
		if errors.As(err, &runErr) {
			logging.Log.WithField("stage", runErr.Stage).WithField("kind", runErr.Err.Kind).Errorf("Run failed: %v", runErr.Err)
		} else {
			logging.Log.WithField("kind", failure.KindOf(err)).Errorf("Run failed: %v", err)
		}
		return 1
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logging.Log.Errorf("Encode result: %v", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

func serve(ctx context.Context, cfg *models.Config, a *app) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := httpserver.New(a.store, a.runner, cfg.HTTP.AdminToken)
	g.Go(func() error {
		return srv.Run(ctx, cfg.HTTP.Address)
	})

	if cfg.Scheduler.Enabled {
		sched, err := runner.NewScheduler(a.runner, cfg.Scheduler.Time, cfg.Scheduler.Timezone)
		if err != nil {
			return err
		}
		g.Go(func() error {
			sched.Start(ctx)
			return nil
		})
	}

	logging.Log.Infof("Newsletter digest service started on %s", cfg.HTTP.Address)
	return g.Wait()
}

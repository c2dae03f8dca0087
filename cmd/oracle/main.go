package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/pokeroracle/config"
	"github.com/alejandrodnm/pokeroracle/internal/adapters/archive"
	"github.com/alejandrodnm/pokeroracle/internal/adapters/notify"
	"github.com/alejandrodnm/pokeroracle/internal/adapters/pokernow"
	"github.com/alejandrodnm/pokeroracle/internal/adapters/postgres"
	"github.com/alejandrodnm/pokeroracle/internal/adapters/redislock"
	"github.com/alejandrodnm/pokeroracle/internal/adapters/storage"
	"github.com/alejandrodnm/pokeroracle/internal/application/odds"
	"github.com/alejandrodnm/pokeroracle/internal/application/syncer"
	"github.com/alejandrodnm/pokeroracle/internal/metrics"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
	"github.com/alejandrodnm/pokeroracle/internal/resolution"
	"golang.org/x/sync/errgroup"
)

// backend es lo que el binario necesita del store: el worker, el operador y el seed.
type backend interface {
	ports.MarketStore
	ports.SettlementStore
	ports.MarketSeeder
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one sync tick and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the full tick table (default: compact 1-line)")
	audit := flag.String("audit", "", "fetch every hand of TABLE_ID, print them and the current verdict")
	csvPath := flag.String("csv", "", "parse a full CSV log export and print its hands")
	seedPath := flag.String("seed", "", "load tournaments and markets from a YAML file into the store")
	approve := flag.String("approve", "", "settle the proposed winner of MARKET_ID")
	reject := flag.String("reject", "", "reject the proposed winner of MARKET_ID and reopen it")
	resume := flag.String("resume", "", "lift the pause on MARKET_ID")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := notify.NewConsole(*table || *once)

	// Modos que no necesitan store.
	if *csvPath != "" {
		if err := runCSV(*csvPath, console); err != nil {
			slog.Error("csv export failed", "err", err, "file", *csvPath)
			os.Exit(1)
		}
		return
	}

	m := metrics.New()
	source, err := openSource(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to set up hand source", "err", err)
		os.Exit(1)
	}
	resolver := resolution.NewCompiler(source)

	if *audit != "" {
		runAudit(ctx, source, resolver, console, *audit)
		return
	}

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "driver", cfg.Storage.Driver)
		os.Exit(1)
	}
	defer closeStore()

	switch {
	case *seedPath != "":
		n, err := loadSeed(ctx, store, *seedPath)
		if err != nil {
			slog.Error("seed failed", "err", err, "file", *seedPath)
			os.Exit(1)
		}
		slog.Info("seed loaded", "file", *seedPath, "markets", n)
		return
	case *approve != "" || *reject != "" || *resume != "":
		if err := settle(ctx, store, *approve, *reject, *resume); err != nil {
			slog.Error("settlement action failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("pokeroracle starting",
		"config", *configPath,
		"interval", cfg.SyncInterval(),
		"storage", cfg.Storage.Driver,
		"redis", cfg.Redis.Enabled,
		"archive", cfg.Archive.Enabled,
		"once", *once,
	)

	w := syncer.New(syncer.Config{
		Interval:          cfg.SyncInterval(),
		TournamentTimeout: cfg.TournamentTimeout(),
		LockTTL:           cfg.LockTTL(),
	}, store, source, resolver, odds.NewEngine(store), nil)
	w.SetNotifier(notify.NewNotifier(console, senders(cfg.Notify), cfg.Notify.Events))
	w.SetRecorder(m)

	if cfg.Redis.Enabled {
		locks, err := redislock.New(ctx, redislock.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLS,
		})
		if err != nil {
			slog.Error("failed to connect to redis", "err", err, "addr", cfg.Redis.Addr)
			os.Exit(1)
		}
		defer locks.Close()
		w.SetLockManager(locks)
	}

	if *once {
		w.RunOnce(ctx)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	if cfg.Metrics.Addr != "" {
		serveMetrics(gctx, g, cfg.Metrics.Addr, m)
	}

	if err := g.Wait(); err != nil {
		slog.Error("oracle exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("pokeroracle stopped cleanly")
}

// openSource crea el cliente del log y, si está configurado, el archivo S3 delante.
func openSource(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (ports.HandSource, error) {
	client := pokernow.NewClient(pokernow.Config{
		BaseURL:    cfg.PokerNow.BaseURL,
		MaxHand:    cfg.PokerNow.MaxHand,
		BatchSize:  cfg.PokerNow.BatchSize,
		BatchDelay: time.Duration(*cfg.PokerNow.BatchDelayMs) * time.Millisecond,
		RatePerSec: cfg.PokerNow.RatePerSec,
		Burst:      cfg.PokerNow.Burst,
		MaxRetries: *cfg.PokerNow.MaxRetries,
		Timeout:    time.Duration(cfg.PokerNow.TimeoutSec) * time.Second,
	})
	client.SetProbeRecorder(m)

	if !cfg.Archive.Enabled {
		return client, nil
	}
	blobs, err := archive.NewS3Writer(ctx, archive.S3Config{
		Endpoint:       cfg.Archive.Endpoint,
		Region:         cfg.Archive.Region,
		Bucket:         cfg.Archive.Bucket,
		AccessKey:      cfg.Archive.AccessKey,
		SecretKey:      cfg.Archive.SecretKey,
		UseSSL:         cfg.Archive.UseSSL,
		ForcePathStyle: cfg.Archive.ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("hand archive enabled", "bucket", cfg.Archive.Bucket)
	return archive.NewSource(client, blobs), nil
}

// openStore abre SQLite o Postgres (con migraciones) según storage.driver.
func openStore(ctx context.Context, cfg config.StorageConfig) (backend, func(), error) {
	if cfg.Driver == "postgres" {
		client, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.DSN,
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := client.RunMigrations(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		return postgres.NewMarketStore(client.Pool()), client.Close, nil
	}

	store, err := storage.NewSQLiteStorage(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// senders construye los canales externos configurados por entorno.
func senders(cfg config.NotifyConfig) []notify.Sender {
	var out []notify.Sender
	if cfg.DiscordWebhook != "" {
		out = append(out, notify.NewDiscordSender(cfg.DiscordWebhook))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		out = append(out, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	return out
}

// serveMetrics expone /metrics hasta que el contexto del grupo se cancele.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		slog.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"ThreadSentinel/internal/accounts"
	"ThreadSentinel/internal/aiclient"
	"ThreadSentinel/internal/api"
	"ThreadSentinel/internal/breaker"
	"ThreadSentinel/internal/collector"
	"ThreadSentinel/internal/compose"
	"ThreadSentinel/internal/config"
	"ThreadSentinel/internal/dedup"
	"ThreadSentinel/internal/notifier"
	"ThreadSentinel/internal/quota"
	"ThreadSentinel/internal/scheduler"
	"ThreadSentinel/internal/scoring"
	"ThreadSentinel/internal/store"
	"ThreadSentinel/internal/transport"
	"ThreadSentinel/internal/trigger"
)

type options struct {
	Config      string `short:"c" long:"config" env:"CONFIG_PATH" default:"configs/config.yaml" description:"Path to the YAML config file"`
	Once        bool   `long:"once" description:"Run a single posting cycle and exit"`
	MigrateOnly bool   `long:"migrate-only" description:"Apply database migrations (and the seed file) and exit"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] load .env: %v", err)
	}

	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	log.Println("[INFO] ThreadSentinel starting...")

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init store
	st, err := store.Open(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer st.Close()

	if cfg.Database.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.Database.SeedFile)
		if err != nil {
			log.Fatalf("[FATAL] load seed: %v", err)
		}
		if err := applySeed(ctx, st, seed); err != nil {
			log.Fatalf("[FATAL] apply seed: %v", err)
		}
	}
	if opts.MigrateOnly {
		log.Println("[INFO] migrations applied, exiting")
		return
	}

	// Init AI quota
	var counter quota.Counter = st
	if cfg.Redis.URL != "" {
		rc, err := quota.ConnectRedis(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("[FATAL] connect redis: %v", err)
		}
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Printf("[WARN] redis unreachable, using sqlite quota counter: %v", err)
		} else {
			counter = quota.NewRedisCounter(rc)
			log.Println("[INFO] AI quota counter: redis")
		}
	}
	qm := quota.NewManager(counter, quota.Config{DailyLimit: cfg.AI.DailyLimit, PerMinute: cfg.AI.PerMinute})

	// Init scorer and composer
	var (
		scorer   scoring.Scorer   = scoring.NewHeuristic()
		composer compose.Composer = compose.TemplateComposer{}
		quotaRep trigger.QuotaReporter
	)
	if cfg.AIEnabled() {
		ai := aiclient.New(aiclient.Config{
			BaseURL:  cfg.AI.BaseURL,
			APIKey:   cfg.AI.APIKey,
			Model:    cfg.AI.Model,
			ProxyURL: cfg.Proxy,
			Timeout:  time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		})
		scorer = scoring.NewAIAssisted(ai, qm)
		if cfg.AI.ComposeReplies {
			composer = compose.NewAIComposer(ai, qm)
		}
		quotaRep = qm
		log.Printf("[INFO] relevance scoring: ai (%s) with heuristic fallback", cfg.AI.Model)
	} else {
		log.Println("[INFO] relevance scoring: heuristic")
	}

	// Init discussion source
	source, err := collector.New(collector.Options{
		Mode:         cfg.Reddit.Mode,
		UserAgent:    cfg.Reddit.UserAgent,
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		Username:     cfg.Reddit.Username,
		Password:     cfg.Reddit.Password,
		ProxyURL:     cfg.Proxy,
	})
	if err != nil {
		log.Fatalf("[FATAL] init discussion source: %v", err)
	}
	log.Printf("[INFO] discussion source: %s", source.Name())

	// Init Telegram notifier
	var (
		notif notifier.Notifier = notifier.Noop{}
		tn    *notifier.TelegramNotifier
	)
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		notif = tn
	} else {
		log.Println("[WARN] telegram not configured, alerts go to the log only")
	}

	brk := breaker.New(st, breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		BaseBackoff:      time.Duration(cfg.Breaker.BaseBackoffMinutes) * time.Minute,
		MaxBackoff:       time.Duration(cfg.Breaker.MaxBackoffMinutes) * time.Minute,
	})
	pool := accounts.NewPool(st, transport.NewRedditPoster(cfg.Reddit.UserAgent))

	sched := scheduler.New(scheduler.Deps{
		Campaigns: st,
		Breaker:   brk,
		Accounts:  pool,
		Source:    source,
		Scorer:    scorer,
		Dedup:     dedup.NewGuard(st),
		Composer:  composer,
		Notifier:  notif,
	}, scheduler.Config{
		CandidateLimit:         cfg.Posting.CandidateLimit,
		CampaignDelay:          cfg.CampaignDelay(),
		DefaultSubreddits:      cfg.Posting.DefaultSubreddits,
		DefaultCooldownMinutes: cfg.Posting.DefaultCooldownMinutes,
		MaxScheduleDrift:       cfg.MaxScheduleDrift(),
	})

	trig := trigger.New(ctx, trigger.Deps{
		Cycler:   sched,
		Store:    st,
		History:  st,
		Breaker:  brk,
		Accounts: pool,
		Quota:    quotaRep,
		Notifier: notif,
	}, trigger.Schedule{
		CycleCron:      cfg.Schedule.CycleCron,
		ReleaseCron:    cfg.Schedule.ReleaseCron,
		DailyResetCron: cfg.Schedule.DailyResetCron,
		NotifyCycles:   cfg.Telegram.NotifyCycles,
	})

	if opts.Once {
		res, err := trig.RunNow(ctx)
		if err != nil {
			log.Fatalf("[FATAL] posting cycle: %v", err)
		}
		log.Printf("[INFO] cycle done: skipped=%v posts=%d errors=%d", res.Skipped, res.TotalPosts, len(res.Errors))
		return
	}

	if err := trig.RegisterAll(); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	trig.Start()
	defer trig.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, trig.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Start admin API
	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.NewRouter(api.NewHandler(trig, pool, brk, st), cfg.API.Token),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[INFO] admin API listening on %s", cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] admin API: %v", err)
			stop()
		}
	}()

	if cfg.Schedule.RunOnStart {
		log.Println("[INFO] run_on_start enabled, executing a posting cycle now")
		go func() {
			if _, err := trig.RunNow(ctx); err != nil {
				log.Printf("[ERROR] startup cycle: %v", err)
			}
		}()
	}

	log.Println("[INFO] ThreadSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Println("[INFO] shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] admin API shutdown: %v", err)
	}
	log.Println("[INFO] ThreadSentinel stopped")
}

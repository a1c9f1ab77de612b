package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"flyover/internal/api"
	"flyover/pkg/audio"
	"flyover/pkg/cache"
	"flyover/pkg/camera"
	"flyover/pkg/config"
	"flyover/pkg/db"
	"flyover/pkg/flyover"
	"flyover/pkg/llm"
	"flyover/pkg/llm/gemini"
	"flyover/pkg/llm/prompts"
	"flyover/pkg/logging"
	"flyover/pkg/narration"
	"flyover/pkg/probe"
	"flyover/pkg/registry"
	"flyover/pkg/tour"
	"flyover/pkg/tracker"
	"flyover/pkg/tts"
	"flyover/pkg/tts/cached"
	"flyover/pkg/tts/cartesia"
	"flyover/pkg/tts/edgetts"
	"flyover/pkg/tts/sapi"
	"flyover/pkg/version"
	"flyover/pkg/watcher"
)

var (
	configPath = flag.String("config", "configs/flyover.yaml", "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	// Secrets may live in .env; a missing file is fine.
	_ = godotenv.Load()

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()
	tts.SetLogPath(cfg.TTS.History)

	slog.Info("Flyover Started", "version", version.Version)

	reg, err := registry.New(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("failed to load locations: %w", err)
	}

	if every := time.Duration(cfg.Registry.Watch); every > 0 {
		w := watcher.New(cfg.Registry.Path)
		go w.Run(ctx, every, func(p string) {
			if err := reg.Reload(p); err != nil {
				slog.Warn("Location reload failed, keeping previous set", "error", err)
				return
			}
			slog.Info("Locations reloaded", "count", reg.Len())
		})
	}

	tr := tracker.New()

	var store cache.Store
	if cfg.Cache.Enabled {
		dbConn, err := initDB(cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()
		store = cache.NewSQLiteStore(dbConn)
	}

	primary, fallback := initSynthesis(cfg, store, tr)
	writer, llmProv := initWriter(cfg, tr)

	loader := initLoader(cfg)
	arb := audio.NewArbiter(loader)
	defer arb.Close()
	arb.SetForegroundVolume(cfg.Audio.ForegroundVolume)
	music := audio.NewMusic(arb, musicTracks(cfg), time.Duration(cfg.Audio.Fade))

	hub := api.NewHub()
	defer hub.Close()
	choreo := camera.NewChoreographer(initCamera(cfg, hub), time.Duration(cfg.Tour.MoveTolerance))

	voice := voiceFor(cfg)
	pipeline := narration.NewPipeline(primary, cfg.Narration.Concurrency)
	speaker := narration.NewSpeaker(primary, fallback, arb, voice, tr)

	ctl := flyover.New(flyover.Deps{
		Camera:   choreo,
		Pipeline: pipeline,
		Arbiter:  arb,
		Speaker:  speaker,
		Writer:   writer,
		Music:    music,
	}, flyover.Options{
		Voice:          voice,
		IntroText:      cfg.Narration.IntroText,
		IntroFile:      cfg.Narration.IntroFile,
		PrepareTimeout: time.Duration(cfg.Narration.PrepareTimeout),
		Rewrite:        cfg.Narration.Rewrite && writer != nil,
	})
	defer ctl.Close()

	updates, unsubscribe := ctl.Subscribe()
	defer unsubscribe()
	go hub.Run(ctx, updates)

	probes := []probe.Probe{
		probe.Locations(reg),
		probe.Synthesis("Narration Voice", primary, false),
	}
	if fallback != nil {
		probes = append(probes, probe.Synthesis("Fallback Voice", fallback, false))
	}
	if llmProv != nil {
		probes = append(probes, probe.Writer(llmProv))
	}
	report := probe.Run(ctx, probe.DefaultTimeout, probes)
	report.Log()
	if err := report.Err(); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	opts := tour.CompileOptions{
		Zoom:       cfg.Tour.Zoom,
		Pitch:      cfg.Tour.Pitch,
		FlightTime: time.Duration(cfg.Tour.FlightTime),
		Linger:     time.Duration(cfg.Tour.Linger),
	}
	handlers := serverHandlers{
		tour:  api.NewTourHandler(reg, ctl, opts),
		audio: api.NewAudioHandler(music, speaker),
		stats: api.NewStatsHandler(tr, pipeline),
	}
	return runServer(ctx, cfg, handlers, hub)
}

func initDB(cfg *config.Config) (*db.DB, error) {
	dbConn, err := db.Open(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if ttl := time.Duration(cfg.Cache.TTL); ttl > 0 {
		if n, err := dbConn.PruneClips(ttl); err != nil {
			slog.Warn("Cache prune failed", "error", err)
		} else if n > 0 {
			slog.Info("Pruned unused narration clips", "entries", n)
		}
	}
	if n, size, err := dbConn.ClipUsage(); err == nil {
		slog.Info("Audio cache ready", "clips", n, "mb", size>>20)
	}
	return dbConn, nil
}

// initSynthesis builds the narration voice and the voice direct speech falls
// back to. fallback is nil when disabled.
func initSynthesis(cfg *config.Config, store cache.Store, tr *tracker.Tracker) (primary, fallback tts.Provider) {
	primary = newSynthesizer(cfg, cfg.TTS.Engine, tr)
	if primary == nil {
		slog.Warn("Unknown synthesis engine, using edge-tts", "engine", cfg.TTS.Engine)
		primary = edgetts.NewProvider(cfg.TTS.EdgeTTS.VoiceID, tr)
	}
	if store != nil {
		primary = cached.Wrap(primary, store, tr)
	}
	if cfg.TTS.Fallback != cfg.TTS.Engine {
		fallback = newSynthesizer(cfg, cfg.TTS.Fallback, tr)
	}
	return primary, fallback
}

func newSynthesizer(cfg *config.Config, engine string, tr *tracker.Tracker) tts.Provider {
	switch engine {
	case "cartesia":
		return cartesia.NewProvider(cfg.TTS.Cartesia, cfg.TTS.Breaker, tr)
	case "edge-tts":
		return edgetts.NewProvider(cfg.TTS.EdgeTTS.VoiceID, tr)
	case "sapi", "windows-sapi":
		return sapi.NewProvider("")
	}
	return nil
}

// voiceFor returns the configured voice of the narration engine.
func voiceFor(cfg *config.Config) string {
	switch cfg.TTS.Engine {
	case "cartesia":
		return cfg.TTS.Cartesia.VoiceID
	case "edge-tts":
		return cfg.TTS.EdgeTTS.VoiceID
	}
	return ""
}

// initWriter returns the narrative writer and its model, or nils when no
// language model is configured.
func initWriter(cfg *config.Config, tr *tracker.Tracker) (*narration.Writer, llm.Provider) {
	if cfg.LLM.Provider != "gemini" {
		return nil, nil
	}
	client, err := gemini.NewClient(cfg.LLM, tr)
	if err != nil {
		slog.Warn("Narrative writer unavailable", "error", err)
		return nil, nil
	}
	pm, err := prompts.Default()
	if err != nil {
		slog.Warn("Narrative prompts unavailable", "error", err)
		return nil, nil
	}
	return narration.NewWriter(client, pm, ""), client
}

func initLoader(cfg *config.Config) audio.Loader {
	if cfg.Audio.Device && os.Getenv("TEST_MODE") == "" {
		return audio.NewSpeakerLoader()
	}
	slog.Info("Audio device disabled, playing silently")
	return audio.SilentLoader{}
}

func initCamera(cfg *config.Config, hub *api.Hub) camera.Engine {
	if cfg.Tour.Camera == "sim" {
		return camera.NewSimEngine(1)
	}
	return hub
}

func musicTracks(cfg *config.Config) map[string]audio.Track {
	return map[string]audio.Track{
		audio.ModeFlyover:  {Path: cfg.Audio.FlyoverTrack, Volume: cfg.Audio.BackgroundVolume},
		audio.ModeShowcase: {Path: cfg.Audio.ShowcaseTrack, Volume: audio.DefaultVolumes[audio.ModeShowcase]},
	}
}

type serverHandlers struct {
	tour  *api.TourHandler
	audio *api.AudioHandler
	stats *api.StatsHandler
}

func runServer(ctx context.Context, cfg *config.Config, h serverHandlers, hub *api.Hub) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address, cfg.Server.Static, api.Handlers{
		Tour:  h.tour,
		Audio: h.audio,
		Stats: h.stats,
		Hub:   hub,
	}, shutdownFunc, logging.RequestLogger)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/coreman2200/funtimes-spectrum/internal/app"
	"github.com/coreman2200/funtimes-spectrum/internal/config"
	"github.com/coreman2200/funtimes-spectrum/internal/diagnostics"
	"github.com/coreman2200/funtimes-spectrum/internal/max7219"
	"github.com/coreman2200/funtimes-spectrum/internal/preview"
	"github.com/coreman2200/funtimes-spectrum/internal/preview/window"
	"github.com/coreman2200/funtimes-spectrum/spi"
)

func main() {
	// ---- Flags (config.yaml supplies the rest) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		driver     = flag.String("driver", "", "display driver: spi | sim")
		cols       = flag.Int("cols", 0, "chips per row")
		rows       = flag.Int("rows", 0, "rows of chips")
		mode       = flag.String("mode", "", "start mode: WAVE | FFT | LOG | MIRROR")
		source     = flag.String("source", "", "audio source: tone | mcp3008")
		addr       = flag.String("addr", "", "HTTP preview address, e.g. :8080")
		win        = flag.Bool("window", false, "open a desktop preview window")
		level      = flag.String("log", "", "log level")
		dump       = flag.String("write-config", "", "write the effective config to this path and exit")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Load config.yaml (optional) ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		cfg = config.Default()
	}

	// ---- Flags override the file ----
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *cols > 0 {
		cfg.Display.Cols = *cols
	}
	if *rows > 0 {
		cfg.Display.Rows = *rows
	}
	if *mode != "" {
		cfg.UI.Mode = strings.ToUpper(*mode)
	}
	if *source != "" {
		cfg.Audio.Source = *source
	}
	if *addr != "" {
		cfg.Preview.Addr = *addr
	}
	if *win {
		cfg.Preview.Window = true
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if *dump != "" {
		if err := config.Save(*dump, cfg); err != nil {
			log.Fatal().Err(err).Msg("write config failed")
		}
		log.Info().Str("path", *dump).Msg("config written")
		return
	}

	if _, err := host.Init(); err != nil {
		log.Warn().Err(err).Msg("periph host init failed; hardware drivers unavailable")
	}

	// ---- Driver selection ----
	hw := app.Hardware{}
	var closers []func() error
	switch cfg.Driver {
	case "spi":
		out, err := spi.InitOutput(spi.Options{
			Port:    cfg.Display.Port,
			Clock:   physic.Frequency(cfg.Display.ClockHz) * physic.Hertz,
			CSPin:   cfg.Display.CSPin,
			Console: cfg.Display.Console,
			Width:   cfg.Display.Cols * 8,
			Height:  cfg.Display.Rows * 8,
		}, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("display init failed")
		}
		hw.Bus = out.Bus
		if out.Fallback != nil {
			hw.Drawers = append(hw.Drawers, out.Fallback)
		}
		closers = append(closers, out.Close)
	default:
		hw.Bus = max7219.NopBus{}
	}

	sampler, closeSampler, err := app.OpenSampler(cfg.Audio)
	if err != nil {
		log.Fatal().Err(err).Msg("audio init failed")
	}
	hw.Sampler = sampler
	closers = append(closers, closeSampler)

	if name := cfg.UI.HeartbeatPin; name != "" {
		if p := gpioreg.ByName(name); p != nil {
			hw.LED = p
		} else {
			log.Warn().Str("pin", name).Msg("no heartbeat GPIO")
		}
	}

	// ---- Previews ----
	w := cfg.Display.Cols * 8
	h := cfg.Display.Rows * 8
	var hub *preview.Hub
	if cfg.Preview.Addr != "" {
		hub = preview.NewHub(w, h, log.Logger)
		hw.Drawers = append(hw.Drawers, hub)
	}
	var pw *window.Window
	if cfg.Preview.Window {
		pw = window.New(w, h, cfg.Preview.Scale)
		hw.Drawers = append(hw.Drawers, pw)
	}

	a, err := app.New(cfg, hw, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("build failed")
	}
	closers = append(closers, a.Close)
	a.Diag.Subscribe(func(d diagnostics.Diagnostic) {
		log.Warn().Str("code", d.Code).Str("detail", d.Detail).Msg(d.Summary)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- HTTP routes ----
	var srv *http.Server
	if hub != nil {
		hub.Health = a.Health
		hub.Control = a.Input.Inject
		a.Diag.Subscribe(hub.PushDiag)
		mux := http.NewServeMux()
		hub.Routes(mux)
		srv = &http.Server{
			Addr:         cfg.Preview.Addr,
			Handler:      withCORS(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Preview.Addr).Str("driver", cfg.Driver).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server crashed")
			}
		}()
	}

	// ---- Run, supervised ----
	looper := app.NewLooper(cfg.MaxRestarts, log.Logger)
	runCtx, cancelRun := context.WithCancel(ctx)
	result := make(chan error, 1)
	go func() {
		result <- looper.Run(ctx, a.Run)
		cancelRun()
	}()

	if pw != nil {
		pw.Inject = a.Input.Inject
		// The window owns the main goroutine; closing it stops the run.
		if err := pw.Run(runCtx); err != nil {
			log.Warn().Err(err).Msg("preview window")
		} else {
			stop()
		}
	}
	err = <-result
	cancelRun()

	log.Info().Msg("shutting down")
	if srv != nil {
		_ = srv.Close()
	}
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i]()
	}
	if hw.LED != nil {
		_ = hw.LED.Out(gpio.Low)
	}
	if err != nil {
		log.Error().Err(err).Msg("giving up")
		os.Exit(1)
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}

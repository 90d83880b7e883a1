package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thatsimonsguy/grow-controller/db"
	"github.com/thatsimonsguy/grow-controller/internal/config"
	"github.com/thatsimonsguy/grow-controller/internal/console"
	"github.com/thatsimonsguy/grow-controller/internal/datadog"
	"github.com/thatsimonsguy/grow-controller/internal/gpio"
	"github.com/thatsimonsguy/grow-controller/internal/house"
	"github.com/thatsimonsguy/grow-controller/internal/logging"
	"github.com/thatsimonsguy/grow-controller/internal/manager"
	"github.com/thatsimonsguy/grow-controller/internal/model"
	"github.com/thatsimonsguy/grow-controller/internal/notifications"
	"github.com/thatsimonsguy/grow-controller/internal/store"
	"github.com/thatsimonsguy/grow-controller/internal/zone"
	"github.com/thatsimonsguy/grow-controller/system/shutdown"
	"github.com/thatsimonsguy/grow-controller/system/startup"
)

func main() {
	cfg := config.Load()
	model.SetUTCOffset(cfg.UTCOffsetHours)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "grow> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "q",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open console:", err)
		os.Exit(1)
	}

	logFile, err := logging.Init(cfg.LogLevel, cfg.LogFile, rl.Stderr())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialise logging:", err)
		os.Exit(1)
	}
	defer logFile.Close()

	log.Info().
		Str("zones_file", cfg.ZonesFile).
		Str("history_db", cfg.HistoryDB).
		Bool("simulate", cfg.Simulate).
		Msg("Starting grow controller")

	if cfg.EnableDatadog {
		datadog.InitMetrics(cfg.DDAgentAddr, cfg.DDNamespace, cfg.DDTags)
		defer datadog.Close()
	}
	notifications.Init(cfg.NtfyTopic)

	if !cfg.Simulate {
		prepareRelays(cfg)
	}

	history, err := db.Open(cfg.HistoryDB)
	if err != nil {
		shutdown.WithError(err, "Failed to open history database")
		return
	}
	defer history.Close()

	settings := store.New(cfg.ZonesFile)
	cfgs := settings.LoadOrDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui, err := buildSurfaces(cfg)
	if err != nil {
		shutdown.WithError(err, "Invalid button configuration")
		return
	}
	initSurfaces(ctx, &ui)

	zb := zone.NewBus()
	h := house.New()
	if err := h.Init(buildZones(cfg, cfgs, zb)); err != nil {
		shutdown.WithError(err, "Failed to assemble zones")
		return
	}
	attacher := startup.NewAttacher(time.Duration(cfg.DeviceAttachTimeoutSeconds) * time.Second)
	for _, z := range h.Zones() {
		z.Init(ctx, attacher.Attach)
	}

	recorder := db.Recorder{DB: history}
	opts := manager.Options{
		Board:          ui.board,
		Display:        ui.display,
		Remote:         ui.remote,
		History:        recorder,
		Out:            rl.Stdout(),
		ConfirmDelta:   cfg.ConfirmDelta,
		ArmIdleTimeout: time.Duration(cfg.ArmIdleTimeoutSeconds) * time.Second,
		RemoteSpeed:    cfg.RemoteSpeed,
		PageInterval:   time.Duration(cfg.PageSeconds) * time.Second,
	}
	if notifications.Enabled() {
		opts.Notify = notifications.Send
	}
	mgr := manager.New(h, zb, opts)

	con := console.New(console.Deps{
		House:        h,
		Controller:   mgr,
		Settings:     settings,
		Calibrations: recorder,
		Out:          rl.Stdout(),
		ConfirmDelta: cfg.ConfirmDelta,
	})

	g, gctx := errgroup.WithContext(ctx)
	for _, z := range h.Zones() {
		g.Go(func() error { return z.Run(gctx) })
	}
	g.Go(func() error { return mgr.Run(gctx) })
	if ui.buttons != nil {
		g.Go(func() error {
			return mgr.RunButtons(gctx, ui.buttons, func(ctx context.Context, id uint8) error {
				w, err := h.Water(id)
				if err != nil {
					return err
				}
				return w.Request(ctx)
			})
		})
	}
	g.Go(func() error {
		if err := con.Run(gctx, rl); !errors.Is(err, console.ErrQuit) {
			return err
		}
		stop()
		return nil
	})

	fmt.Fprint(rl.Stdout(), con.Help())
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Controller stopped with error")
	}
	shutdown.Teardown(opts.Board, opts.Display)
	log.Info().Msg("Grow controller stopped")
}

// prepareRelays refuses to start with a relay already energized and
// installs the boot script that keeps them off across reboots.
func prepareRelays(cfg config.Config) {
	pins := relays(cfg)
	if err := gpio.ValidateStartupPins(pins); err != nil {
		shutdown.WithError(err, "Refusing to drive relays from an unsafe state")
		return
	}
	for _, pin := range pins {
		shutdown.RegisterRelays(pin)
	}
	if cfg.BootScriptPath == "" {
		return
	}
	if err := startup.WriteBootScript(cfg.BootScriptPath, pins); err != nil {
		log.Warn().Err(err).Msg("Failed to write relay boot script")
		return
	}
	log.Info().Str("path", cfg.BootScriptPath).Int("relays", len(pins)).Msg("Relay boot script written")
}

func initSurfaces(ctx context.Context, ui *surfaces) {
	if ui.board != nil {
		if err := ui.board.Init(ctx); err != nil {
			log.Warn().Err(err).Msg("Indicator board unavailable")
			ui.board = nil
		}
	}
	if ui.display != nil {
		if err := ui.display.Init(ctx); err != nil {
			log.Warn().Err(err).Msg("Text display unavailable")
			ui.display = nil
		}
	}
}

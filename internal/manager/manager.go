// Package manager owns the cross-zone procedures: watering, the
// interactive position-finder, and the board and display renderers.
package manager

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thatsimonsguy/grow-controller/db"
	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
	"github.com/thatsimonsguy/grow-controller/internal/zone"
)

const (
	DefaultConfirmDelta   int32 = 5
	DefaultArmIdleTimeout       = 2 * time.Minute
	DefaultRemoteSpeed    int8  = 50
	DefaultPageInterval         = 3 * time.Second
	wateringTries               = 3
)

// House is the subset of the house gateway the manager drives.
type House interface {
	Lock(ctx context.Context) error
	Unlock()
	WaterSettings(id uint8) (model.WaterSettings, error)
	DisplayStatus(kind model.Kind, id uint8) (model.DisplayStatus, error)
	CollectDisplayStatus() []model.ZoneDisplay
	ArmGoto(ctx context.Context, id uint8, x, y, z int32) error
	ArmStates(id uint8) (*bus.Broadcast[model.CmdState], error)
	ArmState(id uint8) (model.CmdState, error)
	ArmCommands(id uint8) (chan<- model.ArmCmd, error)
	ArmPosition(id uint8) (model.Position, error)
	ConfirmArmPosition(waterID uint8, delta int32) (bool, model.Position, error)
	SetWaterPosition(id uint8, p model.Position) error
	PumpRun(ctx context.Context, id uint8) error
	PumpStop(ctx context.Context, id uint8) error
	ReportWater(ctx context.Context, id uint8, ind model.Indicator, msg string) error
}

// History persists log entries and watering runs. Errors are logged and
// never stop the caller.
type History interface {
	RecordZoneLog(e model.ZoneLog) error
	RecordSysLog(e model.SysLog) error
	RecordWateringRun(run db.WateringRun) error
}

type Options struct {
	Board   device.Board
	Display device.TextDisplay
	Remote  device.RemoteControl
	History History
	// Notify pushes an operator alert. Nil disables alerts.
	Notify func(title, message string) error
	// Out receives zone log and status lines while their toggles are on.
	Out io.Writer

	ConfirmDelta   int32
	ArmIdleTimeout time.Duration
	RemoteSpeed    int8
	PageInterval   time.Duration
}

type Manager struct {
	house House
	bus   *zone.Bus
	opts  Options

	SysLog     *bus.LogStream[model.SysLog]
	ShowLog    *bus.Watch[bool]
	ShowStatus *bus.Watch[bool]

	pager *Pager
	sleep func(ctx context.Context, d time.Duration) error

	// Serializes board writes between the update loop and operator commands.
	boardMu sync.Mutex

	mu       sync.Mutex
	inflight map[uint8]bool
	tasks    sync.WaitGroup
}

func New(h House, b *zone.Bus, opts Options) *Manager {
	if opts.ConfirmDelta == 0 {
		opts.ConfirmDelta = DefaultConfirmDelta
	}
	if opts.ArmIdleTimeout == 0 {
		opts.ArmIdleTimeout = DefaultArmIdleTimeout
	}
	if opts.RemoteSpeed == 0 {
		opts.RemoteSpeed = DefaultRemoteSpeed
	}
	if opts.PageInterval == 0 {
		opts.PageInterval = DefaultPageInterval
	}
	return &Manager{
		house:      h,
		bus:        b,
		opts:       opts,
		SysLog:     bus.NewLogStream[model.SysLog](128),
		ShowLog:    bus.NewWatch(false),
		ShowStatus: bus.NewWatch(false),
		pager:      NewPager(opts.Display, opts.PageInterval),
		sleep:      sleepCtx,
		inflight:   make(map[uint8]bool),
	}
}

// Run consumes zone updates and drives the renderers until ctx is done.
// Watering tasks started from updates are waited for before returning.
func (m *Manager) Run(ctx context.Context) error {
	displays, cancelDisplays := m.bus.Display.Subscribe()
	defer cancelDisplays()
	for _, d := range m.house.CollectDisplayStatus() {
		m.pager.Set(d)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.pager.Run(ctx, displays) })
	g.Go(func() error { return m.handleLogs(ctx) })
	g.Go(func() error {
		m.UpdateBoard(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case u := <-m.bus.Update.Recv():
				m.onUpdate(ctx, u)
			}
		}
	})
	err := g.Wait()
	m.tasks.Wait()
	log.Info().Msg("Manager stopped")
	return err
}

func (m *Manager) onUpdate(ctx context.Context, u zone.Update) {
	m.UpdateBoard(ctx)
	if u.Water == nil {
		return
	}
	req := *u.Water
	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		m.Water(ctx, u.ID, req)
	}()
}

func (m *Manager) syslog(format string, args ...any) {
	e := model.NewSysLog(format, args...)
	m.SysLog.Send(e)
	log.Info().Str("sys", e.Msg).Msg("System log")
}

func (m *Manager) notify(title, message string) {
	if m.opts.Notify == nil {
		return
	}
	if err := m.opts.Notify(title, message); err != nil {
		log.Warn().Err(err).Str("title", title).Msg("Notification failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ToggleLog flips zone log echoing and returns the new setting.
func (m *Manager) ToggleLog() bool { return bus.Toggle(m.ShowLog) }

// ToggleStatus flips zone status echoing and returns the new setting.
func (m *Manager) ToggleStatus() bool { return bus.Toggle(m.ShowStatus) }

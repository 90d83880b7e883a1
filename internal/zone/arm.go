package zone

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type ArmFacts struct {
	Pos      model.Position
	State    model.CmdState
	X        model.CmdState
	Y        model.CmdState
	Degraded bool
	Fault    string
}

// Aggregate combines the per-axis command states: the arm is Idle only
// when both axes are.
func Aggregate(x, y model.CmdState) model.CmdState {
	if x == model.Idle && y == model.Idle {
		return model.Idle
	}
	return model.Busy
}

type Arm struct {
	Device device.Arm

	id     uint8
	bus    *Bus
	status *Status[ArmFacts]

	position   *bus.Broadcast[model.AxisPosition]
	axisState  *bus.Broadcast[model.AxisState]
	health     *bus.Broadcast[model.DeviceEvent]
	states     *bus.Broadcast[model.CmdState]
	positions  <-chan model.AxisPosition
	axisStates <-chan model.AxisState
	events     <-chan model.DeviceEvent
	cmds       chan model.ArmCmd
	results    chan error
}

func NewArm(id uint8, b *Bus) *Arm {
	z := &Arm{
		id:        id,
		bus:       b,
		status:    newStatus(ArmFacts{}),
		position:  bus.NewBroadcast[model.AxisPosition](32),
		axisState: bus.NewBroadcast[model.AxisState](16),
		health:    bus.NewBroadcast[model.DeviceEvent](4),
		states:    bus.NewBroadcast[model.CmdState](16),
		cmds:      make(chan model.ArmCmd, 16),
		results:   make(chan error, 16),
	}
	z.positions, _ = z.position.Subscribe()
	z.axisStates, _ = z.axisState.Subscribe()
	z.events, _ = z.health.Subscribe()
	return z
}

func (z *Arm) Kind() model.Kind             { return model.KindArm }
func (z *Arm) ID() uint8                    { return z.id }
func (z *Arm) Display() model.DisplayStatus { return z.status.Display() }
func (z *Arm) Status() *Status[ArmFacts]    { return z.status }

// Feedback returns the senders the arm device binds to.
func (z *Arm) Feedback() device.ArmFeedback {
	return device.ArmFeedback{Position: z.position, State: z.axisState, Health: z.health}
}

// States carries aggregate ArmState transitions.
func (z *Arm) States() *bus.Broadcast[model.CmdState] { return z.states }

// Commands is the arm's command channel.
func (z *Arm) Commands() chan<- model.ArmCmd { return z.cmds }

func (z *Arm) Config() model.ZoneConfig {
	return model.ZoneConfig{Kind: model.KindArm, ID: z.id}
}

func (z *Arm) Apply(cfg model.ZoneConfig) error {
	return checkConfig(cfg, model.KindArm, z.id)
}

func (z *Arm) Init(ctx context.Context, fn Attach) {
	if z.Device != nil && !attach(ctx, fn, model.KindArm, z.id, "motors", func(ctx context.Context) error {
		return z.Device.Init(ctx, z.id, z.Feedback())
	}) {
		z.Device = nil
	}
}

func (z *Arm) Run(ctx context.Context) error {
	if z.Device == nil {
		forcePublish(z.bus, model.KindArm, z.id, z.status, model.Red, msgNoDevice)
	} else {
		forcePublish(z.bus, model.KindArm, z.id, z.status, model.Green, "")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		z.process(ctx)
	}()
	defer func() { <-done }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-z.positions:
			z.onPosition(p)
		case s := <-z.axisStates:
			z.drainPositions()
			z.onAxisState(s)
		case err := <-z.results:
			if err == nil {
				continue
			}
			facts := z.status.update(func(f *ArmFacts) { f.Fault = err.Error() })
			z.refresh(facts)
		case ev := <-z.events:
			if ev.Connected {
				continue
			}
			facts := z.status.update(func(f *ArmFacts) {
				f.Degraded = true
				f.Fault = "Disconnected"
				if ev.Msg != "" {
					f.Fault = "Disconnected, " + ev.Msg
				}
			})
			z.bus.logf(model.KindArm, z.id, facts.Fault)
			z.refresh(facts)
		}
	}
}

func (z *Arm) onPosition(p model.AxisPosition) {
	z.status.update(func(f *ArmFacts) {
		switch p.Axis {
		case model.AxisX:
			f.Pos.X = p.Pos
		case model.AxisY:
			f.Pos.Y = p.Pos
		case model.AxisZ:
			f.Pos.Z = p.Pos
		}
	})
}

// drainPositions applies positions already queued, so a state change is
// published with the position the device reported before it.
func (z *Arm) drainPositions() {
	for {
		select {
		case p := <-z.positions:
			z.onPosition(p)
		default:
			return
		}
	}
}

func (z *Arm) onAxisState(s model.AxisState) {
	prev := z.status.Snapshot().State
	facts := z.status.update(func(f *ArmFacts) {
		switch s.Axis {
		case model.AxisX:
			f.X = s.State
		case model.AxisY:
			f.Y = s.State
		}
		f.State = Aggregate(f.X, f.Y)
		if f.State == model.Busy && !f.Degraded {
			f.Fault = ""
		}
	})
	if facts.State == prev {
		return
	}
	z.states.Send(facts.State)
	z.bus.logf(model.KindArm, z.id, fmt.Sprintf("%s at %s", facts.State, facts.Pos))
	z.refresh(facts)
}

func (z *Arm) refresh(f ArmFacts) {
	switch {
	case f.Degraded || f.Fault != "":
		publish(z.bus, model.KindArm, z.id, z.status, model.Red, f.Fault)
	case f.State == model.Busy:
		publish(z.bus, model.KindArm, z.id, z.status, model.Blue, "Moving")
	default:
		publish(z.bus, model.KindArm, z.id, z.status, model.Green, "")
	}
}

func (z *Arm) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-z.cmds:
			err := z.execute(ctx, cmd)
			if err != nil {
				log.Error().Err(err).Uint8("arm", z.id).Str("cmd", cmd.Kind.String()).Msg("Arm command failed")
			}
			select {
			case z.results <- err:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (z *Arm) execute(ctx context.Context, cmd model.ArmCmd) error {
	if z.Device == nil {
		return model.DeviceUnavailable(model.KindArm, z.id)
	}
	switch cmd.Kind {
	case model.ArmGoto:
		return z.Device.Goto(ctx, cmd.X, cmd.Y, cmd.Z)
	case model.ArmGotoX:
		return z.Device.GotoX(ctx, cmd.X)
	case model.ArmGotoY:
		return z.Device.GotoY(ctx, cmd.Y)
	case model.ArmStartX:
		return z.Device.StartX(ctx, cmd.Speed)
	case model.ArmStartY:
		return z.Device.StartY(ctx, cmd.Speed)
	case model.ArmStopX:
		return z.Device.StopX(ctx)
	case model.ArmStopY:
		return z.Device.StopY(ctx)
	case model.ArmStop:
		return z.Device.Stop(ctx)
	case model.ArmUpdate:
		return z.Device.UpdatePos(ctx)
	default:
		return fmt.Errorf("%w: unknown arm command %d", model.ErrParse, cmd.Kind)
	}
}

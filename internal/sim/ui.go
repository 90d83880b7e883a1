package sim

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// Board keeps the last byte written and logs changes at debug level.
type Board struct {
	mu     sync.Mutex
	bits   byte
	writes int
}

func (b *Board) Init(context.Context) error { return nil }

func (b *Board) Write(_ context.Context, bits byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bits != b.bits {
		log.Debug().Str("bits", bitString(bits)).Msg("Board")
	}
	b.bits = bits
	b.writes++
	return nil
}

func (b *Board) Bits() byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bits
}

func (b *Board) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func bitString(bits byte) string {
	var sb strings.Builder
	for i := 7; i >= 0; i-- {
		if bits&(1<<i) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

type Display struct {
	mu    sync.Mutex
	lines []string
	pages int
}

func (d *Display) Init(context.Context) error { return nil }

func (d *Display) Print(_ context.Context, lines []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append([]string(nil), lines...)
	d.pages++
	return nil
}

func (d *Display) Clear(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = nil
	return nil
}

func (d *Display) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

func (d *Display) Pages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pages
}

// Remote replays scripted events once bound, then forwards anything
// passed to Send until the binding context ends.
type Remote struct {
	Script []model.RemoteEvent

	mu    sync.Mutex
	input chan model.RemoteEvent
	inits int
}

func (r *Remote) Init(ctx context.Context, tx chan<- model.RemoteEvent) error {
	r.mu.Lock()
	if r.input == nil {
		r.input = make(chan model.RemoteEvent, 16)
	}
	input := r.input
	script := r.Script
	r.Script = nil
	r.inits++
	r.mu.Unlock()

	go func() {
		for _, ev := range script {
			select {
			case tx <- ev:
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-input:
				select {
				case tx <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}

func (r *Remote) Send(ev model.RemoteEvent) {
	r.mu.Lock()
	if r.input == nil {
		r.input = make(chan model.RemoteEvent, 16)
	}
	input := r.input
	r.mu.Unlock()
	input <- ev
}

func (r *Remote) Inits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inits
}

type Buttons struct {
	input chan model.ButtonEvent
	once  sync.Once
}

func (b *Buttons) ch() chan model.ButtonEvent {
	b.once.Do(func() { b.input = make(chan model.ButtonEvent, 8) })
	return b.input
}

func (b *Buttons) Init(ctx context.Context, tx chan<- model.ButtonEvent) error {
	input := b.ch()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-input:
				select {
				case tx <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}

func (b *Buttons) Press(button model.Button) {
	b.ch() <- model.ButtonEvent{Button: button}
}

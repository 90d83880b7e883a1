package manager

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type pageKey struct {
	kind model.Kind
	id   uint8
}

func (k pageKey) less(o pageKey) bool {
	if k.kind != o.kind {
		return k.kind < o.kind
	}
	return k.id < o.id
}

// Pager cycles the text display through one page per zone, ordered by
// kind and id.
type Pager struct {
	display  device.TextDisplay
	interval time.Duration
	advance  chan struct{}

	mu      sync.Mutex
	pages   map[pageKey]model.ZoneDisplay
	current pageKey
	started bool
}

func NewPager(d device.TextDisplay, interval time.Duration) *Pager {
	return &Pager{
		display:  d,
		interval: interval,
		advance:  make(chan struct{}, 1),
		pages:    make(map[pageKey]model.ZoneDisplay),
	}
}

// Set stores the latest status of a zone and reports whether it is the
// page currently shown.
func (p *Pager) Set(d model.ZoneDisplay) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := pageKey{d.Kind, d.ID}
	p.pages[k] = d
	return p.started && k == p.current
}

// Advance requests the next page without waiting for the tick.
func (p *Pager) Advance() {
	select {
	case p.advance <- struct{}{}:
	default:
	}
}

// Pages returns the pages in display order.
func (p *Pager) Pages() []model.ZoneDisplay {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.ZoneDisplay, 0, len(p.pages))
	for _, k := range p.sortedKeys() {
		out = append(out, p.pages[k])
	}
	return out
}

func (p *Pager) sortedKeys() []pageKey {
	keys := make([]pageKey, 0, len(p.pages))
	for k := range p.pages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// next moves to the page after the current one, wrapping around.
func (p *Pager) next() (model.ZoneDisplay, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := p.sortedKeys()
	if len(keys) == 0 {
		return model.ZoneDisplay{}, false
	}
	k := keys[0]
	if p.started {
		for _, c := range keys {
			if p.current.less(c) {
				k = c
				break
			}
		}
	}
	p.current = k
	p.started = true
	return p.pages[k], true
}

func (p *Pager) shown() (model.ZoneDisplay, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.pages[p.current]
	return d, ok && p.started
}

// RenderPage formats a zone status as the four display lines.
func RenderPage(d model.ZoneDisplay) []string {
	return []string{
		fmt.Sprintf("%s %d", d.Kind.Title(), d.ID),
		d.Status.Indicator.String(),
		strings.ReplaceAll(d.Status.Msg, ", ", "\n"),
		d.Status.Changed.Format("15:04:05"),
	}
}

// Run advances every interval and redraws when the shown zone changes.
func (p *Pager) Run(ctx context.Context, updates <-chan model.ZoneDisplay) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.draw(ctx, p.next)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.draw(ctx, p.next)
		case <-p.advance:
			p.draw(ctx, p.next)
			ticker.Reset(p.interval)
		case d, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if p.Set(d) {
				p.draw(ctx, p.shown)
			}
		}
	}
}

func (p *Pager) draw(ctx context.Context, page func() (model.ZoneDisplay, bool)) {
	d, ok := page()
	if !ok || p.display == nil {
		return
	}
	if err := p.display.Print(ctx, RenderPage(d)); err != nil {
		log.Debug().Err(err).Msg("Failed to draw display page")
	}
}

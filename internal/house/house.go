// Package house locates zones by kind and id and forwards imperative
// operations to their devices. It carries no policy.
package house

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/semaphore"

	"github.com/thatsimonsguy/grow-controller/internal/model"
	"github.com/thatsimonsguy/grow-controller/internal/zone"
)

// Zones groups the zones handed to Init.
type Zones struct {
	Air   []*zone.Air
	Light []*zone.Light
	Water []*zone.Water
	Tank  []*zone.Tank
	Pump  []*zone.Pump
	Arm   []*zone.Arm
	Aux   []*zone.Aux
}

type House struct {
	lock *semaphore.Weighted

	air   map[uint8]*zone.Air
	light map[uint8]*zone.Light
	water map[uint8]*zone.Water
	tank  map[uint8]*zone.Tank
	pump  map[uint8]*zone.Pump
	arm   map[uint8]*zone.Arm
	aux   map[uint8]*zone.Aux
	all   []zone.Zone
}

func New() *House {
	return &House{lock: semaphore.NewWeighted(1)}
}

// Init registers the zones. It must be called once, before any operation.
func (h *House) Init(z Zones) error {
	var err error
	if h.air, err = index(z.Air, &h.all); err != nil {
		return err
	}
	if h.light, err = index(z.Light, &h.all); err != nil {
		return err
	}
	if h.water, err = index(z.Water, &h.all); err != nil {
		return err
	}
	if h.tank, err = index(z.Tank, &h.all); err != nil {
		return err
	}
	if h.pump, err = index(z.Pump, &h.all); err != nil {
		return err
	}
	if h.arm, err = index(z.Arm, &h.all); err != nil {
		return err
	}
	if h.aux, err = index(z.Aux, &h.all); err != nil {
		return err
	}
	sort.SliceStable(h.all, func(i, j int) bool {
		if h.all[i].Kind() != h.all[j].Kind() {
			return h.all[i].Kind() < h.all[j].Kind()
		}
		return h.all[i].ID() < h.all[j].ID()
	})
	return nil
}

func index[Z zone.Zone](zs []Z, all *[]zone.Zone) (map[uint8]Z, error) {
	m := make(map[uint8]Z, len(zs))
	for _, z := range zs {
		if _, dup := m[z.ID()]; dup {
			return nil, fmt.Errorf("duplicate zone %s %d", z.Kind(), z.ID())
		}
		m[z.ID()] = z
		*all = append(*all, z)
	}
	return m, nil
}

// Lock acquires the house lock. Waiters are served in arrival order.
func (h *House) Lock(ctx context.Context) error {
	return h.lock.Acquire(ctx, 1)
}

func (h *House) Unlock() {
	h.lock.Release(1)
}

// Zones returns every zone sorted by kind and id.
func (h *House) Zones() []zone.Zone {
	return append([]zone.Zone(nil), h.all...)
}

func lookup[Z any](m map[uint8]Z, kind model.Kind, id uint8) (Z, error) {
	z, ok := m[id]
	if !ok {
		var zero Z
		return zero, model.ZoneNotFound(kind, id)
	}
	return z, nil
}

func (h *House) Air(id uint8) (*zone.Air, error)     { return lookup(h.air, model.KindAir, id) }
func (h *House) Light(id uint8) (*zone.Light, error) { return lookup(h.light, model.KindLight, id) }
func (h *House) Water(id uint8) (*zone.Water, error) { return lookup(h.water, model.KindWater, id) }
func (h *House) Tank(id uint8) (*zone.Tank, error)   { return lookup(h.tank, model.KindTank, id) }
func (h *House) Pump(id uint8) (*zone.Pump, error)   { return lookup(h.pump, model.KindPump, id) }
func (h *House) Arm(id uint8) (*zone.Arm, error)     { return lookup(h.arm, model.KindArm, id) }
func (h *House) Aux(id uint8) (*zone.Aux, error)     { return lookup(h.aux, model.KindAux, id) }

func (h *House) zone(kind model.Kind, id uint8) (zone.Zone, error) {
	for _, z := range h.all {
		if z.Kind() == kind && z.ID() == id {
			return z, nil
		}
	}
	return nil, model.ZoneNotFound(kind, id)
}

func (h *House) DisplayStatus(kind model.Kind, id uint8) (model.DisplayStatus, error) {
	z, err := h.zone(kind, id)
	if err != nil {
		return model.DisplayStatus{}, err
	}
	return z.Display(), nil
}

func (h *House) CollectDisplayStatus() []model.ZoneDisplay {
	out := make([]model.ZoneDisplay, 0, len(h.all))
	for _, z := range h.all {
		out = append(out, model.ZoneDisplay{Kind: z.Kind(), ID: z.ID(), Status: z.Display()})
	}
	return out
}

// Configs returns the persisted form of every zone.
func (h *House) Configs() []model.ZoneConfig {
	out := make([]model.ZoneConfig, 0, len(h.all))
	for _, z := range h.all {
		out = append(out, z.Config())
	}
	return out
}

// Apply pushes settings to existing zones. Configs for zones the house
// does not have are returned as skipped.
func (h *House) Apply(cfgs []model.ZoneConfig) (skipped []model.ZoneConfig, err error) {
	for _, cfg := range cfgs {
		z, lookupErr := h.zone(cfg.Kind, cfg.ID)
		if lookupErr != nil {
			skipped = append(skipped, cfg)
			continue
		}
		if err := z.Apply(cfg); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

package zone

import (
	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// Update is a manager-bound work item. Water is set for watering
// requests; otherwise the update only signals a status change.
type Update struct {
	Kind  model.Kind
	ID    uint8
	Water *WaterRequest
}

// WaterRequest carries the settings and the moisture sample the request
// was raised on. The manager does not re-sample.
type WaterRequest struct {
	Settings model.WaterSettings
	Moisture model.Reading
}

// Bus is the zone bus shared by all runners and the manager.
type Bus struct {
	Update  *bus.Queue[Update]
	Display *bus.Broadcast[model.ZoneDisplay]
	Log     *bus.LogStream[model.ZoneLog]
}

func NewBus() *Bus {
	return &Bus{
		Update:  bus.NewQueue[Update](32),
		Display: bus.NewBroadcast[model.ZoneDisplay](64),
		Log:     bus.NewLogStream[model.ZoneLog](256),
	}
}

func (b *Bus) logf(kind model.Kind, id uint8, msg string) {
	b.Log.Send(model.ZoneLog{Kind: kind, ID: id, Time: model.Now(), Msg: msg})
}

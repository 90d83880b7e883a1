package manager

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// handleLogs persists zone and system log entries and echoes them to the
// console. Zone log and zone status lines are only echoed while their
// toggles are on; system entries always are.
func (m *Manager) handleLogs(ctx context.Context) error {
	out := m.opts.Out
	if out == nil {
		out = io.Discard
	}
	statuses, cancel := m.bus.Display.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-m.bus.Log.Recv():
			if m.opts.History != nil {
				if err := m.opts.History.RecordZoneLog(e); err != nil {
					log.Debug().Err(err).Msg("Failed to record zone log")
				}
			}
			if m.ShowLog.Get() {
				fmt.Fprintln(out, e.String())
			}
		case e := <-m.SysLog.Recv():
			if m.opts.History != nil {
				if err := m.opts.History.RecordSysLog(e); err != nil {
					log.Debug().Err(err).Msg("Failed to record sys log")
				}
			}
			fmt.Fprintln(out, e.String())
			m.UpdateBoard(ctx)
		case d := <-statuses:
			if m.ShowStatus.Get() {
				fmt.Fprintln(out, StatusLine(d))
			}
		}
	}
}

func StatusLine(d model.ZoneDisplay) string {
	line := fmt.Sprintf("%s %s %d: %s", d.Status.Changed.Format("15:04:05"), d.Kind.Title(), d.ID, d.Status.Indicator)
	if d.Status.Msg != "" {
		line += " " + d.Status.Msg
	}
	return line
}

package plugins

import (
	"context"
	"fmt"
	"time"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"
)

// Uptime reports how long the bot has been running.
type Uptime struct {
	started time.Time
	cmds    []*command.Descriptor
}

func NewUptime(_ port.BotAPI, _ map[string]any) (port.Plugin, error) {
	u := &Uptime{started: time.Now()}
	u.cmds = []*command.Descriptor{
		command.New("uptime").
			Title("See how long the bot has been up").
			Doc("Reports the time elapsed since the bot started.").
			Handle(u.handleUptime).
			Build(),
	}

	return u, nil
}

func (u *Uptime) Name() string { return "uptime" }

func (u *Uptime) Commands() []*command.Descriptor { return u.cmds }

func (u *Uptime) FreeText() []*command.FreeText { return nil }

func (u *Uptime) handleUptime(_ context.Context, _ string, _ string, _ *domain.Message) string {
	return FormatDuration(time.Since(u.started))
}

// FormatDuration renders a duration as weeks/days/hours/minutes/seconds.
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Seconds())

	weeks := seconds / (7 * 24 * 3600)
	seconds -= weeks * 7 * 24 * 3600
	days := seconds / (24 * 3600)
	seconds -= days * 24 * 3600
	hours := seconds / 3600
	seconds -= hours * 3600
	minutes := seconds / 60
	seconds -= minutes * 60

	return fmt.Sprintf("%d weeks %d days %d hours %d minutes %d seconds",
		weeks, days, hours, minutes, seconds)
}

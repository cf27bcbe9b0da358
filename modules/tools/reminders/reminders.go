// Package reminders implements the reminder tool module. It registers
// create_reminder (user-configurable tier) and list_reminders (auto-approve
// tier) against the reminder store, and schedules a cron job that pushes due
// reminders to the user's channel.
package reminders

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/arenvik/warden/internal/core"
	"github.com/arenvik/warden/internal/cron"
	"github.com/arenvik/warden/internal/notify"
	"github.com/arenvik/warden/internal/reminder"
	"github.com/arenvik/warden/internal/tool"
)

func init() {
	core.RegisterModule(&Reminders{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Reminders)(nil)
	_ core.Provisioner  = (*Reminders)(nil)
	_ core.Validator    = (*Reminders)(nil)
	_ core.Starter      = (*Reminders)(nil)
)

// Config holds the reminder module configuration.
type Config struct {
	// ListLimit caps how many upcoming reminders list_reminders returns.
	// Defaults to 10.
	ListLimit int `yaml:"list_limit"`

	// DeliverySchedule overrides the cron expression for the due-reminder
	// sweep. Defaults to every minute.
	DeliverySchedule string `yaml:"delivery_schedule"`
}

func (c *Config) defaults() {
	if c.ListLimit <= 0 {
		c.ListLimit = 10
	}
}

// Reminders is the reminder tool module. The store binds at Start, after the
// storage module has provisioned; tools registered earlier reach it through
// the module pointer.
type Reminders struct {
	config Config
	logger *slog.Logger
	appCtx *core.AppContext
	store  reminder.Store

	now   func() time.Time
	newID func() string
}

// ModuleInfo implements core.Module.
func (m *Reminders) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tools.reminder",
		New: func() core.Module { return &Reminders{} },
	}
}

// Configure implements core.Configurable.
func (m *Reminders) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("reminders: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It registers both tools; the
// registry seals before serving, so registration cannot wait for Start.
func (m *Reminders) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.now = time.Now
	m.newID = uuid.NewString

	svc, ok := ctx.Service("tool.registry")
	if !ok {
		return errors.New("reminders: tool.registry service not found")
	}
	registry, ok := svc.(*tool.Registry)
	if !ok {
		return errors.New("reminders: tool.registry is not a *tool.Registry")
	}

	if err := registry.Register(&createReminderTool{module: m}); err != nil {
		return fmt.Errorf("reminders: register create_reminder: %w", err)
	}
	if err := registry.Register(&listRemindersTool{module: m}); err != nil {
		return fmt.Errorf("reminders: register list_reminders: %w", err)
	}
	return nil
}

// Validate implements core.Validator.
func (m *Reminders) Validate() error {
	if m.config.ListLimit > 100 {
		return fmt.Errorf("reminders: list_limit %d exceeds maximum 100", m.config.ListLimit)
	}
	return nil
}

// Start implements core.Starter. It binds the reminder store and, when both
// a scheduler and a channel messenger are available, registers the delivery
// job. Without a messenger reminders are still created and listed; delivery
// resumes once a channel that can push text is configured.
func (m *Reminders) Start() error {
	svc, ok := m.appCtx.Service("reminder.store")
	if !ok {
		return errors.New("reminders: reminder.store service not found (is the storage module loaded?)")
	}
	store, ok := svc.(reminder.Store)
	if !ok {
		return errors.New("reminders: reminder.store is not a reminder.Store")
	}
	m.store = store

	scheduler := m.resolveScheduler()
	if scheduler == nil {
		m.logger.Warn("reminders: no scheduler available; due reminders will not be delivered")
		return nil
	}

	messenger := m.resolveMessenger()
	if messenger == nil {
		m.logger.Warn("reminders: no channel messenger available; due reminders will not be delivered")
		return nil
	}

	job := &DueReminderJob{
		Store:        store,
		Messenger:    messenger,
		Logger:       m.logger,
		ScheduleExpr: m.config.DeliverySchedule,
	}
	if err := scheduler.RegisterJob(job); err != nil {
		return fmt.Errorf("reminders: register delivery job: %w", err)
	}
	return nil
}

func (m *Reminders) resolveScheduler() *cron.Scheduler {
	svc, ok := m.appCtx.Service("cron.scheduler")
	if !ok {
		return nil
	}
	scheduler, ok := svc.(*cron.Scheduler)
	if !ok {
		return nil
	}
	return scheduler
}

func (m *Reminders) resolveMessenger() notify.Messenger {
	svc, ok := m.appCtx.Service("notify.messenger")
	if !ok {
		return nil
	}
	messenger, ok := svc.(notify.Messenger)
	if !ok {
		return nil
	}
	return messenger
}

// clock returns the module's time source, defaulting to the wall clock so
// tool values constructed directly in tests stay usable.
func (m *Reminders) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *Reminders) id() string {
	if m.newID != nil {
		return m.newID()
	}
	return uuid.NewString()
}

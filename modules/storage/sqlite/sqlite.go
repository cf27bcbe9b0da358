// Package sqlite implements warden's persistent storage module: the
// pending-action ledger, the policy override store, the audit trail, the
// conversation transcript, and the reminder store, all backed by a single
// database. It uses modernc.org/sqlite (pure Go, no CGO) with WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arenvik/warden/internal/audit"
	"github.com/arenvik/warden/internal/conversation"
	"github.com/arenvik/warden/internal/core"
	"github.com/arenvik/warden/internal/ledger"
	"github.com/arenvik/warden/internal/policy"
	"github.com/arenvik/warden/internal/reminder"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// timeFormat is how timestamps are stored. Lexicographic order matches
// chronological order, so string comparison works in WHERE clauses.
const timeFormat = time.RFC3339Nano

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ ledger.Store      = (*ledgerStore)(nil)
	_ policy.Store      = (*policyStore)(nil)
	_ audit.Trail       = (*auditTrail)(nil)
	_ conversation.Sink = (*messageSink)(nil)
	_ reminder.Store    = (*reminderStore)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module wires all SQLite-backed stores over one database handle.
type Module struct {
	config    Config
	db        *sql.DB
	logger    *slog.Logger
	ledger    *ledgerStore
	policies  *policyStore
	trail     *auditTrail
	sink      *messageSink
	reminders *reminderStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "storage.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	if dir := filepath.Dir(m.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", m.config.Path)
	if err != nil {
		return fmt.Errorf("sqlite: open %s: %w", m.config.Path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	if m.config.walEnabled() {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(context.Background(), fmt.Sprintf("PRAGMA busy_timeout=%d", m.config.BusyTimeout)); err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return err
	}

	m.db = db
	m.ledger = &ledgerStore{db: db}
	m.policies = &policyStore{db: db}
	m.trail = &auditTrail{db: db}
	m.sink = &messageSink{db: db}
	m.reminders = &reminderStore{db: db}

	ctx.RegisterService("ledger.store", m.ledger)
	ctx.RegisterService("policy.store", m.policies)
	ctx.RegisterService("audit.trail", m.trail)
	ctx.RegisterService("conversation.sink", m.sink)
	ctx.RegisterService("reminder.store", m.reminders)

	m.logger.Info("sqlite storage module provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}

	if err := m.db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}

	var n int
	if err := m.db.QueryRowContext(context.Background(), "SELECT count(*) FROM pending_actions").Scan(&n); err != nil {
		return fmt.Errorf("sqlite: schema check failed: %w", err)
	}

	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite storage module stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Ledger returns the ledger.Store implementation.
func (m *Module) Ledger() ledger.Store { return m.ledger }

// Policies returns the policy.Store implementation.
func (m *Module) Policies() policy.Store { return m.policies }

// Trail returns the audit.Trail implementation.
func (m *Module) Trail() audit.Trail { return m.trail }

// Sink returns the conversation.Sink implementation.
func (m *Module) Sink() conversation.Sink { return m.sink }

// Reminders returns the reminder.Store implementation.
func (m *Module) Reminders() reminder.Store { return m.reminders }

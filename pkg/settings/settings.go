// Package settings reads persisted application settings (the
// application_config table) and applies the logging-related ones.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/logger"
)

// Setting names understood by ApplyLogging.
const (
	LogLevel        = "log.level"
	MessageLogLevel = "log.appender.message-log.level"
)

const (
	loggingPrefix      = "log."
	selectByPrefixStmt = `SELECT name, value FROM application_config WHERE name LIKE $1 || '%' ORDER BY name`
)

// Source looks up settings whose names start with a prefix.
type Source interface {
	Values(ctx context.Context, prefix string) (map[string]string, error)
}

// Store is the application_config backed Source. During startup it reads
// through the connection scope carried by ctx.
type Store struct {
	factory *database.Factory
}

// NewStore returns a Store reading through f.
func NewStore(f *database.Factory) *Store {
	return &Store{factory: f}
}

// Values returns every setting whose name starts with prefix.
func (s *Store) Values(ctx context.Context, prefix string) (map[string]string, error) {
	q, err := s.factory.QuerierFromCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	rows, err := q.QueryContext(ctx, selectByPrefixStmt, prefix)
	if err != nil {
		return nil, fmt.Errorf("settings: query %q: %w", prefix, err)
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("settings: scan: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settings: rows: %w", err)
	}
	return out, nil
}

// Logging is the set of levels ApplyLogging may change.
type Logging struct {
	Root *logger.Root
	// MessageLog is the level of the message-log appender; nil leaves it alone.
	MessageLog *slog.LevelVar
}

// ApplyLogging reads the log.* settings from src and applies them. Settings
// that are absent keep their configured defaults.
func ApplyLogging(ctx context.Context, src Source, target Logging) error {
	values, err := src.Values(ctx, loggingPrefix)
	if err != nil {
		return err
	}
	if v, ok := values[LogLevel]; ok && strings.TrimSpace(v) != "" {
		target.Root.SetLevel(logger.ParseLevel(v))
	}
	if v, ok := values[MessageLogLevel]; ok && target.MessageLog != nil && strings.TrimSpace(v) != "" {
		target.MessageLog.Set(logger.ParseLevel(v))
	}
	target.Root.Debug("logging settings applied",
		"level", target.Root.Level().String(),
		"settings", len(values),
	)
	return nil
}

const upsertStmt = `INSERT INTO application_config (name, value) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`

// Put stores value under name, replacing any previous value.
func (s *Store) Put(ctx context.Context, name, value string) error {
	q, err := s.factory.QuerierFromCtx(ctx)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if _, err := q.ExecContext(ctx, upsertStmt, name, value); err != nil {
		return fmt.Errorf("settings: put %q: %w", name, err)
	}
	return nil
}

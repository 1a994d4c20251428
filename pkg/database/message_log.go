package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/ghuser/timetable/pkg/logger"
)

// MessageLogStore persists message-log appender batches into message_log.
// It resolves the pool on every batch so it keeps working across a
// Factory close (writes then fail with ErrNotInitialized).
type MessageLogStore struct {
	factory *Factory
}

// NewMessageLogStore returns a store writing through f.
func NewMessageLogStore(f *Factory) *MessageLogStore {
	return &MessageLogStore{factory: f}
}

// InsertMessageLog writes entries in a single multi-row INSERT.
func (s *MessageLogStore) InsertMessageLog(ctx context.Context, entries []logger.MessageLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	db, err := s.factory.Get()
	if err != nil {
		return err
	}
	query, args := buildMessageLogInsert(entries)
	if _, err := db.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert message log: %w", err)
	}
	return nil
}

const messageLogColumns = 6

func buildMessageLogInsert(entries []logger.MessageLogEntry) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO message_log (created_at, level, logger, message, tags, exception) VALUES ")
	args := make([]any, 0, len(entries)*messageLogColumns)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * messageLogColumns
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, e.Time, e.Level, e.Logger, e.Message, strings.Join(e.Tags, " "), nullIfEmpty(e.Exception))
	}
	return b.String(), args
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

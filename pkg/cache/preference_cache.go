package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ghuser/timetable/pkg/database"
)

const (
	// PreferenceCacheTTL bounds how long a refresh stays valid if the next one never happens.
	PreferenceCacheTTL = 24 * time.Hour

	preferenceKeyPrefix = "sectioning:prefs"
	preferenceIndexKey  = "sectioning:prefs:index"
)

// Preference is one student-level sectioning preference row.
type Preference struct {
	StudentID int64
	Name      string
	Value     string
}

// PreferenceLoader reads every sectioning preference from the system of record.
type PreferenceLoader interface {
	LoadPreferences(ctx context.Context) ([]Preference, error)
}

// PreferenceCache is the Redis read model of sectioning preferences.
// Key format: "sectioning:prefs:{studentID}" (hash of name -> value), plus an
// index set so a refresh can drop students that no longer have preferences.
type PreferenceCache struct {
	client *RedisClient
	loader PreferenceLoader
}

// NewPreferenceCache creates a PreferenceCache backed by r and filled from loader.
func NewPreferenceCache(r *RedisClient, loader PreferenceLoader) *PreferenceCache {
	return &PreferenceCache{client: r, loader: loader}
}

// Refresh reloads every preference and replaces the cached copy.
// Returns the number of students cached.
func (c *PreferenceCache) Refresh(ctx context.Context) (int, error) {
	prefs, err := c.loader.LoadPreferences(ctx)
	if err != nil {
		return 0, fmt.Errorf("cache refresh: load: %w", err)
	}
	byStudent := groupPreferences(prefs)

	rdb := c.client.Client()
	previous, err := rdb.SMembers(ctx, preferenceIndexKey).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("cache refresh: read index: %w", err)
	}

	pipe := rdb.TxPipeline()
	for _, id := range previous {
		sid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		if _, ok := byStudent[sid]; !ok {
			pipe.Del(ctx, c.key(sid))
			pipe.SRem(ctx, preferenceIndexKey, id)
		}
	}
	for sid, values := range byStudent {
		key := c.key(sid)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, PreferenceCacheTTL)
		pipe.SAdd(ctx, preferenceIndexKey, strconv.FormatInt(sid, 10))
	}
	pipe.Expire(ctx, preferenceIndexKey, PreferenceCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cache refresh: write: %w", err)
	}
	return len(byStudent), nil
}

// Get returns the cached preferences of a student.
// Returns redis.Nil when the student has no cached preferences.
func (c *PreferenceCache) Get(ctx context.Context, studentID int64) (map[string]string, error) {
	vals, err := c.client.Client().HGetAll(ctx, c.key(studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if len(vals) == 0 {
		return nil, redis.Nil
	}
	return vals, nil
}

// key builds the Redis key: "sectioning:prefs:{studentID}"
func (c *PreferenceCache) key(studentID int64) string {
	return fmt.Sprintf("%s:%d", preferenceKeyPrefix, studentID)
}

func groupPreferences(prefs []Preference) map[int64]map[string]any {
	out := make(map[int64]map[string]any)
	for _, p := range prefs {
		m, ok := out[p.StudentID]
		if !ok {
			m = make(map[string]any)
			out[p.StudentID] = m
		}
		m[p.Name] = p.Value
	}
	return out
}

// SQLPreferenceLoader reads preferences from the sectioning_preference table.
type SQLPreferenceLoader struct {
	factory *database.Factory
}

// NewSQLPreferenceLoader returns a loader reading through f. Startup reads go
// through the connection scope carried by ctx.
func NewSQLPreferenceLoader(f *database.Factory) *SQLPreferenceLoader {
	return &SQLPreferenceLoader{factory: f}
}

// LoadPreferences returns every row of sectioning_preference.
func (l *SQLPreferenceLoader) LoadPreferences(ctx context.Context) ([]Preference, error) {
	q, err := l.factory.QuerierFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT student_id, name, value FROM sectioning_preference ORDER BY student_id, name`)
	if err != nil {
		return nil, fmt.Errorf("query sectioning preferences: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var prefs []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(&p.StudentID, &p.Name, &p.Value); err != nil {
			return nil, fmt.Errorf("scan sectioning preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

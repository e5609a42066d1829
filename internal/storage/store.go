// Package storage persists sessions and their frame snapshots to SQLite
// through gorm.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clover-storm/unit-simulator/internal/sim"
	"github.com/clover-storm/unit-simulator/internal/units"
)

var ErrNotFound = errors.New("storage: record not found")

type Config struct {
	// Path is the database file. Empty opens a private in-memory database.
	Path string
	// DumpPath and DumpInterval copy an in-memory database to disk
	// periodically with VACUUM INTO.
	DumpPath     string
	DumpInterval time.Duration
}

type Store struct {
	db     *gorm.DB
	cfg    Config
	stop   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

var memorySeq atomic.Uint64

// Open connects to the database and migrates the schema.
func Open(cfg Config) (*Store, error) {
	dsn := cfg.Path
	memory := dsn == ""
	if memory {
		dsn = fmt.Sprintf("file:unitsim_%d?mode=memory&cache=shared", memorySeq.Add(1))
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", cfg.Path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA temp_store = MEMORY;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{db: db, cfg: cfg, stop: make(chan struct{}), done: make(chan struct{})}
	if cfg.DumpPath != "" && cfg.DumpInterval > 0 {
		go s.dumpLoop()
	} else {
		close(s.done)
	}
	return s, nil
}

func (s *Store) dumpLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.DumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = s.Dump(s.cfg.DumpPath)
		}
	}
}

// Dump writes a point-in-time copy of the database to path, replacing any
// existing file.
func (s *Store) Dump(path string) error {
	if path == "" {
		return errors.New("storage: dump path not set")
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old dump: %w", err)
		}
	}
	if err := s.db.Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("dump to %s: %w", path, err)
	}
	return nil
}

// Close stops the dump loop, writes a final dump when configured and
// closes the connection pool.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)
	<-s.done
	var firstErr error
	if s.cfg.DumpPath != "" && s.cfg.DumpInterval > 0 {
		firstErr = s.Dump(s.cfg.DumpPath)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// CreateSession records a new session. Creating an existing id is a no-op.
func (s *Store) CreateSession(ctx context.Context, sessionID string) error {
	rec := SessionRecord{SessionID: sessionID}
	err := s.db.WithContext(ctx).
		Where(SessionRecord{SessionID: sessionID}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return fmt.Errorf("create session %s: %w", sessionID, err)
	}
	return nil
}

// CloseSession stamps the close time, reason and last frame of a session.
func (s *Store) CloseSession(ctx context.Context, sessionID, reason string, lastFrame int) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&SessionRecord{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{"closed_at": &now, "close_reason": reason, "last_frame": lastFrame})
	if res.Error != nil {
		return fmt.Errorf("close session %s: %w", sessionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("close session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

func (s *Store) Session(ctx context.Context, sessionID string) (SessionRecord, error) {
	var rec SessionRecord
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return rec, err
}

// Sessions lists every recorded session, newest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionRecord, error) {
	var out []SessionRecord
	err := s.db.WithContext(ctx).Order("created_at desc, id desc").Find(&out).Error
	return out, err
}

func snapshotRecord(sessionID string, snap sim.FrameSnapshot) (SnapshotRecord, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("encode frame %d: %w", snap.FrameNumber, err)
	}
	return SnapshotRecord{
		SessionID: sessionID,
		Frame:     snap.FrameNumber,
		Wave:      snap.CurrentWave,
		Friendly:  snap.LivingCount(units.Friendly),
		Enemy:     snap.LivingCount(units.Enemy),
		Result:    string(snap.Result),
		Body:      datatypes.JSON(body),
	}, nil
}

// SaveSnapshots writes a batch of snapshots for one session.
func (s *Store) SaveSnapshots(ctx context.Context, sessionID string, snaps ...sim.FrameSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	records := make([]SnapshotRecord, 0, len(snaps))
	for _, snap := range snaps {
		rec, err := snapshotRecord(sessionID, snap)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&records, 200).Error; err != nil {
		return fmt.Errorf("save snapshots for %s: %w", sessionID, err)
	}
	return nil
}

// Snapshot loads the newest snapshot of a session at or before frame.
func (s *Store) Snapshot(ctx context.Context, sessionID string, frame int) (sim.FrameSnapshot, error) {
	var rec SnapshotRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND frame <= ?", sessionID, frame).
		Order("frame desc, id desc").
		First(&rec).Error
	return decode(rec, err, sessionID)
}

// Latest loads the newest snapshot of a session.
func (s *Store) Latest(ctx context.Context, sessionID string) (sim.FrameSnapshot, error) {
	var rec SnapshotRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("frame desc, id desc").
		First(&rec).Error
	return decode(rec, err, sessionID)
}

func decode(rec SnapshotRecord, err error, sessionID string) (sim.FrameSnapshot, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sim.FrameSnapshot{}, fmt.Errorf("snapshot for %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return sim.FrameSnapshot{}, err
	}
	var snap sim.FrameSnapshot
	if err := json.Unmarshal(rec.Body, &snap); err != nil {
		return sim.FrameSnapshot{}, fmt.Errorf("decode frame %d: %w", rec.Frame, err)
	}
	return snap, nil
}

// CountSnapshots reports how many snapshots a session has.
func (s *Store) CountSnapshots(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&SnapshotRecord{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n, err
}

// DeleteSnapshotsAfter drops snapshots past frame, used when a session
// rewinds and its timeline diverges.
func (s *Store) DeleteSnapshotsAfter(ctx context.Context, sessionID string, frame int) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("session_id = ? AND frame > ?", sessionID, frame).
		Delete(&SnapshotRecord{})
	return res.RowsAffected, res.Error
}

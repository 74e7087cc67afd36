// pkg/store/store.go

// Package store persists vehicle snapshots and recorded telemetry runs in
// SQLite or Postgres through GORM.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/opd-ai/go-vdc/pkg/telemetry"
	"github.com/opd-ai/go-vdc/pkg/vehicle"
)

// ErrNotFound is returned when no record has the requested key.
var ErrNotFound = errors.New("record not found")

// SnapshotRecord is one stored vehicle snapshot.
type SnapshotRecord struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time      `json:"createdAt" gorm:"index"`
	RunID     string         `json:"runID" gorm:"size:36;index"`
	Vehicle   string         `json:"vehicle" gorm:"size:127"`
	Label     string         `json:"label" gorm:"size:200"`
	Tick      uint64         `json:"tick"`
	Version   int            `json:"version"`
	State     datatypes.JSON `json:"state"`
}

// RunRecord is one recorded telemetry run.
type RunRecord struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time      `json:"createdAt" gorm:"index"`
	Scenario  string         `json:"scenario" gorm:"size:127;index"`
	Vehicle   string         `json:"vehicle" gorm:"size:127"`
	Steps     int            `json:"steps"`
	Duration  float64        `json:"duration"`
	Frames    datatypes.JSON `json:"frames"`
}

// Store wraps a GORM connection holding the snapshot and run tables.
type Store struct {
	DB *gorm.DB
}

// Open connects by DSN. postgres:// URLs and key=value strings containing
// host= go to Postgres; anything else is a SQLite path or URI.
func Open(dsn string) (*Store, error) {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	if isPostgres(dsn) {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), cfg)
	} else {
		if dsn == "" {
			dsn = "file::memory:"
		}
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if db.Dialector.Name() == "sqlite" {
		// One connection keeps an in-memory database alive and serializes writers.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql interface: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// New migrates the schema on an existing connection.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&SnapshotRecord{}, &RunRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{DB: db}, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// Close releases the connection.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSnapshot stores a snapshot and returns its ID.
func (s *Store) SaveSnapshot(ctx context.Context, runID, vehicleName, label string, snap vehicle.Snapshot) (string, error) {
	state, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	rec := SnapshotRecord{
		ID:      uuid.NewString(),
		RunID:   runID,
		Vehicle: vehicleName,
		Label:   label,
		Tick:    snap.Status.Tick,
		Version: snap.Version,
		State:   datatypes.JSON(state),
	}
	if err := s.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("saving snapshot: %w", err)
	}
	return rec.ID, nil
}

// LoadSnapshot returns the snapshot stored under id.
func (s *Store) LoadSnapshot(ctx context.Context, id string) (vehicle.Snapshot, error) {
	var rec SnapshotRecord
	if err := s.first(ctx, &rec, id); err != nil {
		return vehicle.Snapshot{}, fmt.Errorf("loading snapshot %s: %w", id, err)
	}
	var snap vehicle.Snapshot
	if err := json.Unmarshal(rec.State, &snap); err != nil {
		return vehicle.Snapshot{}, fmt.Errorf("decoding snapshot %s: %w", id, err)
	}
	return snap, nil
}

// ListSnapshots returns the records of a run, oldest tick first, without
// their state. An empty runID lists every snapshot.
func (s *Store) ListSnapshots(ctx context.Context, runID string) ([]SnapshotRecord, error) {
	q := s.DB.WithContext(ctx).Omit("state").Order("tick, created_at")
	if runID != "" {
		q = q.Where("run_id = ?", runID)
	}
	var recs []SnapshotRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return recs, nil
}

// DeleteSnapshot removes the snapshot stored under id.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Delete(&SnapshotRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deleting snapshot %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveRun stores the frames of a run under runID, or a new ID if empty.
// Saving under an existing ID replaces that run.
func (s *Store) SaveRun(ctx context.Context, runID, scenario, vehicleName string, frames []telemetry.Frame) (string, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	data, err := json.Marshal(frames)
	if err != nil {
		return "", fmt.Errorf("encoding frames: %w", err)
	}
	rec := RunRecord{
		ID:       runID,
		Scenario: scenario,
		Vehicle:  vehicleName,
		Steps:    len(frames),
		Frames:   datatypes.JSON(data),
	}
	if len(frames) > 0 {
		rec.Duration = frames[len(frames)-1].Time - frames[0].Time
	}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	return rec.ID, nil
}

// LoadRun returns a stored run and its frames.
func (s *Store) LoadRun(ctx context.Context, id string) (RunRecord, []telemetry.Frame, error) {
	var rec RunRecord
	if err := s.first(ctx, &rec, id); err != nil {
		return RunRecord{}, nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	var frames []telemetry.Frame
	if err := json.Unmarshal(rec.Frames, &frames); err != nil {
		return RunRecord{}, nil, fmt.Errorf("decoding run %s: %w", id, err)
	}
	return rec, frames, nil
}

// ListRuns returns every run without frames, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	var recs []RunRecord
	if err := s.DB.WithContext(ctx).Omit("frames").Order("created_at desc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return recs, nil
}

func (s *Store) first(ctx context.Context, dst any, id string) error {
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

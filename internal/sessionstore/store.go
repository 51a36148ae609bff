// Package sessionstore persists a terminated debug session's script list
// and breakpoint set for post-mortem inspection, the way
// internal/debugging's DebugService persists DebugSession/Breakpoint rows.
// Pause-scoped state (object registry entries, stack frame snapshots) is
// deliberately not part of this schema: spec.md's lifetime discipline
// treats it as meaningless once the target resumes, so nothing here
// outlives a pause except what the user already chose to keep (scripts,
// breakpoints).
package sessionstore

import (
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DebugSessionRecord is one attach-to-detach debugging session.
type DebugSessionRecord struct {
	ID          string         `json:"id" gorm:"primarykey;type:varchar(36)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
	TargetHost  string         `json:"target_host" gorm:"not null"`
	TargetPort  int            `json:"target_port" gorm:"not null"`
	StartedAt   time.Time      `json:"started_at"`
	EndedAt     *time.Time     `json:"ended_at,omitempty"`
	ScriptCount int            `json:"script_count"`
}

// ScriptRecord is one script the session saw registered, indexed by its
// content hash. RecordScript inserts one row per call; rows with the same
// hash are not merged.
type ScriptRecord struct {
	ID           uint   `json:"id" gorm:"primarykey"`
	SessionID    string `json:"session_id" gorm:"not null;index;type:varchar(36)"`
	ScriptID     string `json:"script_id" gorm:"not null"`
	URL          string `json:"url" gorm:"not null"`
	ContentsHash string `json:"contents_hash" gorm:"not null;index"`
}

// BreakpointRecord is one breakpoint that was set during the session.
type BreakpointRecord struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	SessionID string     `json:"session_id" gorm:"not null;index;type:varchar(36)"`
	ScriptID  string     `json:"script_id" gorm:"not null"`
	Line      int        `json:"line" gorm:"not null"`
	Column    int        `json:"column" gorm:"default:0"`
	SetAt     time.Time  `json:"set_at"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
}

// Store persists session/script/breakpoint records to a SQLite file via
// gorm, mirroring DebugService's single *gorm.DB field.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) the SQLite database at path and runs
// AutoMigrate for every record type this package owns.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&DebugSessionRecord{}, &ScriptRecord{}, &BreakpointRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// StartSession records the start of a new session and returns its id.
func (s *Store) StartSession(targetHost string, targetPort int) (string, error) {
	rec := &DebugSessionRecord{
		ID:         uuid.New().String(),
		TargetHost: targetHost,
		TargetPort: targetPort,
		StartedAt:  time.Now(),
	}
	if err := s.db.Create(rec).Error; err != nil {
		return "", err
	}
	return rec.ID, nil
}

// EndSession marks a session as ended.
func (s *Store) EndSession(sessionID string) error {
	now := time.Now()
	return s.db.Model(&DebugSessionRecord{}).Where("id = ?", sessionID).Update("ended_at", &now).Error
}

// RecordScript appends one registered script to the session's history,
// incrementing the session's running script count.
func (s *Store) RecordScript(sessionID, scriptID, url, contentsHash string) error {
	rec := &ScriptRecord{SessionID: sessionID, ScriptID: scriptID, URL: url, ContentsHash: contentsHash}
	if err := s.db.Create(rec).Error; err != nil {
		return err
	}
	return s.db.Model(&DebugSessionRecord{}).Where("id = ?", sessionID).
		Update("script_count", gorm.Expr("script_count + 1")).Error
}

// RecordBreakpointSet appends one breakpoint placement to the session's
// history.
func (s *Store) RecordBreakpointSet(sessionID, scriptID string, line, column int) error {
	rec := &BreakpointRecord{SessionID: sessionID, ScriptID: scriptID, Line: line, Column: column, SetAt: time.Now()}
	return s.db.Create(rec).Error
}

// RecordBreakpointRemoved marks the most recent matching breakpoint record
// as removed, for post-mortem lifetime inspection.
func (s *Store) RecordBreakpointRemoved(sessionID, scriptID string, line, column int) error {
	now := time.Now()
	return s.db.Model(&BreakpointRecord{}).
		Where("session_id = ? AND script_id = ? AND line = ? AND column = ? AND removed_at IS NULL", sessionID, scriptID, line, column).
		Order("id desc").Limit(1).
		Update("removed_at", &now).Error
}

// Session returns one session's record by id.
func (s *Store) Session(sessionID string) (*DebugSessionRecord, error) {
	var rec DebugSessionRecord
	if err := s.db.First(&rec, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Scripts returns every script recorded for a session.
func (s *Store) Scripts(sessionID string) ([]ScriptRecord, error) {
	var out []ScriptRecord
	err := s.db.Where("session_id = ?", sessionID).Find(&out).Error
	return out, err
}

// Breakpoints returns every breakpoint recorded for a session.
func (s *Store) Breakpoints(sessionID string) ([]BreakpointRecord, error) {
	var out []BreakpointRecord
	err := s.db.Where("session_id = ?", sessionID).Find(&out).Error
	return out, err
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Package db persists intents, solvers, and execution records via GORM,
// following the teacher's MySQLRecorder pattern in
// internal/db/transaction_recorder.go: a GORM model per domain record
// with big.Int fields stored as `varchar(78)` strings, a
// NewXRecorder(dsn)/NewXRecorderWithDB(db) constructor pair that
// AutoMigrates on open, and a thin set of Record/Get methods wrapping
// db.Create/db.Where/db.Find.
package db

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/orbital-labs/intents-core/internal/types"
)

// IntentRow is the database model for a submitted Intent.
type IntentRow struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	IntentId      string    `gorm:"uniqueIndex;size:66;not null"`
	User          string    `gorm:"size:42;not null;index"`
	SourceChain   uint64    `gorm:"not null"`
	DestChain     uint64    `gorm:"not null"`
	SourceToken   string    `gorm:"size:42;not null"`
	DestToken     string    `gorm:"size:42;not null"`
	SourceAmount  string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	MinDestAmount string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	Deadline      int64     `gorm:"not null"`
	Nonce         string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	Status        int       `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (IntentRow) TableName() string { return "intents" }

// SolverRow is the database model for a bonded solver.
type SolverRow struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	Address         string    `gorm:"uniqueIndex;size:42;not null"`
	SupportedChains string    `gorm:"type:text;not null;comment:comma-separated chain ids"`
	FeeBps          int       `gorm:"not null"`
	Bond            string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	LockedExposure  string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	ReputationBp    int       `gorm:"not null"`
	Registered      bool      `gorm:"not null"`
	Slashed         bool      `gorm:"not null"`
	LastActive      time.Time `gorm:""`
	CooldownUntil   time.Time `gorm:""`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (SolverRow) TableName() string { return "solvers" }

// ExecutionRecordRow is the database model for an intent's journey
// through the Executor.
type ExecutionRecordRow struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	IntentId      string    `gorm:"uniqueIndex;size:66;not null"`
	Solver        string    `gorm:"size:42;not null;index"`
	Phase         int       `gorm:"not null"`
	Status        int       `gorm:"not null;index"`
	Retries       int       `gorm:"not null;default:0"`
	SourceTxHash  string    `gorm:"size:66"`
	DestTxHash    string    `gorm:"size:66"`
	ActualDest    string    `gorm:"type:varchar(78);comment:big.Int as string"`
	FailureReason string    `gorm:"type:text"`
	Retriable     bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (ExecutionRecordRow) TableName() string { return "execution_records" }

// Recorder is the Persistence port implementation over GORM + MySQL.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder opens a MySQL connection (dsn in the standard
// "user:password@tcp(host:port)/dbname?..." form) and migrates the
// schema.
func NewRecorder(dsn string) (*Recorder, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewRecorderWithDB(db)
}

// NewRecorderWithDB wraps an existing GORM DB (used by tests wiring
// go-sqlmock) and migrates the schema.
func NewRecorderWithDB(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&IntentRow{}, &SolverRow{}, &ExecutionRecordRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// RecordIntent inserts a new intent row.
func (r *Recorder) RecordIntent(intent *types.Intent) error {
	id := intent.CanonicalHash()
	row := IntentRow{
		IntentId:      id.Hex(),
		User:          intent.User.Hex(),
		SourceChain:   intent.SourceChain,
		DestChain:     intent.DestChain,
		SourceToken:   intent.SourceToken.Hex(),
		DestToken:     intent.DestToken.Hex(),
		SourceAmount:  bigIntToString(intent.SourceAmount),
		MinDestAmount: bigIntToString(intent.MinDestAmount),
		Deadline:      intent.Deadline,
		Nonce:         bigIntToString(intent.Nonce),
		Status:        int(intent.Status),
	}
	if result := r.db.Create(&row); result.Error != nil {
		return fmt.Errorf("failed to record intent: %w", result.Error)
	}
	return nil
}

// UpdateIntentStatus updates the status column for an existing intent.
func (r *Recorder) UpdateIntentStatus(id types.IntentId, status types.IntentStatus) error {
	result := r.db.Model(&IntentRow{}).Where("intent_id = ?", id.Hex()).Update("status", int(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update intent status: %w", result.Error)
	}
	return nil
}

// UpsertSolver creates or updates a solver row, keyed by address.
func (r *Recorder) UpsertSolver(solver *types.Solver) error {
	chains := make([]string, 0, len(solver.SupportedChains))
	for _, c := range solver.SupportedChains {
		chains = append(chains, strconv.FormatUint(c, 10))
	}

	row := SolverRow{
		Address:         solver.Address.Hex(),
		SupportedChains: strings.Join(chains, ","),
		FeeBps:          solver.FeeBps,
		Bond:            bigIntToString(solver.Bond),
		LockedExposure:  bigIntToString(solver.LockedExposure),
		ReputationBp:    solver.ReputationBp,
		Registered:      solver.Registered,
		Slashed:         solver.Slashed,
		LastActive:      solver.LastActive,
		CooldownUntil:   solver.CooldownUntil,
	}

	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"supported_chains", "fee_bps", "bond", "locked_exposure", "reputation_bp", "registered", "slashed", "last_active", "cooldown_until"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert solver: %w", result.Error)
	}
	return nil
}

// RecordExecution upserts an ExecutionRecord, keyed by intent id, so
// repeated calls as a single intent advances through phases update the
// same row rather than inserting duplicates.
func (r *Recorder) RecordExecution(record *types.ExecutionRecord) error {
	row := ExecutionRecordRow{
		IntentId:      record.IntentId.Hex(),
		Solver:        record.Solver.Hex(),
		Phase:         int(record.Phase),
		Status:        int(record.Status),
		Retries:       record.Retries,
		SourceTxHash:  record.SourceTxHash.Hex(),
		DestTxHash:    record.DestTxHash.Hex(),
		ActualDest:    bigIntToString(record.ActualDest),
		FailureReason: record.FailureReason,
		Retriable:     record.Retriable,
	}

	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "intent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"solver", "phase", "status", "retries", "source_tx_hash", "dest_tx_hash", "actual_dest", "failure_reason", "retriable"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to record execution: %w", result.Error)
	}
	return nil
}

// GetExecutionByIntentId looks up the execution record row for id.
func (r *Recorder) GetExecutionByIntentId(id types.IntentId) (*ExecutionRecordRow, error) {
	var row ExecutionRecordRow
	result := r.db.Where("intent_id = ?", id.Hex()).First(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get execution record: %w", result.Error)
	}
	return &row, nil
}

// ListExecutionsByStatus retrieves all execution records in the given
// status, ordered oldest-first.
func (r *Recorder) ListExecutionsByStatus(status types.IntentStatus) ([]ExecutionRecordRow, error) {
	var rows []ExecutionRecordRow
	result := r.db.Where("status = ?", int(status)).Order("created_at ASC").Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list execution records: %w", result.Error)
	}
	return rows, nil
}

// GetDB returns the underlying GORM DB instance for advanced queries.
func (r *Recorder) GetDB() *gorm.DB { return r.db }

// Close closes the underlying database connection.
func (r *Recorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}

func bigIntToString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

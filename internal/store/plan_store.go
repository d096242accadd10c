// Package store persists plans and their outcomes to SQLite so runs can
// be listed, audited, and replayed later. Persistence is strictly
// downstream of a search: the planner never reads from the store.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"plannerd/pkg/goap"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Plan lifecycle statuses. A record starts as StatusPlanned; executors
// move it to one of the terminal statuses.
const (
	StatusPlanned   = "planned"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// PlanStep is one persisted step of a plan. Only the identity of the
// action is stored; preconditions and effects stay in the catalogue, so
// replaying a stored plan always resolves against the live catalogue.
type PlanStep struct {
	Index       int
	ActionID    string
	AgentRole   string
	Description string
	Cost        float64
}

// PlanRecord is a persisted plan. Steps is populated by GetPlan and left
// nil by ListPlans.
type PlanRecord struct {
	ID        string
	GoalName  string
	Status    string
	Cost      float64
	StepCount int
	Initial   goap.WorldState
	Steps     []PlanStep
	CreatedAt time.Time
}

// PlanStore persists plans to a SQLite database.
type PlanStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
	dbPath string
}

// NewPlanStore opens the database at path, creating the file and its
// parent directory if needed.
func NewPlanStore(path string, logger *zap.Logger) (*PlanStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &PlanStore{db: db, logger: logger, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the required tables.
func (s *PlanStore) initialize() error {
	plansTable := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		goal_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'planned',
		cost REAL NOT NULL DEFAULT 0,
		step_count INTEGER NOT NULL DEFAULT 0,
		initial_state TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_plans_goal ON plans(goal_name);
	CREATE INDEX IF NOT EXISTS idx_plans_status ON plans(status);
	`

	stepsTable := `
	CREATE TABLE IF NOT EXISTS plan_steps (
		plan_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		action_id TEXT NOT NULL,
		agent_role TEXT NOT NULL,
		description TEXT,
		cost REAL NOT NULL DEFAULT 1.0,
		PRIMARY KEY (plan_id, idx)
	);
	`

	for _, table := range []string{plansTable, stepsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *PlanStore) Close() error {
	return s.db.Close()
}

// stateJSON is the wire shape of the initial_state column.
type stateJSON struct {
	Facts     map[string]interface{} `json:"facts"`
	Resources map[string]int         `json:"resources,omitempty"`
}

func encodeState(state goap.WorldState) (string, error) {
	wire := stateJSON{
		Facts:     make(map[string]interface{}, len(state.Facts)),
		Resources: state.Resources,
	}
	for k, v := range state.Facts {
		wire.Facts[k] = v.Interface()
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return string(data), nil
}

func decodeState(data string) (goap.WorldState, error) {
	state := goap.NewWorldState()
	if data == "" {
		return state, nil
	}

	var wire stateJSON
	if err := json.Unmarshal([]byte(data), &wire); err != nil {
		return goap.WorldState{}, fmt.Errorf("failed to decode state: %w", err)
	}
	for k, raw := range wire.Facts {
		v, err := goap.ValueOf(raw)
		if err != nil {
			return goap.WorldState{}, fmt.Errorf("fact %q: %w", k, err)
		}
		state.Facts[k] = v
	}
	for k, n := range wire.Resources {
		state.Resources[k] = n
	}
	return state, nil
}

// SavePlan persists a plan with its steps and returns the new record's id.
// The record starts in StatusPlanned. An empty plan (goal already
// satisfied) is a valid record with zero steps; a nil plan is not.
func (s *PlanStore) SavePlan(goal goap.GoalState, plan []goap.Action, initial goap.WorldState) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("cannot save a nil plan")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stateStr, err := encodeState(initial)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO plans (id, goal_name, status, cost, step_count, initial_state)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, goal.Name, StatusPlanned, goap.PlanCost(plan), len(plan), stateStr,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert plan: %w", err)
	}

	for i, action := range plan {
		_, err = tx.Exec(
			`INSERT INTO plan_steps (plan_id, idx, action_id, agent_role, description, cost)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, action.ID, action.AgentRole, action.Description, action.Cost,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert step %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit plan: %w", err)
	}

	s.logger.Debug("plan saved",
		zap.String("id", id),
		zap.String("goal", goal.Name),
		zap.Int("steps", len(plan)))

	return id, nil
}

// GetPlan loads one plan with its steps in order.
func (s *PlanStore) GetPlan(id string) (*PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec PlanRecord
	var stateStr string
	err := s.db.QueryRow(
		`SELECT id, goal_name, status, cost, step_count, initial_state, created_at
		 FROM plans WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.GoalName, &rec.Status, &rec.Cost, &rec.StepCount, &stateStr, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	rec.Initial, err = decodeState(stateStr)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT idx, action_id, agent_role, description, cost
		 FROM plan_steps WHERE plan_id = ? ORDER BY idx`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rec.Steps = []PlanStep{}
	for rows.Next() {
		var step PlanStep
		if err := rows.Scan(&step.Index, &step.ActionID, &step.AgentRole, &step.Description, &step.Cost); err != nil {
			return nil, err
		}
		rec.Steps = append(rec.Steps, step)
	}

	return &rec, rows.Err()
}

// ListPlans returns up to limit plans, newest first, without their steps.
// Rows that fail to scan are skipped rather than failing the listing.
func (s *PlanStore) ListPlans(limit int) ([]PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	// rowid breaks created_at ties for inserts within the same second.
	rows, err := s.db.Query(
		`SELECT id, goal_name, status, cost, step_count, initial_state, created_at
		 FROM plans ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PlanRecord
	for rows.Next() {
		var rec PlanRecord
		var stateStr string
		if err := rows.Scan(&rec.ID, &rec.GoalName, &rec.Status, &rec.Cost, &rec.StepCount, &stateStr, &rec.CreatedAt); err != nil {
			s.logger.Warn("skipping unreadable plan row", zap.Error(err))
			continue
		}
		rec.Initial, err = decodeState(stateStr)
		if err != nil {
			s.logger.Warn("skipping plan with undecodable state",
				zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// UpdateStatus moves a plan to a new lifecycle status.
func (s *PlanStore) UpdateStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE plans SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("plan %s not found", id)
	}
	return nil
}

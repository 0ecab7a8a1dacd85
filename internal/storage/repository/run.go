package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/kirillm/ads-engine/internal/domain"
)

// Код PostgreSQL для нарушения уникальности
const pqUniqueViolation = "23505"

// RunRepository реализует журнал прогонов и их решений
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository создает новый репозиторий журнала прогонов
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start атомарно регистрирует новый прогон.
// Уникальный частичный индекс по (user_id, status='running') гарантирует,
// что на пользователя выполняется не больше одного прогона: конкурирующая
// вставка получает ErrAlreadyRunning.
func (r *RunRepository) Start(run *domain.OrchestratorRun) error {
	query := `
		INSERT INTO orchestrator_runs (id, user_id, run_type, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(
		query,
		run.ID,
		run.UserID,
		run.RunType,
		run.Status,
		run.StartedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return domain.ErrAlreadyRunning
	}
	return err
}

// Finish записывает итоговый статус и счетчики прогона
func (r *RunRepository) Finish(run *domain.OrchestratorRun) error {
	query := `
		UPDATE orchestrator_runs
		SET status = $1, completed_at = $2, campaigns_created = $3,
		    winners_promoted = $4, budgets_scaled = $5, adsets_paused = $6, errors_count = $7
		WHERE id = $8
	`
	result, err := r.db.Exec(
		query,
		run.Status,
		run.CompletedAt,
		run.CampaignsCreated,
		run.WinnersPromoted,
		run.BudgetsScaled,
		run.AdSetsPaused,
		run.ErrorsCount,
		run.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// AppendAction добавляет решение в журнал прогона
func (r *RunRepository) AppendAction(action *domain.Action) error {
	query := `
		INSERT INTO actions (run_id, action_type, goal_key, status, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		action.RunID,
		action.ActionType,
		action.GoalKey,
		action.Status,
		action.Message,
		action.Details,
		action.CreatedAt,
	).Scan(&action.ID)
}

// GetRecent получает последние прогоны пользователя
func (r *RunRepository) GetRecent(userID int64, limit int) ([]domain.OrchestratorRun, error) {
	query := `
		SELECT id, user_id, run_type, status, started_at,
		       COALESCE(completed_at, '0001-01-01'::timestamptz),
		       campaigns_created, winners_promoted, budgets_scaled, adsets_paused, errors_count
		FROM orchestrator_runs
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.OrchestratorRun
	for rows.Next() {
		var run domain.OrchestratorRun
		err := rows.Scan(
			&run.ID,
			&run.UserID,
			&run.RunType,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.CampaignsCreated,
			&run.WinnersPromoted,
			&run.BudgetsScaled,
			&run.AdSetsPaused,
			&run.ErrorsCount,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetActions получает решения прогона в хронологическом порядке
func (r *RunRepository) GetActions(runID string) ([]domain.Action, error) {
	query := `
		SELECT id, run_id, action_type, goal_key, status, message, COALESCE(details, ''), created_at
		FROM actions
		WHERE run_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []domain.Action
	for rows.Next() {
		var action domain.Action
		err := rows.Scan(
			&action.ID,
			&action.RunID,
			&action.ActionType,
			&action.GoalKey,
			&action.Status,
			&action.Message,
			&action.Details,
			&action.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	return actions, rows.Err()
}

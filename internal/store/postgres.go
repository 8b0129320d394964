package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hedgelab/hedge-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Summary statistics are stored as NUMERIC for exact decimal precision;
// the run configuration is stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateRun(ctx context.Context, r *model.RunRecord) error {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, config, error, created_at, completed_at)
		 VALUES ($1, $2, $3::JSONB, $4, $5, $6)`,
		r.ID, r.Status, string(cfg), r.Error, r.CreatedAt, r.CompletedAt,
	)
	return err
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	var r model.RunRecord
	var cfg []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, status, config, error, created_at, completed_at
		 FROM runs WHERE id = $1`, id).
		Scan(&r.ID, &r.Status, &cfg, &r.Error, &r.CreatedAt, &r.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	if err := json.Unmarshal(cfg, &r.Config); err != nil {
		return nil, fmt.Errorf("unmarshal run config: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, config, error, created_at, completed_at
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		var cfg []byte
		if err := rows.Scan(&r.ID, &r.Status, &cfg, &r.Error, &r.CreatedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cfg, &r.Config); err != nil {
			return nil, fmt.Errorf("unmarshal run config: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) MarkRunCompleted(ctx context.Context, id string, completedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $2, completed_at = $3 WHERE id = $1`,
		id, model.RunStatusCompleted, completedAt,
	)
	return err
}

func (s *PostgresStore) MarkRunFailed(ctx context.Context, id string, reason string, completedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $2, error = $3, completed_at = $4 WHERE id = $1`,
		id, model.RunStatusFailed, reason, completedAt,
	)
	return err
}

func (s *PostgresStore) InsertSummaries(ctx context.Context, summaries []model.ScenarioSummary) error {
	for _, sum := range summaries {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO scenario_summaries
			 (run_id, strike, volatility_scenario, lot_size, asset_count, in_the_money,
			  mean_excess_return, stddev_excess_return, annualized_stddev,
			  mean_itm_payoff, payoff_stddev)
			 VALUES ($1, $2, $3, $4, $5, $6,
			         $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11::NUMERIC)`,
			sum.RunID, sum.Strike, sum.VolScenario, sum.LotSize,
			sum.AssetCount, sum.InTheMoney,
			sum.MeanExcessReturn.String(), sum.StdDevExcessReturn.String(),
			sum.AnnualizedStdDev.String(),
			sum.MeanITMPayoff.String(), sum.PayoffStdDev.String(),
		)
		if err != nil {
			return fmt.Errorf("insert summary for run %s: %w", sum.RunID, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetSummariesByRun(ctx context.Context, runID string) ([]model.ScenarioSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, strike, volatility_scenario, lot_size, asset_count, in_the_money,
		        mean_excess_return::TEXT, stddev_excess_return::TEXT, annualized_stddev::TEXT,
		        mean_itm_payoff::TEXT, payoff_stddev::TEXT
		 FROM scenario_summaries
		 WHERE run_id = $1
		 ORDER BY strike, volatility_scenario, lot_size`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.ScenarioSummary
	for rows.Next() {
		var sum model.ScenarioSummary
		var meanER, stddevER, annStddev, meanITM, payoffSD string

		if err := rows.Scan(&sum.RunID, &sum.Strike, &sum.VolScenario, &sum.LotSize,
			&sum.AssetCount, &sum.InTheMoney,
			&meanER, &stddevER, &annStddev, &meanITM, &payoffSD); err != nil {
			return nil, err
		}

		sum.MeanExcessReturn, _ = decimal.NewFromString(meanER)
		sum.StdDevExcessReturn, _ = decimal.NewFromString(stddevER)
		sum.AnnualizedStdDev, _ = decimal.NewFromString(annStddev)
		sum.MeanITMPayoff, _ = decimal.NewFromString(meanITM)
		sum.PayoffStdDev, _ = decimal.NewFromString(payoffSD)

		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

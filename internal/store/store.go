package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"excess_mortality/mortality"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const dateLayout = "2006-01-02"

// ErrNoRun is returned when no successful run has been stored yet.
var ErrNoRun = errors.New("no completed run")

// Store wraps SQLite access for pipeline runs and their output tables.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			status TEXT,
			last_error TEXT,
			records_read INTEGER,
			records_kept INTEGER,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS wide_rows (
			run_id TEXT,
			geography_code TEXT,
			geography_name TEXT,
			week_ending TEXT,
			category TEXT,
			all_cause_difference REAL,
			all_cause_percent REAL,
			covid_difference REAL,
			covid_percent REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_wide_rows_geo ON wide_rows(run_id, geography_code);`,
		`CREATE TABLE IF NOT EXISTS geography_summaries (
			run_id TEXT,
			geography_code TEXT,
			geography_name TEXT,
			all_cause_excess REAL,
			covid_excess REAL,
			covid_share REAL,
			label TEXT,
			PRIMARY KEY (run_id, geography_code)
		);`,
		`CREATE TABLE IF NOT EXISTS category_summaries (
			run_id TEXT,
			geography_code TEXT,
			category TEXT,
			position INTEGER,
			excess REAL,
			observed REAL,
			rate REAL,
			death_share REAL,
			population_share REAL,
			rank INTEGER,
			label TEXT,
			PRIMARY KEY (run_id, geography_code, category)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Run is one recorded pipeline execution.
type Run struct {
	RunID       string     `json:"run_id"`
	Status      string     `json:"status"`
	LastError   *string    `json:"last_error"`
	RecordsRead int        `json:"records_read"`
	RecordsKept int        `json:"records_kept"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}

// StartRun records a new running run and returns its id.
func (s *Store) StartRun(ctx context.Context, ts time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(run_id, status, records_read, records_kept, started_at) VALUES(?,?,?,?,?)`,
		id, StatusRunning, 0, 0, ts)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FailRun marks a run failed. No output rows are written for failed runs.
func (s *Store) FailRun(ctx context.Context, runID string, cause error, ts time.Time) error {
	msg := cause.Error()
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET status=?, last_error=?, finished_at=? WHERE run_id=?`, StatusFailed, msg, ts, runID)
	return err
}

// SaveResult writes all output tables of a run and marks it succeeded, atomically.
func (s *Store) SaveResult(ctx context.Context, runID string, read int, res *mortality.Result, ts time.Time) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, row := range res.Wide {
		if _, err = tx.ExecContext(ctx, `INSERT INTO wide_rows(run_id, geography_code, geography_name, week_ending, category, all_cause_difference, all_cause_percent, covid_difference, covid_percent)
			VALUES(?,?,?,?,?,?,?,?,?)`,
			runID, row.GeographyCode, row.GeographyName, row.Date.Format(dateLayout), string(row.Category),
			nullFloat(row.AllCauseDifference), nullFloat(row.AllCausePercent), nullFloat(row.CovidDifference), nullFloat(row.CovidPercent)); err != nil {
			return fmt.Errorf("insert wide row: %w", err)
		}
	}
	for _, sum := range res.Report.Summaries {
		if _, err = tx.ExecContext(ctx, `INSERT INTO geography_summaries(run_id, geography_code, geography_name, all_cause_excess, covid_excess, covid_share, label)
			VALUES(?,?,?,?,?,?,?)`,
			runID, sum.GeographyCode, sum.GeographyName, sum.AllCauseExcess, sum.CovidExcess, nullRatio(sum.CovidShare), sum.Label); err != nil {
			return fmt.Errorf("insert geography summary: %w", err)
		}
		for pos, cat := range sum.Categories {
			if _, err = tx.ExecContext(ctx, `INSERT INTO category_summaries(run_id, geography_code, category, position, excess, observed, rate, death_share, population_share, rank, label)
				VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
				runID, sum.GeographyCode, string(cat.Category), pos, cat.Excess, cat.Observed,
				nullRatio(cat.Rate), nullRatio(cat.DeathShare), nullRatio(cat.PopulationShare), cat.Rank, cat.Label); err != nil {
				return fmt.Errorf("insert category summary: %w", err)
			}
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE runs SET status=?, records_read=?, records_kept=?, finished_at=? WHERE run_id=?`,
		StatusSucceeded, read, len(res.Canonical), ts, runID); err != nil {
		return err
	}
	return tx.Commit()
}

// LatestRun returns the most recent successful run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run_id, status, last_error, records_read, records_kept, started_at, finished_at
		FROM runs WHERE status=? ORDER BY rowid DESC LIMIT 1`, StatusSucceeded)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRun
	}
	return r, err
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, status, last_error, records_read, records_kept, started_at, finished_at
		FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var errMsg sql.NullString
	var finished sql.NullTime
	if err := row.Scan(&r.RunID, &r.Status, &errMsg, &r.RecordsRead, &r.RecordsKept, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		r.LastError = &errMsg.String
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

// Summaries rebuilds the annotated report of a run.
func (s *Store) Summaries(ctx context.Context, runID string) (*mortality.Report, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT geography_code, geography_name, all_cause_excess, covid_excess, covid_share, label
		FROM geography_summaries WHERE run_id=? ORDER BY geography_code`, runID)
	if err != nil {
		return nil, err
	}
	var summaries []mortality.GeographySummary
	index := make(map[string]int)
	for rows.Next() {
		var sum mortality.GeographySummary
		var share sql.NullFloat64
		if err := rows.Scan(&sum.GeographyCode, &sum.GeographyName, &sum.AllCauseExcess, &sum.CovidExcess, &share, &sum.Label); err != nil {
			rows.Close()
			return nil, err
		}
		sum.CovidShare = ratio(share)
		sum.CategoryLabels = make(map[mortality.Category]string)
		index[sum.GeographyCode] = len(summaries)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	catRows, err := s.db.QueryContext(ctx, `SELECT geography_code, category, excess, observed, rate, death_share, population_share, rank, label
		FROM category_summaries WHERE run_id=? ORDER BY geography_code, position`, runID)
	if err != nil {
		return nil, err
	}
	defer catRows.Close()
	for catRows.Next() {
		var code, category string
		var cat mortality.CategorySummary
		var rate, death, pop sql.NullFloat64
		if err := catRows.Scan(&code, &category, &cat.Excess, &cat.Observed, &rate, &death, &pop, &cat.Rank, &cat.Label); err != nil {
			return nil, err
		}
		idx, ok := index[code]
		if !ok {
			continue
		}
		cat.Category = mortality.Category(category)
		cat.Rate = ratio(rate)
		cat.DeathShare = ratio(death)
		cat.PopulationShare = ratio(pop)
		summaries[idx].Categories = append(summaries[idx].Categories, cat)
		summaries[idx].CategoryLabels[cat.Category] = cat.Label
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}
	return mortality.NewReport(summaries), nil
}

// WideRows returns the wide rows of a run, optionally limited to one geography.
func (s *Store) WideRows(ctx context.Context, runID, geographyCode string) ([]mortality.WideRow, error) {
	query := `SELECT geography_code, geography_name, week_ending, category, all_cause_difference, all_cause_percent, covid_difference, covid_percent
		FROM wide_rows WHERE run_id=?`
	args := []any{runID}
	if geographyCode != "" {
		query += ` AND geography_code=?`
		args = append(args, geographyCode)
	}
	query += ` ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []mortality.WideRow
	for rows.Next() {
		var w mortality.WideRow
		var week, category string
		var acd, acp, cd, cp sql.NullFloat64
		if err := rows.Scan(&w.GeographyCode, &w.GeographyName, &week, &category, &acd, &acp, &cd, &cp); err != nil {
			return nil, err
		}
		date, err := time.Parse(dateLayout, week)
		if err != nil {
			return nil, fmt.Errorf("wide row date %q: %w", week, err)
		}
		w.Date = date
		w.Category = mortality.Category(category)
		w.AllCauseDifference = floatPtr(acd)
		w.AllCausePercent = floatPtr(acp)
		w.CovidDifference = floatPtr(cd)
		w.CovidPercent = floatPtr(cp)
		out = append(out, w)
	}
	return out, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullRatio(r mortality.Ratio) sql.NullFloat64 {
	return sql.NullFloat64{Float64: r.Value, Valid: r.Valid}
}

func ratio(v sql.NullFloat64) mortality.Ratio {
	if !v.Valid {
		return mortality.Ratio{}
	}
	return mortality.Defined(v.Float64)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

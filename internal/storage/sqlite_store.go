package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/spectral-calibration/internal/calibration"
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates a store backed by the SQLite database at dbPath. The
// database and its schema are created on the first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) SaveRun(ctx context.Context, p *calibration.Product, created time.Time) (runID int64, err error) {
	if p.FileCount() == 0 {
		return 0, fmt.Errorf("saving run: no observations")
	}

	config, err := json.Marshal(toRunConfig(p.Config))
	if err != nil {
		return 0, fmt.Errorf("marshaling config: %w", err)
	}
	observations, err := json.Marshal(p.Observations)
	if err != nil {
		return 0, fmt.Errorf("marshaling observations: %w", err)
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	first := p.Observations[0]
	last := p.Observations[len(p.Observations)-1]

	result, err := tx.ExecContext(ctx, insertRunSQL,
		created.UTC(),
		first.Object,
		first.Telescope,
		first.DateObs.UTC(),
		last.DateEnd.UTC(),
		p.FileCount(),
		string(config),
		string(observations),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	if runID, err = result.LastInsertId(); err != nil {
		return 0, fmt.Errorf("getting run ID: %w", err)
	}

	if err = insertBins(ctx, tx, runID, AxisVelocity, p.Result.Velocity); err != nil {
		return 0, err
	}
	if err = insertBins(ctx, tx, runID, AxisFrequency, p.Result.Frequency); err != nil {
		return 0, err
	}
	if err = insertChannels(ctx, tx, runID, p.Channels, p.Result.ChannelAverage); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return runID, nil
}

func insertBins(ctx context.Context, tx *sql.Tx, runID int64, axis string, r calibration.AxisResult) error {
	for start := 0; start < len(r.Edges); start += batchRows {
		end := min(start+batchRows, len(r.Edges))

		values := make([]any, 0, (end-start)*7)
		for i := start; i < end; i++ {
			values = append(values, runID, axis, i, r.Edges[i], toNullFloat(r.Average[i]), r.Sum[i], r.Count[i])
		}

		if _, err := tx.ExecContext(ctx, batchInsert(insertBinsSQL, "(?, ?, ?, ?, ?, ?, ?)", end-start), values...); err != nil {
			return fmt.Errorf("batch inserting %s bins: %w", axis, err)
		}
	}
	return nil
}

func insertChannels(ctx context.Context, tx *sql.Tx, runID int64, channels []int, average []float64) error {
	if len(channels) != len(average) {
		return fmt.Errorf("inserting channels: %d channels, %d averages", len(channels), len(average))
	}

	for start := 0; start < len(channels); start += batchRows {
		end := min(start+batchRows, len(channels))

		values := make([]any, 0, (end-start)*3)
		for i := start; i < end; i++ {
			values = append(values, runID, channels[i], toNullFloat(average[i]))
		}

		if _, err := tx.ExecContext(ctx, batchInsert(insertChannelsSQL, "(?, ?, ?)", end-start), values...); err != nil {
			return fmt.Errorf("batch inserting channels: %w", err)
		}
	}
	return nil
}

func (s *SqliteStore) Run(ctx context.Context, id int64) (run *Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, selectRunSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	run, err = scanRun(stmt.QueryRowContext(ctx, id))
	if err != nil {
		return nil, fmt.Errorf("scanning run %d: %w", id, err)
	}
	return run, nil
}

func (s *SqliteStore) Runs(ctx context.Context) (runs []*Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var run *Run
		if run, err = scanRun(rows); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		run                  Run
		config, observations string
	)
	if err := row.Scan(
		&run.ID,
		&run.Created,
		&run.Object,
		&run.Telescope,
		&run.DateObs,
		&run.DateEnd,
		&run.Files,
		&config,
		&observations,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(config), &run.Config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := json.Unmarshal([]byte(observations), &run.Observations); err != nil {
		return nil, fmt.Errorf("decoding observations: %w", err)
	}
	return &run, nil
}

func (s *SqliteStore) Bins(ctx context.Context, runID int64, axis string) (bins []Bin, err error) {
	if axis != AxisVelocity && axis != AxisFrequency {
		return nil, fmt.Errorf("unknown axis %q", axis)
	}

	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectBinsSQL, runID, axis)
	if err != nil {
		return nil, fmt.Errorf("querying bins: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			b       Bin
			average sql.NullFloat64
		)
		if err = rows.Scan(&b.Index, &b.Edge, &average, &b.Sum, &b.Count); err != nil {
			return nil, fmt.Errorf("scanning bin: %w", err)
		}
		b.Average = fromNullFloat(average)
		bins = append(bins, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bins: %w", err)
	}
	return bins, nil
}

func (s *SqliteStore) Channels(ctx context.Context, runID int64) (channels []Channel, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectChannelsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			c       Channel
			average sql.NullFloat64
		)
		if err = rows.Scan(&c.Channel, &average); err != nil {
			return nil, fmt.Errorf("scanning channel: %w", err)
		}
		c.Average = fromNullFloat(average)
		channels = append(channels, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating channels: %w", err)
	}
	return channels, nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}

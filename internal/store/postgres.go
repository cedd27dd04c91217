package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-cli/internal/db"
	"github.com/sells-group/freight-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_company":        `SELECT id, name, deduction_type, deduction_value FROM companies WHERE id = $1`,
	"insert_voucher":     `INSERT INTO vouchers (id, company_id, file_path, format, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_voucher":        `SELECT id, company_id, file_path, format, status, error, failed_stage, trips_processed, quality_score, created_at, updated_at FROM vouchers WHERE id = $1`,
	"set_voucher_status": `UPDATE vouchers SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_voucher":   `UPDATE vouchers SET status = $1, trips_processed = $2, quality_score = $3, error = NULL, failed_stage = NULL, updated_at = $4 WHERE id = $5`,
	"fail_voucher":       `UPDATE vouchers SET status = $1, error = $2, failed_stage = $3, updated_at = $4 WHERE id = $5`,
	"delete_trips":       `DELETE FROM trips WHERE voucher_id = $1`,
	"trips_for_voucher":  `SELECT voucher_id, company_id, line_number, trip_date, origin, destination, weight_tons, unit_rate, subtotal, deduction_amount, total_amount, vehicle_plate, driver_name, ticket_number, product_type, extraction_confidence, data_source_type FROM trips WHERE voucher_id = $1 ORDER BY line_number`,
}

// tripColumns is the COPY column order for bulk trip inserts.
var tripColumns = []string{
	"id", "voucher_id", "company_id", "line_number", "trip_date",
	"origin", "destination", "weight_tons", "unit_rate", "subtotal",
	"deduction_amount", "total_amount", "vehicle_plate", "driver_name",
	"ticket_number", "product_type", "extraction_confidence",
	"data_source_type", "created_at",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	deduction_type  TEXT NOT NULL DEFAULT 'percentage',
	deduction_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS vouchers (
	id              TEXT PRIMARY KEY,
	company_id      TEXT NOT NULL REFERENCES companies(id),
	file_path       TEXT NOT NULL,
	format          TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	error           TEXT,
	failed_stage    TEXT,
	trips_processed INTEGER NOT NULL DEFAULT 0,
	quality_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trips (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	voucher_id            TEXT NOT NULL REFERENCES vouchers(id),
	company_id            TEXT NOT NULL,
	line_number           INTEGER NOT NULL,
	trip_date             TIMESTAMPTZ NOT NULL,
	origin                TEXT,
	destination           TEXT,
	weight_tons           DOUBLE PRECISION NOT NULL,
	unit_rate             DOUBLE PRECISION NOT NULL,
	subtotal              DOUBLE PRECISION NOT NULL,
	deduction_amount      DOUBLE PRECISION NOT NULL,
	total_amount          DOUBLE PRECISION NOT NULL,
	vehicle_plate         TEXT,
	driver_name           TEXT,
	ticket_number         TEXT,
	product_type          TEXT,
	extraction_confidence DOUBLE PRECISION NOT NULL,
	data_source_type      TEXT NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vouchers_status ON vouchers(status);
CREATE INDEX IF NOT EXISTS idx_vouchers_company_id ON vouchers(company_id);
CREATE INDEX IF NOT EXISTS idx_trips_voucher_id ON trips(voucher_id);
CREATE INDEX IF NOT EXISTS idx_trips_company_id ON trips(company_id);
CREATE INDEX IF NOT EXISTS idx_trips_trip_date ON trips(trip_date);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	var dedType string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, deduction_type, deduction_value FROM companies WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &dedType, &c.Deduction.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("company not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get company %s", id)
	}
	c.Deduction.Type = model.DeductionType(dedType)
	return &c, nil
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, company model.Company) error {
	if err := company.Deduction.Validate(); err != nil {
		return eris.Wrapf(err, "postgres: upsert company %s", company.ID)
	}
	err := db.UpsertRow(ctx, s.pool, "companies",
		[]string{"id", "name", "deduction_type", "deduction_value", "updated_at"},
		[]string{"id"},
		[]any{company.ID, company.Name, string(company.Deduction.Type), company.Deduction.Value, time.Now().UTC()},
	)
	return eris.Wrapf(err, "postgres: upsert company %s", company.ID)
}

func (s *PostgresStore) CreateVoucher(ctx context.Context, doc model.SourceDocument) (*model.Voucher, error) {
	id := doc.VoucherID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO vouchers (id, company_id, file_path, format, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, doc.CompanyID, doc.Path, string(doc.Format), string(model.VoucherPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert voucher %s", id)
	}

	return &model.Voucher{
		ID:        id,
		CompanyID: doc.CompanyID,
		FilePath:  doc.Path,
		Format:    doc.Format,
		Status:    model.VoucherPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetVoucher(ctx context.Context, voucherID string) (*model.Voucher, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, company_id, file_path, format, status, error, failed_stage, trips_processed, quality_score, created_at, updated_at FROM vouchers WHERE id = $1`,
		voucherID,
	)
	v, err := scanVoucherPG(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("voucher not found: %s", voucherID)
		}
		return nil, eris.Wrapf(err, "postgres: get voucher %s", voucherID)
	}
	return v, nil
}

func (s *PostgresStore) ListVouchers(ctx context.Context, filter VoucherFilter) ([]model.Voucher, error) {
	query := `SELECT id, company_id, file_path, format, status, error, failed_stage, trips_processed, quality_score, created_at, updated_at FROM vouchers WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.CompanyID != "" {
		query += fmt.Sprintf(` AND company_id = $%d`, argIdx)
		args = append(args, filter.CompanyID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vouchers")
	}
	defer rows.Close()

	var vouchers []model.Voucher
	for rows.Next() {
		v, err := scanVoucherPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan voucher")
		}
		vouchers = append(vouchers, *v)
	}
	return vouchers, eris.Wrap(rows.Err(), "postgres: list vouchers iterate")
}

func (s *PostgresStore) SetVoucherStatus(ctx context.Context, voucherID string, status model.VoucherStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vouchers SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), voucherID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set voucher status %s", voucherID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("voucher not found: %s", voucherID)
	}
	return nil
}

func (s *PostgresStore) CompleteVoucher(ctx context.Context, voucherID string, tripsProcessed int, qualityScore float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vouchers SET status = $1, trips_processed = $2, quality_score = $3, error = NULL, failed_stage = NULL, updated_at = $4 WHERE id = $5`,
		string(model.VoucherCompleted), tripsProcessed, qualityScore, time.Now().UTC(), voucherID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete voucher %s", voucherID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("voucher not found: %s", voucherID)
	}
	return nil
}

func (s *PostgresStore) FailVoucher(ctx context.Context, voucherID string, stage, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vouchers SET status = $1, error = $2, failed_stage = $3, updated_at = $4 WHERE id = $5`,
		string(model.VoucherFailed), reason, stage, time.Now().UTC(), voucherID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail voucher %s", voucherID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("voucher not found: %s", voucherID)
	}
	return nil
}

// ReplaceTrips clears and re-inserts the voucher's trips inside one
// transaction. Either the whole batch lands or none of it does.
func (s *PostgresStore) ReplaceTrips(ctx context.Context, voucherID, companyID string, trips []model.TripRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "postgres: replace trips %s: begin tx", voucherID)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM trips WHERE voucher_id = $1`, voucherID); err != nil {
		return eris.Wrapf(err, "postgres: replace trips %s: clear", voucherID)
	}

	now := time.Now().UTC()
	rows := make([][]any, len(trips))
	for i, t := range trips {
		rows[i] = []any{
			uuid.New().String(), voucherID, companyID, t.Line, t.TripDate,
			t.Origin, t.Destination, t.WeightTons, t.UnitRate, t.Subtotal,
			t.DeductionAmount, t.TotalAmount, t.VehiclePlate, t.DriverName,
			t.TicketNumber, t.ProductType, t.ExtractionConfidence,
			t.DataSourceType, now,
		}
	}
	if _, err := db.CopyFrom(ctx, tx, "trips", tripColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: replace trips %s: copy", voucherID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "postgres: replace trips %s: commit", voucherID)
	}
	return nil
}

func (s *PostgresStore) TripsForVoucher(ctx context.Context, voucherID string) ([]model.TripRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT voucher_id, company_id, line_number, trip_date, origin, destination, weight_tons, unit_rate, subtotal, deduction_amount, total_amount, vehicle_plate, driver_name, ticket_number, product_type, extraction_confidence, data_source_type FROM trips WHERE voucher_id = $1 ORDER BY line_number`,
		voucherID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: trips for voucher %s", voucherID)
	}
	defer rows.Close()

	var trips []model.TripRecord
	for rows.Next() {
		var t model.TripRecord
		if err := rows.Scan(&t.VoucherID, &t.CompanyID, &t.Line, &t.TripDate,
			&t.Origin, &t.Destination, &t.WeightTons, &t.UnitRate, &t.Subtotal,
			&t.DeductionAmount, &t.TotalAmount, &t.VehiclePlate, &t.DriverName,
			&t.TicketNumber, &t.ProductType, &t.ExtractionConfidence,
			&t.DataSourceType); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trip")
		}
		trips = append(trips, t)
	}
	return trips, eris.Wrap(rows.Err(), "postgres: trips iterate")
}

// scanVoucherPG scans a voucher row from either QueryRow or Query results.
func scanVoucherPG(row pgx.Row) (*model.Voucher, error) {
	var v model.Voucher
	var errMsg, failedStage *string
	var format string

	err := row.Scan(&v.ID, &v.CompanyID, &v.FilePath, &format, &v.Status,
		&errMsg, &failedStage, &v.TripsProcessed, &v.QualityScore,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.Format = model.ContainerFormat(format)
	if errMsg != nil {
		v.Error = *errMsg
	}
	if failedStage != nil {
		v.FailedStage = *failedStage
	}
	return &v, nil
}

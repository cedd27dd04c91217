package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/freight-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local and
// single-operator deployments where running Postgres is not worth it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	deduction_type  TEXT NOT NULL DEFAULT 'percentage',
	deduction_value REAL NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
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
	quality_score   REAL NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS trips (
	id                    TEXT PRIMARY KEY,
	voucher_id            TEXT NOT NULL REFERENCES vouchers(id),
	company_id            TEXT NOT NULL,
	line_number           INTEGER NOT NULL,
	trip_date             DATETIME NOT NULL,
	origin                TEXT,
	destination           TEXT,
	weight_tons           REAL NOT NULL,
	unit_rate             REAL NOT NULL,
	subtotal              REAL NOT NULL,
	deduction_amount      REAL NOT NULL,
	total_amount          REAL NOT NULL,
	vehicle_plate         TEXT,
	driver_name           TEXT,
	ticket_number         TEXT,
	product_type          TEXT,
	extraction_confidence REAL NOT NULL,
	data_source_type      TEXT NOT NULL,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_vouchers_status ON vouchers(status);
CREATE INDEX IF NOT EXISTS idx_vouchers_company_id ON vouchers(company_id);
CREATE INDEX IF NOT EXISTS idx_trips_voucher_id ON trips(voucher_id);
CREATE INDEX IF NOT EXISTS idx_trips_trip_date ON trips(trip_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	var dedType string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, deduction_type, deduction_value FROM companies WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &dedType, &c.Deduction.Value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Errorf("company not found: %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get company %s", id)
	}
	c.Deduction.Type = model.DeductionType(dedType)
	return &c, nil
}

func (s *SQLiteStore) UpsertCompany(ctx context.Context, company model.Company) error {
	if err := company.Deduction.Validate(); err != nil {
		return eris.Wrapf(err, "sqlite: upsert company %s", company.ID)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, deduction_type, deduction_value, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = ?, deduction_type = ?, deduction_value = ?, updated_at = ?`,
		company.ID, company.Name, string(company.Deduction.Type), company.Deduction.Value, time.Now().UTC(),
		company.Name, string(company.Deduction.Type), company.Deduction.Value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert company %s", company.ID)
}

func (s *SQLiteStore) CreateVoucher(ctx context.Context, doc model.SourceDocument) (*model.Voucher, error) {
	id := doc.VoucherID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vouchers (id, company_id, file_path, format, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, doc.CompanyID, doc.Path, string(doc.Format), string(model.VoucherPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert voucher %s", id)
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

func (s *SQLiteStore) GetVoucher(ctx context.Context, voucherID string) (*model.Voucher, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, file_path, format, status, error, failed_stage, trips_processed, quality_score, created_at, updated_at FROM vouchers WHERE id = ?`,
		voucherID,
	)
	v, err := scanVoucherSQL(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Errorf("voucher not found: %s", voucherID)
		}
		return nil, eris.Wrapf(err, "sqlite: get voucher %s", voucherID)
	}
	return v, nil
}

func (s *SQLiteStore) ListVouchers(ctx context.Context, filter VoucherFilter) ([]model.Voucher, error) {
	query := `SELECT id, company_id, file_path, format, status, error, failed_stage, trips_processed, quality_score, created_at, updated_at FROM vouchers WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vouchers")
	}
	defer rows.Close()

	var vouchers []model.Voucher
	for rows.Next() {
		v, err := scanVoucherSQL(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan voucher")
		}
		vouchers = append(vouchers, *v)
	}
	return vouchers, eris.Wrap(rows.Err(), "sqlite: list vouchers iterate")
}

func (s *SQLiteStore) SetVoucherStatus(ctx context.Context, voucherID string, status model.VoucherStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vouchers SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), voucherID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set voucher status %s", voucherID)
	}
	return checkRowsAffected(res, "voucher", voucherID)
}

func (s *SQLiteStore) CompleteVoucher(ctx context.Context, voucherID string, tripsProcessed int, qualityScore float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vouchers SET status = ?, trips_processed = ?, quality_score = ?, error = NULL, failed_stage = NULL, updated_at = ? WHERE id = ?`,
		string(model.VoucherCompleted), tripsProcessed, qualityScore, time.Now().UTC(), voucherID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete voucher %s", voucherID)
	}
	return checkRowsAffected(res, "voucher", voucherID)
}

func (s *SQLiteStore) FailVoucher(ctx context.Context, voucherID string, stage, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vouchers SET status = ?, error = ?, failed_stage = ?, updated_at = ? WHERE id = ?`,
		string(model.VoucherFailed), reason, stage, time.Now().UTC(), voucherID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail voucher %s", voucherID)
	}
	return checkRowsAffected(res, "voucher", voucherID)
}

func (s *SQLiteStore) ReplaceTrips(ctx context.Context, voucherID, companyID string, trips []model.TripRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: replace trips %s: begin tx", voucherID)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trips WHERE voucher_id = ?`, voucherID); err != nil {
		return eris.Wrapf(err, "sqlite: replace trips %s: clear", voucherID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trips (id, voucher_id, company_id, line_number, trip_date, origin, destination,
		  weight_tons, unit_rate, subtotal, deduction_amount, total_amount, vehicle_plate,
		  driver_name, ticket_number, product_type, extraction_confidence, data_source_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrapf(err, "sqlite: replace trips %s: prepare", voucherID)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range trips {
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), voucherID, companyID, t.Line, t.TripDate,
			t.Origin, t.Destination, t.WeightTons, t.UnitRate, t.Subtotal,
			t.DeductionAmount, t.TotalAmount, t.VehiclePlate, t.DriverName,
			t.TicketNumber, t.ProductType, t.ExtractionConfidence,
			t.DataSourceType, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: replace trips %s: insert line %d", voucherID, t.Line)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "sqlite: replace trips %s: commit", voucherID)
	}
	return nil
}

func (s *SQLiteStore) TripsForVoucher(ctx context.Context, voucherID string) ([]model.TripRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT voucher_id, company_id, line_number, trip_date, origin, destination, weight_tons, unit_rate, subtotal, deduction_amount, total_amount, vehicle_plate, driver_name, ticket_number, product_type, extraction_confidence, data_source_type FROM trips WHERE voucher_id = ? ORDER BY line_number`,
		voucherID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: trips for voucher %s", voucherID)
	}
	defer rows.Close()

	var trips []model.TripRecord
	for rows.Next() {
		var t model.TripRecord
		var origin, destination, plate, driver, ticket, product sql.NullString
		if err := rows.Scan(&t.VoucherID, &t.CompanyID, &t.Line, &t.TripDate,
			&origin, &destination, &t.WeightTons, &t.UnitRate, &t.Subtotal,
			&t.DeductionAmount, &t.TotalAmount, &plate, &driver,
			&ticket, &product, &t.ExtractionConfidence,
			&t.DataSourceType); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trip")
		}
		t.Origin = origin.String
		t.Destination = destination.String
		t.VehiclePlate = plate.String
		t.DriverName = driver.String
		t.TicketNumber = ticket.String
		t.ProductType = product.String
		trips = append(trips, t)
	}
	return trips, eris.Wrap(rows.Err(), "sqlite: trips iterate")
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

// scanVoucherSQL scans a voucher row via a database/sql Scan func.
func scanVoucherSQL(scan func(dest ...any) error) (*model.Voucher, error) {
	var v model.Voucher
	var status, format string
	var errMsg, failedStage sql.NullString

	err := scan(&v.ID, &v.CompanyID, &v.FilePath, &format, &status,
		&errMsg, &failedStage, &v.TripsProcessed, &v.QualityScore,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.Format = model.ContainerFormat(format)
	v.Status = model.VoucherStatus(status)
	v.Error = errMsg.String
	v.FailedStage = failedStage.String
	return &v, nil
}

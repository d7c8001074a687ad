package facts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// The database/sql repositories serve the MySQL/MariaDB and SQLite drivers.
// Both bind with "?" and accept ISO date strings for DATE comparisons.

const dateLayout = "2006-01-02"

// -- Fact Repository --

type factRepoSQL struct {
	db *sql.DB
}

// NewFactRepoSQL returns a FactStore backed by a database/sql handle.
func NewFactRepoSQL(db *sql.DB) FactStore {
	return &factRepoSQL{db: db}
}

func (r *factRepoSQL) Select(ctx context.Context, kind Kind, from, to time.Time, filter *Code) ([]DailyFact, error) {
	query, err := selectFactsSQL(kind, filter != nil, question)
	if err != nil {
		return nil, err
	}
	args := []interface{}{from.Format(dateLayout), to.Format(dateLayout)}
	if filter != nil {
		arg, ok := codeArg(kind.IntCodes(), *filter)
		if !ok {
			return nil, nil
		}
		args = append(args, arg)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("select "+string(kind), err)
	}
	defer rows.Close()

	var out []DailyFact
	for rows.Next() {
		f, err := scanFactSQL(rows, kind)
		if err != nil {
			return nil, unavailable("scan "+string(kind), err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("select "+string(kind), err)
	}
	return out, nil
}

func scanFactSQL(rows *sql.Rows, kind Kind) (DailyFact, error) {
	measures := kind.Measures()
	values := make([]int64, len(measures))
	var (
		rawDate interface{}
		code    string
	)

	dest := make([]interface{}, 0, len(measures)+2)
	dest = append(dest, &rawDate, &code)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return DailyFact{}, err
	}

	date, err := parseDate(rawDate)
	if err != nil {
		return DailyFact{}, err
	}
	f := DailyFact{
		Date:      date,
		Dimension: Code(code),
		Measures:  make(map[Measure]int64, len(measures)),
	}
	for i, m := range measures {
		f.Measures[m] = values[i]
	}
	return f, nil
}

// parseDate normalises what the drivers hand back for a DATE column: MySQL
// with parseTime and go-sqlite3 on DATE-typed columns return time.Time, text
// columns come back as string or []byte.
func parseDate(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return truncateDay(d), nil
	case string:
		return parseDateString(d)
	case []byte:
		return parseDateString(string(d))
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %T", v)
	}
}

func parseDateString(s string) (time.Time, error) {
	if len(s) >= len(dateLayout) {
		if t, err := time.Parse(dateLayout, s[:len(dateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed date %q", s)
}

// -- Master Repository --

type masterRepoSQL struct {
	db *sql.DB
}

// NewMasterRepoSQL returns a MasterStore backed by a database/sql handle.
func NewMasterRepoSQL(db *sql.DB) MasterStore {
	return &masterRepoSQL{db: db}
}

func (r *masterRepoSQL) LookupActive(ctx context.Context, kind MasterKind) ([]MasterRecord, error) {
	query, err := selectActiveSQL(kind, "NULL")
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable("select "+string(kind), err)
	}
	defer rows.Close()

	var out []MasterRecord
	for rows.Next() {
		rec, err := scanMasterSQL(rows, kind)
		if err != nil {
			return nil, unavailable("scan "+string(kind), err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("select "+string(kind), err)
	}
	return out, nil
}

func (r *masterRepoSQL) LookupByCode(ctx context.Context, kind MasterKind, code Code) (*MasterRecord, error) {
	query, err := selectByCodeSQL(kind, "NULL", question)
	if err != nil {
		return nil, err
	}
	arg, ok := codeArg(masterIntCodes(kind), code)
	if !ok {
		return nil, nil
	}

	rec, err := scanMasterSQL(r.db.QueryRowContext(ctx, query, arg), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("lookup "+string(kind), err)
	}
	return rec, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMasterSQL(row rowScanner, kind MasterKind) (*MasterRecord, error) {
	var (
		rec      = MasterRecord{Kind: kind}
		code     string
		capacity sql.NullInt64
	)
	if err := row.Scan(&code, &rec.Name, &rec.Seq, &rec.Active, &capacity); err != nil {
		return nil, err
	}
	rec.Code = Code(code)
	if capacity.Valid {
		c := int(capacity.Int64)
		rec.Capacity = &c
	}
	return &rec, nil
}

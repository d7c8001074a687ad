package facts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgNullInt keeps the capacity column typed for masters without one.
const pgNullInt = "NULL::integer"

// queryable abstracts pgxpool.Pool and pgxpool.Conn.
type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// -- Fact Repository --

type factRepoPG struct {
	db queryable
}

// NewFactRepoPG returns a FactStore backed by PostgreSQL.
func NewFactRepoPG(pool *pgxpool.Pool) FactStore {
	return &factRepoPG{db: pool}
}

func (r *factRepoPG) Select(ctx context.Context, kind Kind, from, to time.Time, filter *Code) ([]DailyFact, error) {
	query, err := selectFactsSQL(kind, filter != nil, dollar)
	if err != nil {
		return nil, err
	}
	args := []interface{}{from, to}
	if filter != nil {
		arg, ok := codeArg(kind.IntCodes(), *filter)
		if !ok {
			return nil, nil
		}
		args = append(args, arg)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("select "+string(kind), err)
	}
	defer rows.Close()

	var out []DailyFact
	for rows.Next() {
		f, err := scanFactPG(rows, kind)
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

func scanFactPG(rows pgx.Rows, kind Kind) (DailyFact, error) {
	measures := kind.Measures()
	values := make([]int64, len(measures))
	var (
		date    time.Time
		intCode int64
		strCode string
	)

	dest := make([]interface{}, 0, len(measures)+2)
	dest = append(dest, &date)
	if kind.IntCodes() {
		dest = append(dest, &intCode)
	} else {
		dest = append(dest, &strCode)
	}
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return DailyFact{}, err
	}

	f := DailyFact{
		Date:     truncateDay(date),
		Measures: make(map[Measure]int64, len(measures)),
	}
	if kind.IntCodes() {
		f.Dimension = IntCode(int(intCode))
	} else {
		f.Dimension = Code(strCode)
	}
	for i, m := range measures {
		f.Measures[m] = values[i]
	}
	return f, nil
}

// -- Master Repository --

type masterRepoPG struct {
	db queryable
}

// NewMasterRepoPG returns a MasterStore backed by PostgreSQL.
func NewMasterRepoPG(pool *pgxpool.Pool) MasterStore {
	return &masterRepoPG{db: pool}
}

func (r *masterRepoPG) LookupActive(ctx context.Context, kind MasterKind) ([]MasterRecord, error) {
	query, err := selectActiveSQL(kind, pgNullInt)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, unavailable("select "+string(kind), err)
	}
	defer rows.Close()

	var out []MasterRecord
	for rows.Next() {
		rec, err := scanMasterPG(rows, kind)
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

func (r *masterRepoPG) LookupByCode(ctx context.Context, kind MasterKind, code Code) (*MasterRecord, error) {
	query, err := selectByCodeSQL(kind, pgNullInt, dollar)
	if err != nil {
		return nil, err
	}
	arg, ok := codeArg(masterIntCodes(kind), code)
	if !ok {
		return nil, nil
	}

	rec, err := scanMasterPG(r.db.QueryRow(ctx, query, arg), kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("lookup "+string(kind), err)
	}
	return rec, nil
}

func scanMasterPG(row pgx.Row, kind MasterKind) (*MasterRecord, error) {
	var (
		rec      = MasterRecord{Kind: kind}
		intCode  int64
		strCode  string
		capacity *int32
	)
	codeDest := interface{}(&strCode)
	if masterIntCodes(kind) {
		codeDest = &intCode
	}
	if err := row.Scan(codeDest, &rec.Name, &rec.Seq, &rec.Active, &capacity); err != nil {
		return nil, err
	}
	if masterIntCodes(kind) {
		rec.Code = IntCode(int(intCode))
	} else {
		rec.Code = Code(strCode)
	}
	if capacity != nil {
		c := int(*capacity)
		rec.Capacity = &c
	}
	return &rec, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

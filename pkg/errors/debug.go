package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGFields are the server-side diagnostics of a Postgres error.
type PGFields struct {
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Trace is a log-friendly breakdown of an error chain.
type Trace struct {
	Message string    `json:"message"`
	Code    Code      `json:"code,omitempty"`
	Chain   []string  `json:"chain,omitempty"`
	PG      *PGFields `json:"pg,omitempty"`
}

// Explain walks err's chain and pulls out the typed code and any driver
// diagnostics from pgx or lib/pq.
func Explain(err error) Trace {
	if err == nil {
		return Trace{}
	}

	t := Trace{Message: err.Error()}
	if typed := As(err); typed != nil {
		t.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		t.Chain = append(t.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	t.PG = pgFieldsOf(err)
	return t
}

// Fields flattens t for structured logging.
func (t Trace) Fields() map[string]any {
	out := map[string]any{
		"error":       t.Message,
		"error_code":  t.Code,
		"error_chain": t.Chain,
	}
	if t.PG != nil {
		out["pg_code"] = t.PG.Code
		out["pg_constraint"] = t.PG.Constraint
		out["pg_detail"] = t.PG.Detail
	}
	return out
}

func pgFieldsOf(err error) *PGFields {
	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		return &PGFields{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return &PGFields{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

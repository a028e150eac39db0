package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump flattens an error chain for structured logs.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`

	Chain []string `json:"chain,omitempty"`

	// Subject holds the order, product or category identifiers carried in
	// the typed error details.
	Subject map[string]any `json:"subject,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGCondition  string `json:"pg_condition,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

var subjectKeys = []string{"order_id", "order_number", "product_id", "category_id", "customer_id", "operation"}

// pgConditions names the SQLSTATEs the order and stock paths react to.
var pgConditions = map[string]string{
	"23505": "unique_violation",
	"23514": "check_violation",
	"23503": "foreign_key_violation",
	"55P03": "lock_not_available",
	"40P01": "deadlock_detected",
	"40001": "serialization_failure",
	"57014": "query_canceled",
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
		if details, ok := te.Details().(map[string]any); ok {
			for _, key := range subjectKeys {
				if v, ok := details[key]; ok {
					if d.Subject == nil {
						d.Subject = map[string]any{}
					}
					d.Subject[key] = v
				}
			}
		}
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	} else {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			d.PGCode = string(pqErr.Code)
			d.PGConstraint = pqErr.Constraint
			d.PGTable = pqErr.Table
			d.PGColumn = pqErr.Column
			d.PGDetail = pqErr.Detail
			d.PGMessage = pqErr.Message
		}
	}
	d.PGCondition = pgConditions[d.PGCode]

	return d
}

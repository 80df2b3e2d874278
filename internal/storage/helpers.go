package storage

import (
	"database/sql"
	"errors"
	"math"
	"strings"
)

// batchRows bounds the number of rows in a single multi-row INSERT so the
// statement stays under the SQLite host parameter limit.
const batchRows = 500

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

// toNullFloat maps NaN, which marks an empty bin, to NULL.
func toNullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func fromNullFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// batchInsert builds a multi-row INSERT statement from prefix with rows
// placeholder groups.
func batchInsert(prefix, placeholder string, rows int) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for i := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholder)
	}
	return sb.String()
}

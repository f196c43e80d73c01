package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrorDump flattens an error chain for request logs. Driver fields are only
// set when a sqlite or postgres error sits somewhere in the chain.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Chain      []string

	Driver     string
	DriverCode string
	Constraint string
	Detail     string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var liteErr sqlite3.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &liteErr):
		d.Driver = "sqlite"
		d.DriverCode = strconv.Itoa(int(liteErr.ExtendedCode))
		d.Detail = liteErr.Error()
	case errors.As(err, &pgErr):
		d.Driver = "postgres"
		d.DriverCode = pgErr.Code
		d.Constraint = pgErr.ConstraintName
		d.Detail = pgErr.Message
	}
	return d
}

// Fields renders the dump as structured log fields, leaving out empty ones.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error_message": d.TopMessage,
		"error_chain":   d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if d.Driver != "" {
		fields["db_driver"] = d.Driver
		fields["db_code"] = d.DriverCode
		fields["db_detail"] = d.Detail
	}
	if d.Constraint != "" {
		fields["db_constraint"] = d.Constraint
	}
	return fields
}

package postgres

import (
	"errors"
	"net/http"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/propertyos/internal/store"
)

// mapPostgresError converts a database error into a *store.Error carrying the server's own message.
// Status is set to the HTTP status the hosted data API reports for the same condition.
func mapPostgresError(op string, table store.Table, err error) error {
	if err == nil {
		return nil
	}

	storeErr := &store.Error{Op: op, Table: table, Err: err}

	// Check if it's a PostgreSQL error
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return storeErr
	}

	storeErr.Code = pgErr.Code
	storeErr.Message = pgErr.Message

	switch pgErr.Code {
	case pgerrcode.InsufficientPrivilege:
		// row policy or grant rejected the statement
		storeErr.Status = http.StatusForbidden

	case pgerrcode.UniqueViolation:
		storeErr.Status = http.StatusConflict

	case pgerrcode.ForeignKeyViolation,
		pgerrcode.CheckViolation,
		pgerrcode.NotNullViolation,
		pgerrcode.InvalidTextRepresentation,
		pgerrcode.StringDataRightTruncationDataException:
		storeErr.Status = http.StatusBadRequest

	case pgerrcode.UndefinedTable, pgerrcode.UndefinedColumn:
		storeErr.Status = http.StatusNotFound

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.TooManyConnections:
		storeErr.Status = http.StatusServiceUnavailable

	case pgerrcode.QueryCanceled:
		storeErr.Status = http.StatusGatewayTimeout

	default:
		storeErr.Status = http.StatusInternalServerError
	}

	return storeErr
}

package mysql

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrEmptyDSN                 = errors.New("mysql: empty DSN, set MYSQL_DSN")
	ErrFailedToParseDSN         = errors.New("mysql: failed to parse DSN")
	ErrFailedToOpenDBConnection = errors.New("mysql: failed to open db connection")
	ErrHealthcheckFailed        = errors.New("mysql: healthcheck failed")
)

// Server error numbers used by the helpers below.
const (
	errDupEntry         = 1062
	errLockWaitTimeout  = 1205
	errLockDeadlock     = 1213
	errNoReferencedRow2 = 1452
)

func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, sql.ErrNoRows)
}

// IsDuplicateKeyError detects unique key violations (ER_DUP_ENTRY).
func IsDuplicateKeyError(err error) bool {
	return hasNumber(err, errDupEntry)
}

func IsForeignKeyViolationError(err error) bool {
	return hasNumber(err, errNoReferencedRow2)
}

// IsLockError reports lock wait timeouts and deadlocks. Both leave the
// transaction to be retried by the caller.
func IsLockError(err error) bool {
	return hasNumber(err, errLockWaitTimeout) || hasNumber(err, errLockDeadlock)
}

func hasNumber(err error, n uint16) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == n
}

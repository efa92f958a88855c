// Package repository defines the explicit-SQL data access layer and the
// sentinel errors it shares with higher layers.  The service layer maps
// these values onto domain error kinds; handlers never see them directly.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by primary key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique index, such as
// the (provider_id, request_id) index on applications.
var ErrDuplicate = errors.New("duplicate")

// ErrEmailExists is returned when creating a user whose email is taken.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicateKey recognises unique index violations from MySQL and from the
// SQLite driver used in tests.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "1062")
}

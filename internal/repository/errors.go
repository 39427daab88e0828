package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// ErrDuplicateKey is returned when a write violates a unique constraint.
var ErrDuplicateKey = errors.New("duplicate key")

const (
	mysqlDuplicateEntry    = 1062
	postgresUniqueViolated = "23505"
)

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if IsDuplicateKey(err) && !errors.Is(err, ErrDuplicateKey) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

// IsDuplicateKey reports whether err is a unique-constraint violation from any supported store.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateKey) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolated
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

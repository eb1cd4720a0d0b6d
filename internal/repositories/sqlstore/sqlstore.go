// Package sqlstore implements the repository ports on PostgreSQL and SQLite.
// Both dialects share the same statements; only the placeholder format differs.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"

	"github.com/robuust/reverserelations/internal/infrastructure/database"
	"github.com/robuust/reverserelations/internal/repositories"
)

var tracer = otel.Tracer("internal/repositories/sqlstore")

// statementBuilder returns a squirrel builder bound to db with the driver's placeholders
func statementBuilder(db *sql.DB, driver string) sq.StatementBuilderType {
	return sq.StatementBuilder.
		PlaceholderFormat(database.PlaceholderFor(driver)).
		RunWith(db)
}

// notFound wraps err with msg, mapping sql.ErrNoRows to repositories.ErrNotFound
func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		err = repositories.ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

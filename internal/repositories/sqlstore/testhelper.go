package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	sq "github.com/Masterminds/squirrel"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/infrastructure/config"
	"github.com/robuust/reverserelations/internal/infrastructure/database"
	"github.com/robuust/reverserelations/internal/repositories"
)

// TestDB is a migrated SQLite database with fixture helpers
type TestDB struct {
	t      *testing.T
	DB     *sql.DB
	Driver string
	stbl   sq.StatementBuilderType

	Fields    repositories.FieldRepository
	Groups    repositories.GroupRepository
	Elements  repositories.ElementRepository
	Relations repositories.RelationRepository
}

// SetupTestDB creates a fresh SQLite database in a temp dir and runs migrations.
// The database is closed when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "relations.db"),
	}

	d, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := d.RunMigrations(); err != nil {
		d.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	tdb := &TestDB{
		t:         t,
		DB:        d.DB,
		Driver:    d.Driver,
		stbl:      statementBuilder(d.DB, d.Driver),
		Fields:    NewFieldRepository(d.DB, d.Driver),
		Groups:    NewGroupRepository(d.DB, d.Driver),
		Elements:  NewElementRepository(d.DB, d.Driver),
		Relations: NewRelationRepository(d.DB, d.Driver),
	}
	t.Cleanup(func() { CleanupTestDB(t, d.DB) })

	return tdb
}

// CleanupTestDB closes the database connection
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()

	if err := db.Close(); err != nil {
		t.Logf("Warning: Failed to close database: %v", err)
	}
}

// Site creates a site and returns its id
func (d *TestDB) Site(handle string) int64 {
	d.t.Helper()
	return d.insertID(d.stbl.Insert("sites").Columns("handle").Values(handle))
}

// Element creates a canonical element of the given kind present in the given sites
func (d *TestDB) Element(kind entities.SourceKind, siteIDs ...int64) int64 {
	d.t.Helper()
	id := d.insertID(d.stbl.Insert("elements").Columns("kind").Values(kind.Name))
	d.addToSites(id, siteIDs)
	return id
}

// User creates a user element present in the given sites
func (d *TestDB) User(username string, siteIDs ...int64) int64 {
	d.t.Helper()
	id := d.Element(entities.UserKind, siteIDs...)
	d.exec(d.stbl.Insert("users").Columns("id", "username", "email").Values(id, username, username+"@example.com"))
	return id
}

// Entry creates an entry element in a section, present in the given sites
func (d *TestDB) Entry(sectionID int64, title string, siteIDs ...int64) int64 {
	d.t.Helper()
	id := d.Element(entities.EntryKind, siteIDs...)
	d.exec(d.stbl.Insert("entries").Columns("id", "section_id", "title").Values(id, sectionID, title))
	return id
}

// Derivative creates a draft of a canonical element, present in the given sites
func (d *TestDB) Derivative(canonical int64, kind entities.SourceKind, siteIDs ...int64) int64 {
	d.t.Helper()
	id := d.insertID(d.stbl.Insert("elements").Columns("kind", "canonical_id").Values(kind.Name, canonical))
	d.addToSites(id, siteIDs)
	return id
}

// Disable turns an element off
func (d *TestDB) Disable(id int64) {
	d.t.Helper()
	d.exec(d.stbl.Update("elements").Set("enabled", false).Where(sq.Eq{"id": id}))
}

// SoftDelete marks an element deleted
func (d *TestDB) SoftDelete(id int64) {
	d.t.Helper()
	d.exec(d.stbl.Update("elements").Set("date_deleted", sq.Expr("CURRENT_TIMESTAMP")).Where(sq.Eq{"id": id}))
}

// Group creates a group of the given kind
func (d *TestDB) Group(kind entities.SourceKind, handle string) *repositories.Group {
	d.t.Helper()
	g := &repositories.Group{Handle: handle}
	if err := d.Groups.Create(context.Background(), kind, g); err != nil {
		d.t.Fatalf("Failed to create group %s: %v", handle, err)
	}
	return g
}

// AddMember puts a source into a group
func (d *TestDB) AddMember(kind entities.SourceKind, groupID, sourceID int64) {
	d.t.Helper()
	if err := d.Groups.AddMember(context.Background(), kind, groupID, sourceID); err != nil {
		d.t.Fatalf("Failed to add member: %v", err)
	}
}

// Field stores a field definition
func (d *TestDB) Field(field *entities.FieldConfig) *entities.FieldConfig {
	d.t.Helper()
	if err := d.Fields.Create(context.Background(), field); err != nil {
		d.t.Fatalf("Failed to create field %s: %v", field.Handle, err)
	}
	return field
}

// Edges stores relation edges
func (d *TestDB) Edges(edges ...*entities.RelationEdge) {
	d.t.Helper()
	if err := d.Relations.BatchWrite(context.Background(), edges); err != nil {
		d.t.Fatalf("Failed to write edges: %v", err)
	}
}

func (d *TestDB) addToSites(id int64, siteIDs []int64) {
	d.t.Helper()
	for _, siteID := range siteIDs {
		d.exec(d.stbl.Insert("elements_sites").Columns("element_id", "site_id").Values(id, siteID))
	}
}

func (d *TestDB) insertID(b sq.InsertBuilder) int64 {
	d.t.Helper()
	var id int64
	if err := b.Suffix("RETURNING id").QueryRowContext(context.Background()).Scan(&id); err != nil {
		d.t.Fatalf("Failed to insert fixture: %v", err)
	}
	return id
}

func (d *TestDB) exec(b sq.Sqlizer) {
	d.t.Helper()
	stmt, args, err := b.ToSql()
	if err != nil {
		d.t.Fatalf("Failed to build fixture statement: %v", err)
	}
	if _, err := d.DB.Exec(stmt, args...); err != nil {
		d.t.Fatalf("Failed to write fixture: %v", err)
	}
}

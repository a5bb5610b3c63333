package db_test

import (
	"testing"
	"testing/fstest"

	"procurement/internal/db"
	"procurement/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverMigrations_SortedWithChecksums(t *testing.T) {
	files := fstest.MapFS{
		"002_items.sql": {Data: []byte("CREATE TABLE b ();")},
		"001_init.sql":  {Data: []byte("CREATE TABLE a ();")},
		"README.md":     {Data: []byte("not a migration")},
		"archive/x.sql": {Data: []byte("ignored, nested")},
	}

	got, err := db.DiscoverMigrations(files)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "001", got[0].Version)
	assert.Equal(t, "001_init.sql", got[0].Filename)
	assert.Equal(t, "CREATE TABLE a ();", got[0].SQL)
	assert.Len(t, got[0].Checksum, 64)
	assert.NotEqual(t, got[0].Checksum, got[1].Checksum)
}

func TestDiscoverMigrations_Rejects(t *testing.T) {
	_, err := db.DiscoverMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 2;")},
	})
	assert.ErrorContains(t, err, "duplicate migration version 001")

	_, err = db.DiscoverMigrations(fstest.MapFS{"init.sql": {Data: []byte("SELECT 1;")}})
	assert.ErrorContains(t, err, "invalid migration filename")
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := db.DiscoverMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "001_procurement_core.sql", got[0].Filename)
	assert.Contains(t, got[0].SQL, "documents_doc_type_sequence_number_key")
	assert.Contains(t, got[0].SQL, "ON DELETE RESTRICT")
	assert.NotContains(t, got[0].SQL, "SET NULL")
}

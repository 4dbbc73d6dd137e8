package repository

import (
	"testing"

	"herald/models"
	"herald/repository/testutil"
)

// newTestStore builds a store over a fresh container with the given shard layout
func newTestStore(t *testing.T, shardID, shardCount int) (*Store, *testutil.TestDatabase) {
	t.Helper()
	testDB := testutil.SetupTestDatabase(t)

	store := NewStore(testDB.DB, Options{
		Defaults:   models.NewDefaults("/"),
		ShardID:    shardID,
		ShardCount: shardCount,
	})
	return store, testDB
}

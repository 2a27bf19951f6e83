package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestSupportsTransactions(t *testing.T) {
	tests := []struct {
		name  string
		hello bson.M
		want  bool
	}{
		{"replica set member", bson.M{"isWritablePrimary": true, "setName": "rs0"}, true},
		{"mongos", bson.M{"isWritablePrimary": true, "msg": "isdbgrid"}, true},
		{"standalone", bson.M{"isWritablePrimary": true}, false},
		{"empty set name", bson.M{"setName": ""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, supportsTransactions(tt.hello))
		})
	}
}

func TestUpsertModels_InsertOnlyByNameAndTag(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	models := upsertModels([]Row{
		{ID: "id-1", Name: "libfoo", TagName: "v1.0.0", Version: "1.0.0", ReleaseURL: "u1", Created: created},
	})
	require.Len(t, models, 1)

	m, ok := models[0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	require.NotNil(t, m.Upsert)
	require.True(t, *m.Upsert)
	require.Equal(t, bson.D{{Key: "name", Value: "libfoo"}, {Key: "tag_name", Value: "v1.0.0"}}, m.Filter)

	update, ok := m.Update.(bson.D)
	require.True(t, ok)
	require.Len(t, update, 1)
	require.Equal(t, "$setOnInsert", update[0].Key)
	require.Equal(t, bson.D{
		{Key: "_id", Value: "id-1"},
		{Key: "version", Value: "1.0.0"},
		{Key: "release_url", Value: "u1"},
		{Key: "created", Value: created},
	}, update[0].Value)
}

func TestOnlyDuplicateKeys(t *testing.T) {
	dup := mongo.BulkWriteError{WriteError: mongo.WriteError{Code: duplicateKeyCode}}
	other := mongo.BulkWriteError{WriteError: mongo.WriteError{Code: 121}}

	require.True(t, onlyDuplicateKeys(mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{dup, dup}}))
	require.False(t, onlyDuplicateKeys(mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{dup, other}}))
	require.False(t, onlyDuplicateKeys(mongo.BulkWriteException{
		WriteErrors:       []mongo.BulkWriteError{dup},
		WriteConcernError: &mongo.WriteConcernError{Code: 64},
	}))
	require.False(t, onlyDuplicateKeys(mongo.BulkWriteException{}))
	require.False(t, onlyDuplicateKeys(errors.New("connection reset")))
}

func TestUpserted_NilResult(t *testing.T) {
	require.Equal(t, 0, upserted(nil))
	require.Equal(t, 2, upserted(&mongo.BulkWriteResult{UpsertedCount: 2}))
}

package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	errs "github.com/whatschanged/whatschanged/pkg/errors"
)

const (
	// DefaultMongoDatabase is used when no database name is configured.
	DefaultMongoDatabase = "whatschanged"

	mongoCollection = "releases"
	connectTimeout  = 10 * time.Second

	duplicateKeyCode = 11000
)

// Mongo is a [Store] backed by a MongoDB collection.
//
// On a replica set or sharded cluster each InsertRows call runs in one
// multi-document transaction. A standalone server cannot run transactions;
// there the batch is a single unordered bulk upsert, so a failed batch may
// leave some of its rows stored. Rows are immutable and keyed by
// (name, tag_name), so retrying the same batch completes it.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	txn    bool
}

// OpenMongo connects to uri, pings the server, ensures the unique
// (name, tag_name) index on the releases collection and detects whether
// the deployment supports transactions.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "ping mongodb")
	}

	coll := client.Database(database).Collection(mongoCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}, {Key: "tag_name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("idx_releases_name_tag"),
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "create releases index")
	}

	var hello bson.M
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		client.Disconnect(context.Background())
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "query mongodb topology")
	}
	return &Mongo{client: client, coll: coll, txn: supportsTransactions(hello)}, nil
}

// supportsTransactions reads a hello reply: replica set members report
// setName and mongos routers report msg "isdbgrid".
func supportsTransactions(hello bson.M) bool {
	if name, ok := hello["setName"].(string); ok && name != "" {
		return true
	}
	msg, _ := hello["msg"].(string)
	return msg == "isdbgrid"
}

// RowsFor implements [Store].
func (m *Mongo) RowsFor(ctx context.Context, name string) ([]Row, error) {
	cur, err := m.coll.Find(ctx, bson.M{"name": name})
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "query releases for %s", name)
	}
	var rows []Row
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "decode releases for %s", name)
	}
	return rows, nil
}

// InsertRows implements [Store]. Each row is an upsert on (name, tag_name)
// that only writes on insert, so existing pairs are left untouched.
func (m *Mongo) InsertRows(ctx context.Context, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	assignIDs(rows)
	models := upsertModels(rows)

	if !m.txn {
		// Unordered, so a duplicate from a concurrent writer does not stop
		// the rest of the batch.
		res, err := m.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
		if err != nil && !onlyDuplicateKeys(err) {
			return 0, errs.Wrap(errs.ErrCodeStorage, err, "insert %d releases", len(rows))
		}
		return upserted(res), nil
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return 0, errs.Wrap(errs.ErrCodeStorage, err, "start mongodb session")
	}
	defer sess.EndSession(context.Background())

	n, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		res, err := m.coll.BulkWrite(sc, models, options.BulkWrite().SetOrdered(true))
		if err != nil {
			return 0, err
		}
		return upserted(res), nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.ErrCodeStorage, err, "insert %d releases", len(rows))
	}
	return n.(int), nil
}

func upserted(res *mongo.BulkWriteResult) int {
	if res == nil {
		return 0
	}
	return int(res.UpsertedCount)
}

func upsertModels(rows []Row) []mongo.WriteModel {
	models := make([]mongo.WriteModel, len(rows))
	for i, r := range rows {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "name", Value: r.Name}, {Key: "tag_name", Value: r.TagName}}).
			SetUpdate(bson.D{{Key: "$setOnInsert", Value: bson.D{
				{Key: "_id", Value: r.ID},
				{Key: "version", Value: r.Version},
				{Key: "release_url", Value: r.ReleaseURL},
				{Key: "created", Value: r.Created},
			}}}).
			SetUpsert(true)
	}
	return models
}

func onlyDuplicateKeys(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

// HasAny implements [Store].
func (m *Mongo) HasAny(ctx context.Context, name string) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"name": name}, options.Count().SetLimit(1))
	if err != nil {
		return false, errs.Wrap(errs.ErrCodeStorage, err, "query releases for %s", name)
	}
	return n > 0, nil
}

// Count implements [Store].
func (m *Mongo) Count(ctx context.Context) (int64, error) {
	n, err := m.coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, errs.Wrap(errs.ErrCodeStorage, err, "count releases")
	}
	return n, nil
}

// Close implements [Store].
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

var _ Store = (*Mongo)(nil)

// Package mongodb implements the repository interfaces on top of MongoDB.
//
// The collection and field names ("codes", "users", accessCount, userId, isAdmin)
// match the documents the bot has always written, so an existing deployment can
// point BOT_MONGO_URI at its old database and keep every snippet link working.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/snippetbot/internal/repository"
)

const (
	snippetsCollection = "codes"
	usersCollection    = "users"
)

var _ repository.Store = (*DB)(nil)

// DB holds a connected client and the two collections the bot uses.
type DB struct {
	client   *mongo.Client
	snippets *mongo.Collection
	users    *mongo.Collection
}

// New connects to uri, verifies the connection and ensures indexes exist.
func New(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	database := client.Database(dbName)
	db := &DB{
		client:   client,
		snippets: database.Collection(snippetsCollection),
		users:    database.Collection(usersCollection),
	}

	if err := db.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ensuring indexes: %w", err)
	}

	return db, nil
}

// ensureIndexes creates the unique index on users.userId. Register depends on
// it: the upsert race between two first-contact messages is settled by the
// index, not by a find-then-insert.
//
// Databases written by earlier versions can already hold duplicate userId
// documents, which makes the index build fail. Those are collapsed first and
// the build is retried once.
func (db *DB) ensureIndexes(ctx context.Context) error {
	err := db.createUserIndex(ctx)
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}

	removed, derr := db.dedupeUsers(ctx)
	if derr != nil {
		return fmt.Errorf("%w; collapsing duplicate users failed (remove extra userId documents by hand): %v", err, derr)
	}
	slog.Warn("collapsed duplicate user documents before indexing",
		slog.String("collection", usersCollection),
		slog.Int64("removed", removed),
	)

	return db.createUserIndex(ctx)
}

func (db *DB) createUserIndex(ctx context.Context) error {
	_, err := db.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_user_id"),
	})
	if err != nil {
		return fmt.Errorf("creating users.userId index: %w", err)
	}
	return nil
}

// duplicateUsers is one $group result: every document sharing a userId, oldest
// first, and whether any of them carried the admin flag.
type duplicateUsers struct {
	UserID int64         `bson:"_id"`
	IDs    []interface{} `bson:"ids"`
	Admin  bool          `bson:"admin"`
}

// split keeps the oldest document and returns the rest for deletion.
func (d duplicateUsers) split() (keep interface{}, drop []interface{}) {
	if len(d.IDs) == 0 {
		return nil, nil
	}
	return d.IDs[0], d.IDs[1:]
}

// dedupeUsers keeps one document per userId. The survivor inherits isAdmin if
// any duplicate had it, so no admin is demoted by the cleanup.
func (db *DB) dedupeUsers(ctx context.Context) (int64, error) {
	cur, err := db.users.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$userId"},
			{Key: "ids", Value: bson.D{{Key: "$push", Value: "$_id"}}},
			{Key: "admin", Value: bson.D{{Key: "$max", Value: "$isAdmin"}}},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "n", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
	})
	if err != nil {
		return 0, fmt.Errorf("finding duplicate users: %w", err)
	}

	var groups []duplicateUsers
	if err := cur.All(ctx, &groups); err != nil {
		return 0, fmt.Errorf("decoding duplicate users: %w", err)
	}

	var removed int64
	for _, g := range groups {
		keep, drop := g.split()
		if len(drop) == 0 {
			continue
		}
		if g.Admin {
			if _, err := db.users.UpdateByID(ctx, keep, bson.M{"$set": bson.M{"isAdmin": true}}); err != nil {
				return removed, fmt.Errorf("keeping admin flag for %d: %w", g.UserID, err)
			}
		}
		res, err := db.users.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": drop}})
		if err != nil {
			return removed, fmt.Errorf("removing duplicates of %d: %w", g.UserID, err)
		}
		removed += res.DeletedCount
	}
	return removed, nil
}

// Ping verifies the primary is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo: ping: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/snippetbot/internal/apperror"
	"github.com/sakif/snippetbot/internal/model"
	"github.com/sakif/snippetbot/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

type userDocument struct {
	UserID    int64     `bson:"userId"`
	Username  string    `bson:"username,omitempty"`
	IsAdmin   bool      `bson:"isAdmin"`
	CreatedAt time.Time `bson:"createdAt,omitempty"`
}

func (d userDocument) toModel() *model.User {
	return &model.User{
		TelegramID: d.UserID,
		Username:   d.Username,
		IsAdmin:    d.IsAdmin,
		CreatedAt:  d.CreatedAt,
	}
}

// Register upserts with $setOnInsert, so an existing record is left untouched.
// If two first-contact messages race, the unique index rejects the loser with a
// duplicate-key error, which is reported as "already registered".
func (db *DB) Register(ctx context.Context, user *model.User) (bool, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	res, err := db.users.UpdateOne(ctx,
		bson.M{"userId": user.TelegramID},
		bson.M{"$setOnInsert": bson.M{
			"username":  user.Username,
			"isAdmin":   user.IsAdmin,
			"createdAt": user.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("mongo: registering user %d: %w", user.TelegramID, err)
	}

	return res.UpsertedCount == 1, nil
}

// GetUser fetches a user by Telegram ID.
func (db *DB) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	var doc userDocument
	if err := db.users.FindOne(ctx, bson.M{"userId": telegramID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", strconv.FormatInt(telegramID, 10))
		}
		return nil, fmt.Errorf("mongo: getting user %d: %w", telegramID, err)
	}
	return doc.toModel(), nil
}

// IsAdmin reports whether a document matches {userId, isAdmin: true}.
func (db *DB) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	n, err := db.users.CountDocuments(ctx,
		bson.M{"userId": telegramID, "isAdmin": true},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("mongo: checking admin flag for %d: %w", telegramID, err)
	}
	return n > 0, nil
}

// SetAdmin sets isAdmin, creating the user document if it does not exist.
func (db *DB) SetAdmin(ctx context.Context, telegramID int64, admin bool) error {
	_, err := db.users.UpdateOne(ctx,
		bson.M{"userId": telegramID},
		bson.M{
			"$set":         bson.M{"isAdmin": admin},
			"$setOnInsert": bson.M{"createdAt": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo: setting admin flag for %d: %w", telegramID, err)
	}
	return nil
}

// ListUserIDs returns every userId in the directory.
func (db *DB) ListUserIDs(ctx context.Context) ([]int64, error) {
	cur, err := db.users.Find(ctx, bson.D{},
		options.Find().SetProjection(bson.M{"userId": 1, "_id": 0}))
	if err != nil {
		return nil, fmt.Errorf("mongo: listing user ids: %w", err)
	}

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding user ids: %w", err)
	}

	return lo.Map(docs, func(d userDocument, _ int) int64 { return d.UserID }), nil
}

// CountUsers returns the number of documents in the users collection.
func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	n, err := db.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo: counting users: %w", err)
	}
	return n, nil
}

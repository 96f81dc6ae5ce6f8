package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/snippetbot/internal/apperror"
	"github.com/sakif/snippetbot/internal/model"
	"github.com/sakif/snippetbot/internal/repository"
)

var _ repository.SnippetRepository = (*DB)(nil)

// snippetDocument is the on-disk shape of a snippet. The body is stored under
// "markdown" because that is what existing documents use.
type snippetDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Language    string             `bson:"language"`
	Description string             `bson:"description"`
	Content     string             `bson:"markdown"`
	CreatedBy   string             `bson:"createdBy"`
	AccessCount int64              `bson:"accessCount"`
	Image       string             `bson:"image,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt,omitempty"`
}

func (d snippetDocument) toModel() *model.Snippet {
	return &model.Snippet{
		ID:          d.ID.Hex(),
		Language:    d.Language,
		Description: d.Description,
		Content:     d.Content,
		CreatedBy:   d.CreatedBy,
		AccessCount: d.AccessCount,
		Image:       d.Image,
		CreatedAt:   d.CreatedAt,
	}
}

// parseID converts a snippet id into an ObjectID. A string that is not a
// 24-character hex ObjectID cannot name a document, so it is not found.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperror.NotFound("snippet", id)
	}
	return oid, nil
}

// Create inserts a snippet and writes the generated ObjectID back into it.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.AccessCount = 0
	snippet.CreatedAt = time.Now().UTC()

	doc := snippetDocument{
		ID:          primitive.NewObjectID(),
		Language:    snippet.Language,
		Description: snippet.Description,
		Content:     snippet.Content,
		CreatedBy:   snippet.CreatedBy,
		Image:       snippet.Image,
		CreatedAt:   snippet.CreatedAt,
	}
	if _, err := db.snippets.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: creating snippet: %w", err)
	}

	snippet.ID = doc.ID.Hex()
	return nil
}

// GetByID fetches a snippet without touching its counter.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc snippetDocument
	if err := db.snippets.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("mongo: getting snippet %s: %w", id, err)
	}

	return doc.toModel(), nil
}

// IncrementAccess applies $inc and returns the post-update document in a
// single FindOneAndUpdate, which is atomic on one document.
func (db *DB) IncrementAccess(ctx context.Context, id string) (*model.Snippet, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc snippetDocument
	err = db.snippets.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"accessCount": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("mongo: incrementing access count for %s: %w", id, err)
	}

	return doc.toModel(), nil
}

// CountSnippets returns the number of documents in the codes collection.
func (db *DB) CountSnippets(ctx context.Context) (int64, error) {
	n, err := db.snippets.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo: counting snippets: %w", err)
	}
	return n, nil
}

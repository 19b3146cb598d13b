// Package mongo reads published content from MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/docsite/internal/content"
	"github.com/dgallion1/docsite/internal/richtext"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	categoriesCollection = "categories"
	docsCollection       = "docs"
)

type categoryRecord struct {
	ID          string `bson:"_id"`
	Slug        string `bson:"slug"`
	Title       string `bson:"title"`
	Description string `bson:"description,omitempty"`
}

// docRecord stores rich text as a sub-document in the editor's JSON shape.
type docRecord struct {
	ID          string    `bson:"_id"`
	Slug        string    `bson:"slug"`
	Title       string    `bson:"title"`
	Description string    `bson:"description,omitempty"`
	Category    string    `bson:"category"`
	Parent      string    `bson:"parent,omitempty"`
	UpdatedAt   time.Time `bson:"updatedAt"`
	Content     bson.Raw  `bson:"content,omitempty"`
}

// Store is a content.Repository backed by two collections, categories and docs.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri and verifies the connection.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.EnsureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique slug index and the category lookup index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(categoriesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create category slug index: %w", err)
	}
	_, err = s.db.Collection(docsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "category", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create docs category index: %w", err)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]content.Category, error) {
	cursor, err := s.db.Collection(categoriesCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []categoryRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	out := make([]content.Category, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toCategory())
	}
	return out, nil
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (content.Category, error) {
	var rec categoryRecord
	err := s.db.Collection(categoriesCollection).FindOne(ctx, bson.M{"slug": slug}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return content.Category{}, content.ErrNotFound
		}
		return content.Category{}, fmt.Errorf("find category %s: %w", slug, err)
	}
	return rec.toCategory(), nil
}

func (s *Store) DocsInCategory(ctx context.Context, categoryID string, limit int) ([]content.Document, error) {
	cursor, err := s.db.Collection(docsCollection).Find(ctx, bson.M{"category": categoryID}, findDocsOptions(limit))
	if err != nil {
		return nil, fmt.Errorf("find docs in %s: %w", categoryID, err)
	}
	defer cursor.Close(ctx)

	var recs []docRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode docs: %w", err)
	}
	out := make([]content.Document, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDocument())
	}
	content.SortDocuments(out)
	return out, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func findDocsOptions(limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func (r categoryRecord) toCategory() content.Category {
	return content.Category{
		ID:          r.ID,
		Slug:        r.Slug,
		Title:       r.Title,
		Description: r.Description,
	}
}

func (r docRecord) toDocument() content.Document {
	return content.Document{
		ID:          r.ID,
		Slug:        r.Slug,
		Title:       r.Title,
		Description: r.Description,
		CategoryID:  r.Category,
		ParentID:    r.Parent,
		UpdatedAt:   r.UpdatedAt,
		Content:     decodeContent(r.Content),
	}
}

// decodeContent goes through relaxed extended JSON so the tree decoder sees
// plain JSON values. Undecodable content yields a nil tree.
func decodeContent(raw bson.Raw) *richtext.Root {
	if len(raw) == 0 {
		return nil
	}
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil
	}
	root, err := richtext.Decode(data)
	if err != nil {
		return nil
	}
	return root
}

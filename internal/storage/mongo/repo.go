// Package mongostore stores reviews in a document collection shaped exactly like
// the API payload, for deployments that already run the site on MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"pnm_gardeners/internal/domain"
)

const (
	reviewsCollection = "reviews"
	runsCollection    = "ingest_runs"
)

type runDoc struct {
	Source   string    `bson:"source"`
	Segments int       `bson:"segments"`
	Skipped  int       `bson:"skipped"`
	Stored   int       `bson:"stored"`
	RanAt    time.Time `bson:"ran_at"`
}

type Repo struct {
	client  *mongo.Client
	reviews *mongo.Collection
	runs    *mongo.Collection
}

// Connect dials uri and returns a repo over database dbName.
func Connect(ctx context.Context, uri, dbName string) (*Repo, error) {
	cl, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return New(cl, dbName), nil
}

func New(cl *mongo.Client, dbName string) *Repo {
	db := cl.Database(dbName)
	return &Repo{client: cl, reviews: db.Collection(reviewsCollection), runs: db.Collection(runsCollection)}
}

// EnsureIndexes creates the listing and identity indexes. Safe to repeat.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.reviews.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "approved", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *Repo) Ping(ctx context.Context) error { return r.client.Ping(ctx, readpref.Primary()) }

func (r *Repo) Close(ctx context.Context) error { return r.client.Disconnect(ctx) }

// ReplaceReviews clears the collection and inserts rs. Standalone servers have
// no multi-document transactions, so a reader can briefly see an empty set.
func (r *Repo) ReplaceReviews(ctx context.Context, rs []domain.Review) error {
	if _, err := r.reviews.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}
	return r.InsertReviews(ctx, rs)
}

func (r *Repo) InsertReviews(ctx context.Context, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	docs := make([]any, 0, len(rs))
	for _, rv := range rs {
		if rv.Images == nil {
			rv.Images = []string{}
		}
		if rv.CreatedAt.IsZero() {
			rv.CreatedAt = time.Now().UTC()
		}
		docs = append(docs, rv)
	}
	if _, err := r.reviews.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert reviews: %w", err)
	}
	return nil
}

func (r *Repo) LogRun(ctx context.Context, run domain.Run) error {
	_, err := r.runs.InsertOne(ctx, runDoc{
		Source:   run.Source,
		Segments: run.Segments,
		Skipped:  run.Skipped,
		Stored:   run.Stored,
		RanAt:    time.Now().UTC(),
	})
	return err
}

func (r *Repo) ListReviews(ctx context.Context, limit int) ([]domain.Review, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.D{{Key: "_id", Value: 0}})

	cur, err := r.reviews.Find(ctx, bson.D{{Key: "approved", Value: true}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []domain.Review{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Images == nil {
			out[i].Images = []string{}
		}
		out[i].CreatedAt = out[i].CreatedAt.UTC()
	}
	return out, nil
}

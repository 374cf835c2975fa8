// Package store is the document-store repository layer (§6). Every method
// either commits or returns an error; partial success is never returned to
// a caller, and every mutation is expressed as a single atomic document
// command ($inc, $addToSet, conditional $set) rather than a
// read-modify-write round trip — the anti-pattern spec §9 calls out as the
// cause of the lost-counter bug this design avoids.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DatabaseName          = "imagevault"
	collectionsCollection = "collections"
	jobsCollection        = "background_jobs"
	cacheFoldersCollection = "cache_folders"
)

// Store bundles the live Mongo handle and the database it operates on. It
// is the only shared global collaborators receive — passed explicitly into
// every repository constructor, never read from a package variable (§9).
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the deployment, the way a long-running
// worker role should fail fast at startup rather than on first use.
func Connect(ctx context.Context, uri string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(DatabaseName)}, nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

func (s *Store) collections() *mongo.Collection { return s.db.Collection(collectionsCollection) }
func (s *Store) jobs() *mongo.Collection        { return s.db.Collection(jobsCollection) }
func (s *Store) cacheFolders() *mongo.Collection { return s.db.Collection(cacheFoldersCollection) }

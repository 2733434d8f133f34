package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"votematch/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// extractDBName parses the database name from the URI, defaulting to "votematch"
func extractDBName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "votematch"
	}
	if u.Path != "" && u.Path != "/" {
		return u.Path[1:] // Trim leading '/'
	}
	return "votematch"
}

// ConnectMongoDB establishes a connection to MongoDB using the provided URI
// and returns the client together with the database named in the URI.
func ConnectMongoDB(ctx context.Context, uri string, log *logger.Logger) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Verify connection with a ping
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	log.Info("connected to mongodb", "database", dbName)
	return client, client.Database(dbName), nil
}

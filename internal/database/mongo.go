package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoConfig struct {
	URI            string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// NewMongoClient connects and pings the primary so a bad URI fails at startup
// rather than on the first request.
func NewMongoClient(ctx context.Context, config MongoConfig) (*mongo.Client, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(config.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetConnectTimeout(config.ConnectTimeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if config.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(config.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, nil
}

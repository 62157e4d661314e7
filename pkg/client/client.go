package client

import (
	"context"
	"time"

	"slotswap/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client holds the storage connections a process opened. Unused backends stay nil.
type Client struct {
	Mongo    *mongo.Client
	Postgres *pgxpool.Pool
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

func (c *Client) SetPostgres(log *logger.Logger, dsn string, connTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal("Failed to create Postgres pool", "error", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Fatal("Failed to ping Postgres", "error", err)
	}

	log.Info("Successfully connected to Postgres")
	c.Postgres = pool
}

// Ping checks every open connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.Mongo != nil {
		if err := c.Mongo.Ping(ctx, nil); err != nil {
			return err
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) GracefulShutdown(ctx context.Context, log *logger.Logger) {
	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			log.Error("Failed to disconnect from MongoDB", "error", err)
		} else {
			log.Info("Disconnected from MongoDB")
		}
		c.Mongo = nil
	}
	if c.Postgres != nil {
		c.Postgres.Close()
		log.Info("Closed Postgres pool")
		c.Postgres = nil
	}
}

// Package mongo is the document store source: it connects to MongoDB, runs
// find queries written as Extended JSON and exposes the results as value
// documents.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/kailas-cloud/docflat/internal/domain"
)

const (
	defaultHost           = "localhost"
	defaultPort           = "27017"
	defaultReadPreference = "secondaryPreferred"
	defaultConnectTimeout = 10 * time.Second
)

// Config holds connection settings.
type Config struct {
	Database       string
	Hosts          []string
	Ports          []string
	Username       string
	Password       string
	ReadPreference string
	ConnectTimeout time.Duration
	BatchSize      int32
}

// Endpoints pairs hosts with ports. Lists of equal length pair by position;
// otherwise every host gets the first port.
func Endpoints(hosts, ports []string) ([]string, error) {
	hosts = trimAll(hosts)
	ports = trimAll(ports)
	if len(hosts) == 0 {
		hosts = []string{defaultHost}
	}
	if len(ports) == 0 {
		ports = []string{defaultPort}
	}

	out := make([]string, len(hosts))
	for i, h := range hosts {
		p := ports[0]
		if len(hosts) == len(ports) {
			p = ports[i]
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("invalid port %q for host %q", p, h)
		}
		out[i] = net.JoinHostPort(h, p)
	}
	return out, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// clientOptions builds driver options from cfg.
func clientOptions(cfg Config) (*options.ClientOptions, error) {
	seeds, err := Endpoints(cfg.Hosts, cfg.Ports)
	if err != nil {
		return nil, domain.NewConfigError("mongo endpoints", err)
	}

	mode := cfg.ReadPreference
	if mode == "" {
		mode = defaultReadPreference
	}
	m, err := readpref.ModeFromString(mode)
	if err != nil {
		return nil, domain.NewConfigError("mongo read preference", err)
	}
	rp, err := readpref.New(m)
	if err != nil {
		return nil, domain.NewConfigError("mongo read preference", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	opts := options.Client().
		SetHosts(seeds).
		SetReadPreference(rp).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetAppName("docflat")
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.Database,
		})
	}
	return opts, nil
}

// Client is a connected document store session.
type Client struct {
	client    *mongo.Client
	db        *mongo.Database
	batchSize int32
}

// Open validates cfg, connects and pings the server. Missing settings yield a
// fatal configuration error before any network access; a failed connect or
// ping yields a fatal connection error.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Database == "" {
		return nil, domain.NewConfigError("database must be supplied", nil)
	}
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, domain.NewConnectionError("unable to connect to mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, domain.NewConnectionError("unable to connect to mongo", err)
	}

	return &Client{
		client:    client,
		db:        client.Database(cfg.Database),
		batchSize: cfg.BatchSize,
	}, nil
}

// Ping checks server reachability.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// Find runs query against collection. The query is Extended JSON (relaxed);
// empty text matches every document.
func (c *Client) Find(ctx context.Context, collection, query string) (*Cursor, error) {
	if collection == "" {
		return nil, domain.NewConfigError("collection must be supplied", nil)
	}
	filter, err := ParseQuery(query)
	if err != nil {
		return nil, domain.NewQueryError("invalid query", err)
	}

	opts := options.Find()
	if c.batchSize > 0 {
		opts.SetBatchSize(c.batchSize)
	}
	cur, err := c.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.NewQueryError(fmt.Sprintf("find in %q", collection), err)
	}
	return NewCursor(cur), nil
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}

// ParseQuery decodes an Extended JSON filter.
func ParseQuery(query string) (bson.D, error) {
	if strings.TrimSpace(query) == "" {
		return bson.D{}, nil
	}
	var filter bson.D
	if err := bson.UnmarshalExtJSON([]byte(query), false, &filter); err != nil {
		return nil, fmt.Errorf("parse extended json: %w", err)
	}
	return filter, nil
}

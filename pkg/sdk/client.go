package docflat

import (
	"context"
	"fmt"
	"time"

	dbMongo "github.com/kailas-cloud/docflat/internal/db/mongo"
	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
	"github.com/kailas-cloud/docflat/internal/domain/query"
	"github.com/kailas-cloud/docflat/internal/usecase/importer"
)

// Внутренний интерфейс для подмены в тестах.
type source interface {
	importer.Source
	Close(ctx context.Context) error
}

// Client is the docflat SDK entry point. A Client is safe for concurrent use;
// each Rows value is not.
type Client struct {
	source  source
	flatten bool
	rules   []mapping.Rule
	obs     *observer
}

// Open connects to MongoDB and checks the connection. Missing settings and
// bad field rules fail before any network access. Errors match ErrFatal.
func Open(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{flatten: true}
	for _, o := range opts {
		o.apply(cfg)
	}

	rules, err := compileRules(cfg.fieldRules)
	if err != nil {
		return nil, err
	}
	if cfg.database == "" {
		return nil, domain.NewConfigError("docflat: database required (use WithDatabase)", nil)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg, cfg.onDate)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	client, err := dbMongo.Open(ctx, dbMongo.Config{
		Database:       cfg.database,
		Hosts:          cfg.hosts,
		Ports:          cfg.ports,
		Username:       cfg.username,
		Password:       cfg.password,
		ReadPreference: cfg.readPreference,
		BatchSize:      cfg.batchSize,
	})
	obs.observe("open", start, err)
	if err != nil {
		return nil, err //nolint:wrapcheck // fatal domain error
	}

	return wireClient(mongoSource{client: client}, cfg, rules, obs), nil
}

func wireClient(src source, cfg *clientConfig, rules []mapping.Rule, obs *observer) *Client {
	return &Client{
		source:  src,
		flatten: cfg.flatten,
		rules:   rules,
		obs:     obs,
	}
}

func compileRules(in []FieldRule) ([]mapping.Rule, error) {
	rules := make([]mapping.Rule, 0, len(in))
	for i, fr := range in {
		r, err := mapping.NewRule(fr.MongoField, fr.Column, fr.DateFormat, "")
		if err != nil {
			return nil, domain.NewConfigError(fmt.Sprintf("docflat: field rule %d", i), err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Rows runs q (Extended JSON; empty matches everything) against collection.
// Naive "yyyy-MM-dd HH:mm:ss" timestamps in q are rewritten to ISO form first.
// The caller must Close the result.
func (c *Client) Rows(ctx context.Context, collection, q string) (*Rows, error) {
	start := time.Now()
	e := importer.Entity{Name: collection, Collection: collection, Rules: c.rules}
	sess := importer.NewSession(c.source, e, c.flatten, c.obs.dateFailed)

	rows, err := sess.Query(ctx, query.RewriteDateTimes(q))
	c.obs.observe("rows", start, err)
	if err != nil {
		return nil, err //nolint:wrapcheck // fatal domain error
	}
	return &Rows{inner: rows, obs: c.obs}, nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	start := time.Now()
	err := c.source.Close(ctx)
	c.obs.observe("close", start, err)
	return err //nolint:wrapcheck // already wrapped by the driver layer
}

// mongoSource adapts the mongo client to importer.Source.
type mongoSource struct {
	client *dbMongo.Client
}

func (s mongoSource) Find(ctx context.Context, collection, q string) (importer.Cursor, error) {
	cur, err := s.client.Find(ctx, collection, q)
	if err != nil {
		return nil, err //nolint:wrapcheck // fatal domain error
	}
	return cur, nil
}

func (s mongoSource) Close(ctx context.Context) error {
	return s.client.Close(ctx) //nolint:wrapcheck // wrapped by the client
}

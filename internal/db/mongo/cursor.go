package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/kailas-cloud/docflat/internal/domain/value"
)

type driverCursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

var _ driverCursor = (*mongo.Cursor)(nil)

// Cursor decodes driver results into value documents, one at a time.
type Cursor struct {
	cur driverCursor
	doc *value.Document
	err error
}

// NewCursor wraps a driver cursor.
func NewCursor(cur *mongo.Cursor) *Cursor {
	return &Cursor{cur: cur}
}

// Next advances to the next document. It returns false at the end of the
// results or on the first error; Err tells them apart.
func (c *Cursor) Next(ctx context.Context) bool {
	c.doc = nil
	if c.err != nil {
		return false
	}
	if !c.cur.Next(ctx) {
		if err := c.cur.Err(); err != nil {
			c.err = fmt.Errorf("cursor advance: %w", err)
		}
		return false
	}

	var raw bson.D
	if err := c.cur.Decode(&raw); err != nil {
		c.err = fmt.Errorf("decode document: %w", err)
		return false
	}
	doc, err := ToDocument(raw)
	if err != nil {
		c.err = fmt.Errorf("convert document: %w", err)
		return false
	}
	c.doc = doc
	return true
}

// Current returns the document produced by the last successful Next.
func (c *Cursor) Current() *value.Document { return c.doc }

// Err returns the error that stopped the cursor, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the server-side cursor.
func (c *Cursor) Close(ctx context.Context) error {
	c.doc = nil
	if err := c.cur.Close(ctx); err != nil {
		return fmt.Errorf("cursor close: %w", err)
	}
	return nil
}

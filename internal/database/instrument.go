package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/leca/cardvault/internal/model"
)

// Recorder receives the latency and outcome of each store call.
type Recorder interface {
	RecordStore(operation string, duration time.Duration, err error)
}

type instrumented struct {
	next Database
	rec  Recorder
}

// Instrument wraps db so every call is reported to rec.
func Instrument(db Database, rec Recorder) Database {
	if rec == nil {
		return db
	}
	return &instrumented{next: db, rec: rec}
}

func (i *instrumented) List(ctx context.Context) ([]model.Document, error) {
	start := time.Now()
	docs, err := i.next.List(ctx)
	i.rec.RecordStore("list", time.Since(start), err)
	return docs, err
}

func (i *instrumented) Create(ctx context.Context, body json.RawMessage) (string, error) {
	start := time.Now()
	id, err := i.next.Create(ctx, body)
	i.rec.RecordStore("create", time.Since(start), err)
	return id, err
}

func (i *instrumented) Replace(ctx context.Context, id string, body json.RawMessage) error {
	start := time.Now()
	err := i.next.Replace(ctx, id, body)
	i.rec.RecordStore("replace", time.Since(start), err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := i.next.Delete(ctx, id)
	i.rec.RecordStore("delete", time.Since(start), err)
	return err
}

package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/voyagen/epgvault/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	channelsCollection = "channels"
	datesCollection    = "dates"
	runsCollection     = "runs"
	defaultDBName      = "epg"
)

// Mongo implements Store on MongoDB. Shows are embedded in their channel
// document.
type Mongo struct {
	client *mongodriver.Client
	db     *mongodriver.Database
}

// NewMongo connects to uri, pings the primary and ensures indexes. The
// database is taken from the URI path.
func NewMongo(ctx context.Context, uri string) (*Mongo, error) {
	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	m := &Mongo{client: cli, db: cli.Database(databaseFromURI(uri))}
	for _, k := range []Kind{KindChannels, KindDates} {
		if err := m.ensureIndexes(ctx, k); err != nil {
			_ = m.Close(ctx)
			return nil, err
		}
	}
	if _, err := m.db.Collection(runsCollection).Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "started_at", Value: -1}},
		Options: options.Index().SetName("started_at_desc"),
	}); err != nil {
		_ = m.Close(ctx)
		return nil, fmt.Errorf("mongo ensure indexes runs: %w", err)
	}
	return m, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping checks the connection.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) collection(kind Kind) *mongodriver.Collection {
	if kind == KindDates {
		return m.db.Collection(datesCollection)
	}
	return m.db.Collection(channelsCollection)
}

func (m *Mongo) ensureIndexes(ctx context.Context, kind Kind) error {
	var idx []mongodriver.IndexModel
	switch kind {
	case KindChannels:
		idx = []mongodriver.IndexModel{
			{Keys: bson.D{{Key: "provider", Value: 1}}, Options: options.Index().SetName("provider")},
			{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("category")},
		}
	case KindDates:
		idx = []mongodriver.IndexModel{
			{Keys: bson.D{{Key: "timestamp", Value: 1}}, Options: options.Index().SetName("timestamp").SetUnique(true)},
		}
	}
	if _, err := m.collection(kind).Indexes().CreateMany(ctx, idx); err != nil {
		return fmt.Errorf("mongo ensure indexes %s: %w", kind, err)
	}
	return nil
}

// Drop drops the collection of kind and recreates its indexes.
func (m *Mongo) Drop(ctx context.Context, kind Kind) error {
	if err := kind.Validate(); err != nil {
		return fmt.Errorf("Drop: %w", err)
	}
	if err := m.collection(kind).Drop(ctx); err != nil {
		return fmt.Errorf("Drop %s: %w", kind, err)
	}
	return m.ensureIndexes(ctx, kind)
}

// InsertChannels inserts one document per channel with its shows embedded.
func (m *Mongo) InsertChannels(ctx context.Context, channels []models.Channel) (int, error) {
	if len(channels) == 0 {
		return 0, nil
	}
	docs := make([]any, 0, len(channels))
	for _, ch := range channels {
		if ch.Shows == nil {
			ch.Shows = []models.Show{}
		}
		if ch.Category == nil {
			ch.Category = []string{}
		}
		docs = append(docs, ch)
	}
	res, err := m.collection(KindChannels).InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("InsertChannels: %w", err)
	}
	return len(res.InsertedIDs), nil
}

// InsertDates inserts the date rows.
func (m *Mongo) InsertDates(ctx context.Context, dates []models.Date) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	docs := make([]any, 0, len(dates))
	for _, d := range dates {
		docs = append(docs, d)
	}
	res, err := m.collection(KindDates).InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("InsertDates: %w", err)
	}
	return len(res.InsertedIDs), nil
}

// Count returns the number of documents of kind.
func (m *Mongo) Count(ctx context.Context, kind Kind) (int64, error) {
	if err := kind.Validate(); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	n, err := m.collection(kind).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("Count %s: %w", kind, err)
	}
	return n, nil
}

// SaveRun upserts the run watermark.
func (m *Mongo) SaveRun(ctx context.Context, run models.Run) error {
	_, err := m.db.Collection(runsCollection).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: run.ID}}, run, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("SaveRun: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run.
func (m *Mongo) LatestRun(ctx context.Context) (*models.Run, error) {
	var r models.Run
	err := m.db.Collection(runsCollection).FindOne(ctx, bson.D{},
		options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})).Decode(&r)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("LatestRun: %w", err)
	}
	return &r, nil
}

// ListChannels returns channels in natural (insertion) order without shows.
func (m *Mongo) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, error) {
	filter = filter.Normalize()
	q := bson.D{}
	if filter.Provider != "" {
		q = append(q, bson.E{Key: "provider", Value: filter.Provider})
	}
	if filter.Category != "" {
		q = append(q, bson.E{Key: "category", Value: filter.Category})
	}
	opts := options.Find().
		SetProjection(bson.D{{Key: "shows", Value: 0}}).
		SetSort(bson.D{{Key: "$natural", Value: 1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit))

	cur, err := m.collection(KindChannels).Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("ListChannels: %w", err)
	}
	out := []models.Channel{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("ListChannels decode: %w", err)
	}
	for i := range out {
		out[i].Shows = nil
	}
	return out, nil
}

// GetChannel returns one channel document.
func (m *Mongo) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var ch models.Channel
	err := m.collection(KindChannels).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&ch)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetChannel: %w", err)
	}
	localize(&ch)
	return &ch, nil
}

// ListDates returns every date row, ascending.
func (m *Mongo) ListDates(ctx context.Context) ([]models.Date, error) {
	cur, err := m.collection(KindDates).Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("ListDates: %w", err)
	}
	out := []models.Date{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("ListDates decode: %w", err)
	}
	for i := range out {
		localizeDate(&out[i])
	}
	return out, nil
}

// databaseFromURI returns the database named in the URI path, or the default.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

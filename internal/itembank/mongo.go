package itembank

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoCollection is the collection items are read from.
const DefaultMongoCollection = "items"

// MongoRepository serves items from a MongoDB collection. Each document
// is an Item with its ID stored as _id.
type MongoRepository struct {
	collection *mongo.Collection
	vector     bool
}

var (
	_ Repository     = (*MongoRepository)(nil)
	_ EmbeddingStore = (*MongoRepository)(nil)
	_ Lookuper       = (*MongoRepository)(nil)
)

// NewMongoRepository wraps the given collection and ensures the rank
// index exists.
func NewMongoRepository(ctx context.Context, coll *mongo.Collection) (*MongoRepository, error) {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "rank", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return nil, wrapMongo("create rank index", err)
	}

	n, err := coll.CountDocuments(ctx, bson.M{"embedding.0": bson.M{"$exists": true}}, options.Count().SetLimit(1))
	if err != nil {
		return nil, wrapMongo("probe embeddings", err)
	}

	return &MongoRepository{collection: coll, vector: n > 0}, nil
}

// Import upserts every item of the bank.
func (r *MongoRepository) Import(ctx context.Context, items []Item) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	models := make([]mongo.WriteModel, 0, len(items))
	for i := range items {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": items[i].ID}).
			SetReplacement(items[i]).
			SetUpsert(true))
		if len(items[i].Embedding) > 0 {
			r.vector = true
		}
	}
	res, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, wrapMongo("import items", err)
	}
	return res.UpsertedCount + res.ModifiedCount, nil
}

func (r *MongoRepository) Lookup(ctx context.Context, id string) (*Item, error) {
	it, err := r.findOne(ctx, bson.M{"_id": id}, nil)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("item %q: %w", id, ErrItemNotFound)
	}
	return it, nil
}

func (r *MongoRepository) FindNearRank(ctx context.Context, rank, window int) ([]Item, error) {
	if window < 0 {
		window = 0
	}
	filter := bson.M{"rank": bson.M{"$gte": rank - window, "$lte": rank + window}}
	opts := options.Find().SetSort(bson.D{{Key: "rank", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *MongoRepository) Nearest(ctx context.Context, rank int) (*Item, error) {
	below, err := r.findOne(ctx,
		bson.M{"rank": bson.M{"$lte": rank}},
		options.FindOne().SetSort(bson.D{{Key: "rank", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	above, err := r.findOne(ctx,
		bson.M{"rank": bson.M{"$gt": rank}},
		options.FindOne().SetSort(bson.D{{Key: "rank", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}

	switch {
	case below == nil && above == nil:
		return nil, ErrItemNotFound
	case below == nil:
		return above, nil
	case above == nil:
		return below, nil
	}
	if rank-below.Rank <= above.Rank-rank {
		return below, nil
	}
	return above, nil
}

func (r *MongoRepository) Relationships(ctx context.Context, itemID string, kind RelationKind) ([]Item, error) {
	src, err := r.findOne(ctx, bson.M{"_id": itemID}, options.FindOne().SetProjection(bson.M{"relations": 1}))
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("item %q: %w", itemID, ErrItemNotFound)
	}

	var ids []string
	for _, rel := range src.RelationsOf(kind) {
		ids = append(ids, rel.TargetID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "rank", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
}

func (r *MongoRepository) Sample(ctx context.Context, q SampleQuery) ([]Item, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	match := bson.M{}
	if q.MinDistance > 0 {
		match["$or"] = bson.A{
			bson.M{"rank": bson.M{"$lte": q.Center - q.MinDistance}},
			bson.M{"rank": bson.M{"$gte": q.Center + q.MinDistance}},
		}
	}
	if len(q.Exclude) > 0 {
		ids := make([]string, 0, len(q.Exclude))
		for id, ok := range q.Exclude {
			if ok {
				ids = append(ids, id)
			}
		}
		match["_id"] = bson.M{"$nin": ids}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sample", Value: bson.M{"size": q.Limit}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapMongo("sample items", err)
	}
	defer cursor.Close(ctx)

	var items []Item
	if err := cursor.All(ctx, &items); err != nil {
		return nil, wrapMongo("decode sample", err)
	}
	return items, nil
}

func (r *MongoRepository) Bounds(ctx context.Context) (Bounds, error) {
	first, err := r.findOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "rank", Value: 1}}))
	if err != nil {
		return Bounds{}, err
	}
	if first == nil {
		return Bounds{}, ErrItemNotFound
	}
	last, err := r.findOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "rank", Value: -1}}))
	if err != nil {
		return Bounds{}, err
	}
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return Bounds{}, wrapMongo("count items", err)
	}
	return Bounds{MinRank: first.Rank, MaxRank: last.Rank, Count: int(n)}, nil
}

func (r *MongoRepository) Embedding(ctx context.Context, itemID string) ([]float32, error) {
	it, err := r.findOne(ctx, bson.M{"_id": itemID}, options.FindOne().SetProjection(bson.M{"embedding": 1}))
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("item %q: %w", itemID, ErrItemNotFound)
	}
	return it.Embedding, nil
}

func (r *MongoRepository) HasEmbeddings() bool {
	return r.vector
}

func (r *MongoRepository) find(ctx context.Context, filter any, opts *options.FindOptions) ([]Item, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapMongo("find items", err)
	}
	defer cursor.Close(ctx)

	var items []Item
	if err := cursor.All(ctx, &items); err != nil {
		return nil, wrapMongo("decode items", err)
	}
	return items, nil
}

// findOne returns nil, nil when no document matches.
func (r *MongoRepository) findOne(ctx context.Context, filter any, opts *options.FindOneOptions) (*Item, error) {
	var it Item
	err := r.collection.FindOne(ctx, filter, opts).Decode(&it)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapMongo("find item", err)
	}
	return &it, nil
}

// wrapMongo marks network failures and timeouts as ErrUnavailable so
// callers may retry them.
func wrapMongo(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

package promotions

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collectionName = "promotions"

// MongoStorage persists promotions in a MongoDB collection.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage creates a promotion store backed by the given database.
func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique code index and the listing indexes.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "endsAt", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create promotion indexes: %w", err)
	}
	return nil
}

func (s *MongoStorage) Create(ctx context.Context, p *Promotion) error {
	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrCodeTaken
		}
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

func (s *MongoStorage) Get(ctx context.Context, id string) (*Promotion, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStorage) GetByCode(ctx context.Context, code string) (*Promotion, error) {
	return s.findOne(ctx, bson.M{"code": code})
}

func (s *MongoStorage) findOne(ctx context.Context, filter bson.M) (*Promotion, error) {
	var p Promotion
	if err := s.coll.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("find promotion: %w", err)
	}
	return &p, nil
}

// statusFilter translates an effective status into a stored-field filter.
// Expiry is derived from endsAt, so an "expired" query matches documents
// whose window has closed regardless of the stored status.
func statusFilter(status Status, now time.Time) bson.M {
	switch status {
	case StatusExpired:
		return bson.M{"$or": bson.A{
			bson.M{"endsAt": bson.M{"$lt": now}},
			bson.M{"status": StatusExpired},
		}}
	case StatusActive, StatusInactive:
		return bson.M{"status": status, "endsAt": bson.M{"$gte": now}}
	default:
		return bson.M{}
	}
}

func (s *MongoStorage) List(ctx context.Context, f ListFilter) ([]Promotion, int64, error) {
	var clauses bson.A
	if f.Status != "" {
		clauses = append(clauses, statusFilter(f.Status, time.Now().UTC()))
	}
	if f.Audience != "" {
		clauses = append(clauses, bson.M{"targetAudience": f.Audience})
	}
	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{"title": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"code": bson.M{"$regex": pattern, "$options": "i"}},
		}})
	}

	filter := bson.M{}
	if len(clauses) > 0 {
		filter["$and"] = clauses
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count promotions: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}
	defer cur.Close(ctx)

	var items []Promotion
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("decode promotions: %w", err)
	}
	return items, total, nil
}

func (s *MongoStorage) ListActive(ctx context.Context, now time.Time) ([]Promotion, error) {
	filter := bson.M{
		"status":   StatusActive,
		"startsAt": bson.M{"$lte": now},
		"endsAt":   bson.M{"$gte": now},
		"$expr":    bson.M{"$lt": bson.A{"$usedCount", "$usageLimit"}},
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "endsAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}
	defer cur.Close(ctx)

	var items []Promotion
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode active promotions: %w", err)
	}
	return items, nil
}

func (s *MongoStorage) Counts(ctx context.Context, now time.Time) (Counts, error) {
	var c Counts
	var err error

	if c.Total, err = s.coll.CountDocuments(ctx, bson.M{}); err != nil {
		return c, fmt.Errorf("count promotions: %w", err)
	}
	if c.Active, err = s.coll.CountDocuments(ctx, statusFilter(StatusActive, now)); err != nil {
		return c, fmt.Errorf("count active promotions: %w", err)
	}
	if c.Expired, err = s.coll.CountDocuments(ctx, statusFilter(StatusExpired, now)); err != nil {
		return c, fmt.Errorf("count expired promotions: %w", err)
	}

	cur, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$usedCount"},
		}}},
	})
	if err != nil {
		return c, fmt.Errorf("sum redemptions: %w", err)
	}
	defer cur.Close(ctx)

	var agg []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &agg); err != nil {
		return c, fmt.Errorf("decode redemption sum: %w", err)
	}
	if len(agg) > 0 {
		c.Redemptions = agg[0].Total
	}
	return c, nil
}

func (s *MongoStorage) Update(ctx context.Context, p *Promotion) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrCodeTaken
		}
		return fmt.Errorf("update promotion: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrPromotionNotFound
	}
	return nil
}

func (s *MongoStorage) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrPromotionNotFound
	}
	return nil
}

// IncrementUsage is a bare atomic $inc on usedCount. The eligibility check
// happens on a prior read, so two concurrent redemptions of the last slot
// can both pass; the counter itself never loses an increment.
func (s *MongoStorage) IncrementUsage(ctx context.Context, id string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"usedCount": 1}},
	)
	if err != nil {
		return fmt.Errorf("increment promotion usage: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrPromotionNotFound
	}
	return nil
}

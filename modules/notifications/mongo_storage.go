package notifications

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const notificationsCollection = "notifications"

// MongoStorage implements Storage over the notifications collection.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage creates a notification store bound to the given database.
func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{coll: db.Collection(notificationsCollection)}
}

// EnsureIndexes creates the indexes the user-scoped queries rely on.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "read", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

func (s *MongoStorage) Create(ctx context.Context, n Notification) error {
	_, err := s.coll.InsertOne(ctx, n)
	return err
}

func (s *MongoStorage) Get(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *MongoStorage) ListAll(ctx context.Context, opts ListOptions) ([]Notification, int64, error) {
	return s.list(ctx, s.applyOptions(bson.M{}, opts), opts)
}

func (s *MongoStorage) ListForUser(ctx context.Context, userID string, opts ListOptions) ([]Notification, int64, error) {
	filter := s.applyOptions(visibleTo(userID), opts)
	return s.list(ctx, filter, opts)
}

func (s *MongoStorage) list(ctx context.Context, filter bson.M, opts ListOptions) ([]Notification, int64, error) {
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit)).SetSkip(int64(opts.Offset))
	}

	cursor, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}

	var out []Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *MongoStorage) MarkRead(ctx context.Context, id string, readAt time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"read": true, "readAt": readAt}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *MongoStorage) MarkAllReadForUser(ctx context.Context, userID string, readAt time.Time) (int64, error) {
	filter := visibleTo(userID)
	filter["read"] = false

	res, err := s.coll.UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"read": true, "readAt": readAt}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStorage) CountUnread(ctx context.Context, userID string) (int64, error) {
	filter := visibleTo(userID)
	filter["read"] = false
	return s.coll.CountDocuments(ctx, unexpired(filter))
}

func (s *MongoStorage) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// visibleTo matches a user's personal records and every broadcast record.
func visibleTo(userID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"recipient": userID},
		bson.M{"recipient": nil},
	}}
}

func (s *MongoStorage) applyOptions(filter bson.M, opts ListOptions) bson.M {
	if opts.OnlyUnread {
		filter["read"] = false
	}
	if opts.Kind != "" {
		filter["kind"] = opts.Kind
	}
	return unexpired(filter)
}

func unexpired(filter bson.M) bson.M {
	return bson.M{"$and": bson.A{
		filter,
		bson.M{"$or": bson.A{
			bson.M{"expiresAt": bson.M{"$exists": false}},
			bson.M{"expiresAt": bson.M{"$gt": time.Now()}},
		}},
	}}
}

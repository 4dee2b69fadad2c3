package audience

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/razaaliwebdev/sello/pkg/authctx"
)

const usersCollection = "users"

type userDoc struct {
	ID       string `bson:"_id"`
	Email    string `bson:"email,omitempty"`
	Role     string `bson:"role"`
	Verified bool   `bson:"isVerified"`
	Active   bool   `bson:"isActive"`
}

func (d userDoc) record() UserRecord {
	return UserRecord{
		ID:       d.ID,
		Email:    d.Email,
		Role:     authctx.Role(d.Role),
		Verified: d.Verified,
		Active:   d.Active,
	}
}

// MongoUserStore implements UserStore over the users collection.
type MongoUserStore struct {
	coll *mongo.Collection
}

// NewMongoUserStore creates a user store bound to the given database.
func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{coll: db.Collection(usersCollection)}
}

func (s *MongoUserStore) FindByRoles(ctx context.Context, roles []authctx.Role, limit int) ([]UserRecord, error) {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}

	cursor, err := s.coll.Find(ctx,
		bson.M{"role": bson.M{"$in": names}},
		options.Find().SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	records := make([]UserRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	return records, nil
}

func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*UserRecord, error) {
	var doc userDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	rec := doc.record()
	return &rec, nil
}

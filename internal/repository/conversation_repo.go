package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Mehfooz5/launchpad-messaging/internal/models"
)

type mongoConversationRepo struct {
	coll *mongo.Collection
}

// NewMongoConversationRepository ensures the unique pair index that backs the
// at-most-one-conversation-per-pair invariant. Concurrent creates for the same
// pair collide on this index instead of producing duplicates.
func NewMongoConversationRepository(ctx context.Context, coll *mongo.Collection) (ConversationRepository, error) {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("pair_key_uniq"),
		},
		{
			Keys:    bson.D{{Key: "members", Value: 1}},
			Options: options.Index().SetName("members_idx"),
		},
	})
	if err != nil {
		return nil, err
	}
	return &mongoConversationRepo{coll: coll}, nil
}

func (r *mongoConversationRepo) FindByPair(ctx context.Context, a, b string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.coll.FindOne(ctx, bson.M{"pair_key": PairKey(a, b)}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoConversationRepo) Insert(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID().Hex()
	c.PairKey = PairKey(c.Members[0], c.Members[1])
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicatePair
		}
		return nil, err
	}
	return c, nil
}

func (r *mongoConversationRepo) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoConversationRepo) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"members": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (r *mongoConversationRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"updated_at": at.UTC()}})
	return err
}

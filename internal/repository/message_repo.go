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

type mongoMessageRepo struct {
	coll *mongo.Collection
}

func NewMongoMessageRepository(ctx context.Context, coll *mongo.Collection) (MessageRepository, error) {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("conv_created_idx"),
	})
	if err != nil {
		return nil, err
	}
	return &mongoMessageRepo{coll: coll}, nil
}

func (r *mongoMessageRepo) Insert(ctx context.Context, m *models.Message) (*models.Message, error) {
	// ObjectIDs embed a timestamp and a monotonic counter, which gives the
	// tie-break order for messages accepted in the same instant.
	m.ID = primitive.NewObjectID().Hex()
	m.CreatedAt = time.Now().UTC()
	m.Read = false

	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *mongoMessageRepo) History(ctx context.Context, conversationID string, before time.Time, limit int64) ([]*models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before.UTC()}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		// page from the newest end, then restore chronological order
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(limit)
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if limit > 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (r *mongoMessageRepo) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var m models.Message
	err := r.coll.FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessageRepo) CountUnread(ctx context.Context, conversationID, userID string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": userID},
		"read":            false,
	})
}

func (r *mongoMessageRepo) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx, bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": readerID},
		"read":            false,
	}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

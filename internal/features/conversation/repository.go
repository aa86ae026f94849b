package conversation

import (
	"context"
	"time"

	"crmflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*Conversation, error)
	UpdateAssignee(ctx context.Context, id, agentID string) error
	AppendMessage(ctx context.Context, id string, msg Message) error
	LastMessages(ctx context.Context, id string, limit int) ([]Message, error)
}

type ConversationRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewConversationRepository(mongodb *database.MongodbDB) ConversationRepository {
	return &ConversationRepositoryImpl{
		Collection: mongodb.DB.Collection("conversations"),
	}
}

func (r *ConversationRepositoryImpl) GetByID(ctx context.Context, id string) (*Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var conv Conversation
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&conv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepositoryImpl) UpdateAssignee(ctx context.Context, id, agentID string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"assigned_to": agentID,
		"updated_at":  time.Now(),
	}})
	return err
}

func (r *ConversationRepositoryImpl) AppendMessage(ctx context.Context, id string, msg Message) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	return err
}

func (r *ConversationRepositoryImpl) LastMessages(ctx context.Context, id string, limit int) ([]Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	opts := options.FindOne().SetProjection(bson.M{
		"messages": bson.M{"$slice": -limit},
	})

	var conv Conversation
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&conv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return conv.Messages, nil
}

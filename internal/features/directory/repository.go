package directory

import (
	"context"

	"crmflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type AgentRepository interface {
	GetByID(ctx context.Context, id string) (*Agent, error)
}

type AgentRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewAgentRepository(mongodb *database.MongodbDB) AgentRepository {
	return &AgentRepositoryImpl{
		Collection: mongodb.DB.Collection("agents"),
	}
}

func (r *AgentRepositoryImpl) GetByID(ctx context.Context, id string) (*Agent, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var agent Agent
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&agent)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

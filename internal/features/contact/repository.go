package contact

import (
	"context"
	"time"

	"crmflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type ContactRepository interface {
	GetByID(ctx context.Context, id string) (*Contact, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	AddTags(ctx context.Context, id string, tags []string) error
	RemoveTags(ctx context.Context, id string, tags []string) error
	SetPipelineStage(ctx context.Context, id, pipelineID, stageID string, movedAt time.Time) error
	UpdateAssignee(ctx context.Context, id, agentID string) error
}

type ContactRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewContactRepository(mongodb *database.MongodbDB) ContactRepository {
	return &ContactRepositoryImpl{
		Collection: mongodb.DB.Collection("contacts"),
	}
}

func (r *ContactRepositoryImpl) GetByID(ctx context.Context, id string) (*Contact, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var contact Contact
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&contact)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (r *ContactRepositoryImpl) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		switch k {
		case "name", "phone", "email", "assigned_to":
			set[k] = v
		default:
			set["fields."+k] = v
		}
	}

	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	return err
}

func (r *ContactRepositoryImpl) AddTags(ctx context.Context, id string, tags []string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$addToSet": bson.M{"tags": bson.M{"$each": tags}},
		"$set":      bson.M{"updated_at": time.Now()},
	})
	return err
}

func (r *ContactRepositoryImpl) RemoveTags(ctx context.Context, id string, tags []string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$pullAll": bson.M{"tags": tags},
		"$set":     bson.M{"updated_at": time.Now()},
	})
	return err
}

func (r *ContactRepositoryImpl) SetPipelineStage(ctx context.Context, id, pipelineID, stageID string, movedAt time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"pipeline_id":       pipelineID,
		"stage_id":          stageID,
		"pipeline_moved_at": movedAt,
		"updated_at":        time.Now(),
	}})
	return err
}

func (r *ContactRepositoryImpl) UpdateAssignee(ctx context.Context, id, agentID string) error {
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

package automation

import (
	"context"
	"time"

	"crmflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AutomationRepository interface {
	Create(ctx context.Context, automation *Automation) error
	GetByID(ctx context.Context, id string) (*Automation, error)
	List(ctx context.Context, organizationID string) ([]Automation, error)
	Update(ctx context.Context, automation *Automation) error
	Delete(ctx context.Context, id string) error
	Enable(ctx context.Context, id string, active bool) error

	FindActiveByTrigger(ctx context.Context, organizationID string, triggerType TriggerType) ([]Automation, error)
	FindScheduled(ctx context.Context) ([]Automation, error)

	// RecordExecution atomically bumps the counters and stamps the run
	// start time, so concurrent runs never lose updates.
	RecordExecution(ctx context.Context, id primitive.ObjectID, startedAt time.Time, success bool) error

	CreateRunLog(ctx context.Context, log *RunLog) error
	ListRunLogs(ctx context.Context, automationID string, limit int64) ([]RunLog, error)
}

type AutomationRepositoryImpl struct {
	Collection *mongo.Collection
	RunLogs    *mongo.Collection
}

func NewAutomationRepository(mongodb *database.MongodbDB) AutomationRepository {
	return &AutomationRepositoryImpl{
		Collection: mongodb.DB.Collection("automations"),
		RunLogs:    mongodb.DB.Collection("automation_run_logs"),
	}
}

func (r *AutomationRepositoryImpl) Create(ctx context.Context, automation *Automation) error {
	automation.ID = primitive.NewObjectID()
	automation.CreatedAt = time.Now()
	automation.UpdatedAt = time.Now()
	_, err := r.Collection.InsertOne(ctx, automation)
	return err
}

func (r *AutomationRepositoryImpl) GetByID(ctx context.Context, id string) (*Automation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var automation Automation
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&automation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &automation, nil
}

func (r *AutomationRepositoryImpl) List(ctx context.Context, organizationID string) ([]Automation, error) {
	filter := bson.M{}
	if organizationID != "" {
		oid, err := primitive.ObjectIDFromHex(organizationID)
		if err != nil {
			return nil, err
		}
		filter["organization_id"] = oid
	}

	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var automations []Automation
	if err = cursor.All(ctx, &automations); err != nil {
		return nil, err
	}
	return automations, nil
}

func (r *AutomationRepositoryImpl) Update(ctx context.Context, automation *Automation) error {
	automation.UpdatedAt = time.Now()
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": automation.ID}, bson.M{"$set": bson.M{
		"name":       automation.Name,
		"is_active":  automation.IsActive,
		"trigger":    automation.Trigger,
		"actions":    automation.Actions,
		"variables":  automation.Variables,
		"updated_at": automation.UpdatedAt,
	}})
	return err
}

func (r *AutomationRepositoryImpl) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

func (r *AutomationRepositoryImpl) Enable(ctx context.Context, id string, active bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": time.Now(),
	}})
	return err
}

func (r *AutomationRepositoryImpl) FindActiveByTrigger(ctx context.Context, organizationID string, triggerType TriggerType) ([]Automation, error) {
	oid, err := primitive.ObjectIDFromHex(organizationID)
	if err != nil {
		return nil, err
	}

	cursor, err := r.Collection.Find(ctx, bson.M{
		"organization_id": oid,
		"is_active":       true,
		"trigger.type":    triggerType,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var automations []Automation
	if err = cursor.All(ctx, &automations); err != nil {
		return nil, err
	}
	return automations, nil
}

func (r *AutomationRepositoryImpl) FindScheduled(ctx context.Context) ([]Automation, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{
		"is_active":    true,
		"trigger.type": TriggerScheduled,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var automations []Automation
	if err = cursor.All(ctx, &automations); err != nil {
		return nil, err
	}
	return automations, nil
}

func (r *AutomationRepositoryImpl) RecordExecution(ctx context.Context, id primitive.ObjectID, startedAt time.Time, success bool) error {
	inc := bson.M{"total_executions": 1}
	if success {
		inc["successful_executions"] = 1
	} else {
		inc["failed_executions"] = 1
	}

	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": inc,
		"$set": bson.M{"last_executed_at": startedAt},
	})
	return err
}

func (r *AutomationRepositoryImpl) CreateRunLog(ctx context.Context, log *RunLog) error {
	log.ID = primitive.NewObjectID()
	_, err := r.RunLogs.InsertOne(ctx, log)
	return err
}

func (r *AutomationRepositoryImpl) ListRunLogs(ctx context.Context, automationID string, limit int64) ([]RunLog, error) {
	oid, err := primitive.ObjectIDFromHex(automationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().SetSort(bson.M{"start_time": -1}).SetLimit(limit)
	cursor, err := r.RunLogs.Find(ctx, bson.M{"automation_id": oid}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var logs []RunLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

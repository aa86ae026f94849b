package contact

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Contact struct {
	ID              primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	OrganizationID  primitive.ObjectID     `json:"organization_id" bson:"organization_id"`
	Name            string                 `json:"name" bson:"name"`
	Phone           string                 `json:"phone" bson:"phone"`
	Email           string                 `json:"email" bson:"email"`
	Tags            []string               `json:"tags" bson:"tags"`
	Fields          map[string]interface{} `json:"fields" bson:"fields"`
	AssignedTo      string                 `json:"assigned_to" bson:"assigned_to"`
	PipelineID      string                 `json:"pipeline_id" bson:"pipeline_id"`
	StageID         string                 `json:"stage_id" bson:"stage_id"`
	PipelineMovedAt *time.Time             `json:"pipeline_moved_at,omitempty" bson:"pipeline_moved_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" bson:"updated_at"`
}

// TemplateContext flattens a contact into the map shape the template
// renderer and condition evaluator consume.
func (c *Contact) TemplateContext() map[string]interface{} {
	ctx := map[string]interface{}{
		"id":    c.ID.Hex(),
		"name":  c.Name,
		"phone": c.Phone,
		"email": c.Email,
		"tags":  c.Tags,
	}
	for k, v := range c.Fields {
		if _, taken := ctx[k]; !taken {
			ctx[k] = v
		}
	}
	return ctx
}

package aiagent

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Agent is a stored AI agent definition automations can invoke.
type Agent struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OrganizationID primitive.ObjectID `json:"organization_id" bson:"organization_id"`
	Name           string             `json:"name" bson:"name"`
	Model          string             `json:"model" bson:"model"`
	SystemPrompt   string             `json:"system_prompt" bson:"system_prompt"`
	Active         bool               `json:"active" bson:"active"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// Reply is what an agent run returns to the caller.
type Reply struct {
	Content        string `json:"content"`
	Classification string `json:"classification"`
}

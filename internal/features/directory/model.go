package directory

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Agent is a human operator automations can assign conversations or
// contacts to.
type Agent struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OrganizationID primitive.ObjectID `json:"organization_id" bson:"organization_id"`
	Name           string             `json:"name" bson:"name"`
	Email          string             `json:"email" bson:"email"`
	Active         bool               `json:"active" bson:"active"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

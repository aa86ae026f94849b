package conversation

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Message struct {
	Role      string    `json:"role" bson:"role"` // user | agent | assistant
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

type Conversation struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OrganizationID primitive.ObjectID `json:"organization_id" bson:"organization_id"`
	ContactID      string             `json:"contact_id" bson:"contact_id"`
	Channel        string             `json:"channel" bson:"channel"`
	AssignedTo     string             `json:"assigned_to" bson:"assigned_to"`
	Messages       []Message          `json:"messages" bson:"messages"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

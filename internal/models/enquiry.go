package models

import "time"

// Enquiry is a stored contact request. Sent turns true once the notification
// mail is queued.
type Enquiry struct {
	Base         `bson:",inline"`
	PropertyCode string    `bson:"propertyCode,omitempty" json:"propertyCode,omitempty"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	Phone        string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Message      string    `bson:"message" json:"message"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	Sent         bool      `bson:"sent" json:"sent"`
}

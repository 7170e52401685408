package models

import "go.mongodb.org/mongo-driver/v2/bson"

// Object is an entity that owns an ordered list of image ids. Objects live in
// a collection named after the tenant folder.
type Object struct {
	ID     bson.ObjectID `json:"_id" bson:"_id,omitempty"`
	Images []string      `json:"images" bson:"images"`
}

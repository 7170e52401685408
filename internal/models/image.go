package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Image is the metadata document for one stored image binary.
type Image struct {
	ID          bson.ObjectID `json:"_id" bson:"_id,omitempty"`
	Tenant      string        `json:"tenant" bson:"tenant"`
	Name        string        `json:"name" bson:"name"`
	Description string        `json:"description,omitempty" bson:"description,omitempty"`
	Author      string        `json:"author,omitempty" bson:"author,omitempty"`
	AltText     string        `json:"altText,omitempty" bson:"altText,omitempty"`
	Tags        []string      `json:"tags,omitempty" bson:"tags,omitempty"`
	DateAdded   time.Time     `json:"dateAdded" bson:"dateAdded"`
	FilePath    string        `json:"filePath" bson:"filePath"`
	ObjectLink  string        `json:"objectLink" bson:"objectLink"`
	FileFormat  string        `json:"fileFormat" bson:"fileFormat"`
	MimeType    string        `json:"mimeType" bson:"mimeType"`
	SizeBytes   int64         `json:"sizeBytes" bson:"sizeBytes"`
}

// ImageDescriptor is the client-supplied part of a create request.
// ObjectLink names the object to link to; FilePath and FileFormat are
// accepted on the wire but never trusted.
type ImageDescriptor struct {
	Name        string   `json:"name" form:"name" validate:"required,min=1,max=200"`
	Description string   `json:"description" form:"description" validate:"max=2000"`
	Author      string   `json:"author" form:"author" validate:"max=200"`
	AltText     string   `json:"altText" form:"altText" validate:"max=500"`
	Tags        []string `json:"tags" form:"tags" validate:"max=32,dive,min=1,max=64"`
	ObjectLink  string   `json:"objectLink" form:"objectLink" validate:"objectid"`
	FileFormat  string   `json:"fileFormat" form:"fileFormat" validate:"max=16"`
	FilePath    string   `json:"filePath" form:"filePath" validate:"max=1024"`
}

// ImagePatch carries a partial update. Nil fields are left untouched; an
// empty ObjectLink unlinks the image.
type ImagePatch struct {
	Name        *string   `json:"name" validate:"omitnil,min=1,max=200"`
	Description *string   `json:"description" validate:"omitnil,max=2000"`
	Author      *string   `json:"author" validate:"omitnil,max=200"`
	AltText     *string   `json:"altText" validate:"omitnil,max=500"`
	Tags        *[]string `json:"tags" validate:"omitnil,max=32,dive,min=1,max=64"`
	ObjectLink  *string   `json:"objectLink" validate:"omitnil,objectid"`
}

func (p ImagePatch) IsEmpty() bool {
	return p.Name == nil &&
		p.Description == nil &&
		p.Author == nil &&
		p.AltText == nil &&
		p.Tags == nil &&
		p.ObjectLink == nil
}

package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/anttijankeri/object-image-server/internal/models"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrInvalidObjectID = errors.New("invalid object id")
)

// ObjectRepository reaches the objects database, where every tenant folder
// owns a collection of its own.
type ObjectRepository struct {
	db *mongo.Database
}

func NewObjectRepository(db *mongo.Database) *ObjectRepository {
	return &ObjectRepository{db: db}
}

func (r *ObjectRepository) GetByID(ctx context.Context, tenant, id string) (models.Object, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.Object{}, ErrInvalidObjectID
	}

	var object models.Object
	if err := r.db.Collection(tenant).FindOne(ctx, bson.M{"_id": oid}).Decode(&object); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Object{}, ErrObjectNotFound
		}
		return models.Object{}, err
	}
	return object, nil
}

// AppendImage pushes imageID onto the object's image list in one server-side
// update, so concurrent appends cannot overwrite each other. The matched
// count is zero when the object does not exist.
func (r *ObjectRepository) AppendImage(ctx context.Context, tenant, objectID, imageID string) (int64, error) {
	oid, err := bson.ObjectIDFromHex(objectID)
	if err != nil {
		return 0, ErrInvalidObjectID
	}

	res, err := r.db.Collection(tenant).UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$push": bson.M{"images": imageID}},
	)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

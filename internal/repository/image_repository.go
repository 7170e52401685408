package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/anttijankeri/object-image-server/internal/models"
)

var ErrImageNotFound = errors.New("image not found")

type ImageRepository struct {
	coll *mongo.Collection
}

func NewImageRepository(db *mongo.Database, collection string) *ImageRepository {
	return &ImageRepository{coll: db.Collection(collection)}
}

// EnsureIndexes creates the lookups the service relies on: listing by tenant
// and the sweeper's file path probe.
func (r *ImageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant", Value: 1}, {Key: "dateAdded", Value: -1}}},
		{Keys: bson.D{{Key: "filePath", Value: 1}}},
	})
	return err
}

// Create inserts the document and returns the id assigned by the store.
func (r *ImageRepository) Create(ctx context.Context, image models.Image) (bson.ObjectID, error) {
	image.ID = bson.ObjectID{}

	res, err := r.coll.InsertOne(ctx, image)
	if err != nil {
		return bson.ObjectID{}, err
	}

	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return bson.ObjectID{}, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return id, nil
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.Image, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.Image{}, ErrImageNotFound
	}

	var image models.Image
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&image); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, err
	}
	return image, nil
}

// List returns the tenant's images, newest first. An empty tenant lists
// every image.
func (r *ImageRepository) List(ctx context.Context, tenant string) ([]models.Image, error) {
	filter := bson.M{}
	if tenant != "" {
		filter["tenant"] = tenant
	}

	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "dateAdded", Value: -1}}))
	if err != nil {
		return nil, err
	}

	images := []models.Image{}
	if err := cursor.All(ctx, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// Update merges the present patch fields into the document and reports how
// many documents matched.
func (r *ImageRepository) Update(ctx context.Context, id string, patch models.ImagePatch) (int64, error) {
	set := patchToSet(patch)
	if len(set) == 0 {
		return r.count(ctx, id)
	}
	return r.updateOne(ctx, id, bson.M{"$set": set})
}

func (r *ImageRepository) SetObjectLink(ctx context.Context, id, objectLink string) (int64, error) {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"objectLink": objectLink}})
}

func (r *ImageRepository) Delete(ctx context.Context, id string) (int64, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *ImageRepository) ExistsByFilePath(ctx context.Context, filePath string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"filePath": filePath}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ImageRepository) updateOne(ctx context.Context, id string, update bson.M) (int64, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (r *ImageRepository) count(ctx context.Context, id string) (int64, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}
	return r.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
}

func patchToSet(patch models.ImagePatch) bson.M {
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Author != nil {
		set["author"] = *patch.Author
	}
	if patch.AltText != nil {
		set["altText"] = *patch.AltText
	}
	if patch.Tags != nil {
		set["tags"] = *patch.Tags
	}
	if patch.ObjectLink != nil {
		set["objectLink"] = *patch.ObjectLink
	}
	return set
}

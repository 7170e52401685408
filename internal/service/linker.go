package service

import (
	"context"

	"github.com/rs/zerolog"
)

type ObjectLinkStore interface {
	AppendImage(ctx context.Context, tenant, objectID, imageID string) (int64, error)
}

// Linker appends image ids to an object's image list.
type Linker struct {
	objects ObjectLinkStore
	log     zerolog.Logger
}

func NewLinker(objects ObjectLinkStore, log zerolog.Logger) *Linker {
	return &Linker{objects: objects, log: log}
}

// AppendImageLink adds imageID to the images of objectID in the tenant's
// object collection. It returns objectID when exactly one object was updated
// and "" otherwise; a failed link is never an error for the caller.
func (l *Linker) AppendImageLink(ctx context.Context, objectID, imageID, tenant string) string {
	matched, err := l.objects.AppendImage(ctx, tenant, objectID, imageID)
	if err != nil {
		l.log.Warn().
			Err(err).
			Str("object_id", objectID).
			Str("image_id", imageID).
			Str("tenant", tenant).
			Msg("append image link failed")
		return ""
	}
	if matched != 1 {
		l.log.Debug().
			Str("object_id", objectID).
			Int64("matched", matched).
			Msg("object not found for image link")
		return ""
	}
	return objectID
}

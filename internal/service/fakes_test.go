package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/anttijankeri/object-image-server/internal/ledger"
	"github.com/anttijankeri/object-image-server/internal/models"
	"github.com/anttijankeri/object-image-server/internal/repository"
	"github.com/anttijankeri/object-image-server/internal/storage"
)

func pngPayload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeImages struct {
	mu   sync.Mutex
	docs map[string]models.Image

	createErr     error
	updateErr     error
	deleteErr     error
	existsErr     error
	setLinkResult *int64

	createCalls int
}

func newFakeImages() *fakeImages {
	return &fakeImages{docs: map[string]models.Image{}}
}

func (f *fakeImages) Create(_ context.Context, img models.Image) (bson.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return bson.ObjectID{}, f.createErr
	}
	img.ID = bson.NewObjectID()
	f.docs[img.ID.Hex()] = img
	return img.ID, nil
}

func (f *fakeImages) GetByID(_ context.Context, id string) (models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.docs[id]
	if !ok {
		return models.Image{}, repository.ErrImageNotFound
	}
	return img, nil
}

func (f *fakeImages) List(_ context.Context, tenant string) ([]models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Image{}
	for _, img := range f.docs {
		if tenant == "" || img.Tenant == tenant {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateAdded.After(out[j].DateAdded) })
	return out, nil
}

func (f *fakeImages) Update(_ context.Context, id string, patch models.ImagePatch) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	img, ok := f.docs[id]
	if !ok {
		return 0, nil
	}
	if patch.Name != nil {
		img.Name = *patch.Name
	}
	if patch.Description != nil {
		img.Description = *patch.Description
	}
	if patch.Author != nil {
		img.Author = *patch.Author
	}
	if patch.AltText != nil {
		img.AltText = *patch.AltText
	}
	if patch.Tags != nil {
		img.Tags = *patch.Tags
	}
	if patch.ObjectLink != nil {
		img.ObjectLink = *patch.ObjectLink
	}
	f.docs[id] = img
	return 1, nil
}

func (f *fakeImages) SetObjectLink(_ context.Context, id, objectLink string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setLinkResult != nil {
		return *f.setLinkResult, nil
	}
	img, ok := f.docs[id]
	if !ok {
		return 0, nil
	}
	img.ObjectLink = objectLink
	f.docs[id] = img
	return 1, nil
}

func (f *fakeImages) Delete(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	if _, ok := f.docs[id]; !ok {
		return 0, nil
	}
	delete(f.docs, id)
	return 1, nil
}

func (f *fakeImages) ExistsByFilePath(_ context.Context, filePath string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, img := range f.docs {
		if img.FilePath == filePath {
			return true, nil
		}
	}
	return false, nil
}

// put stores a document directly, bypassing Create.
func (f *fakeImages) put(img models.Image) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	img.ID = bson.NewObjectID()
	f.docs[img.ID.Hex()] = img
	return img.ID.Hex()
}

type fakeBlobs struct {
	mu    sync.Mutex
	files map[string][]byte

	uploadErr error
	fetchErr  error
	removeErr error

	uploads int
	fetches int
	removes int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{files: map[string][]byte{}}
}

func (f *fakeBlobs) Upload(_ context.Context, req storage.UploadRequest) (storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return storage.UploadResult{}, f.uploadErr
	}
	data, err := io.ReadAll(req.Data)
	if err != nil {
		return storage.UploadResult{}, err
	}
	key := fmt.Sprintf("%s/file-%d%s", req.Tenant, f.uploads, req.Format)
	f.files[key] = data
	return storage.UploadResult{FilePath: key}, nil
}

func (f *fakeBlobs) Fetch(_ context.Context, tenant, fileName, _ string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	data, ok := f.files[tenant+"/"+fileName]
	if !ok {
		return nil, &storage.StatusError{Op: "fetch", StatusCode: 404, Status: "404 Not Found"}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobs) Remove(_ context.Context, tenant, fileName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	if f.removeErr != nil {
		return f.removeErr
	}
	key := tenant + "/" + fileName
	if _, ok := f.files[key]; !ok {
		return &storage.StatusError{Op: "delete", StatusCode: 404, Status: "404 Not Found"}
	}
	delete(f.files, key)
	return nil
}

func (f *fakeBlobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]map[string][]string
	err     error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string]map[string][]string{}}
}

func (f *fakeObjects) add(tenant string, images ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := bson.NewObjectID().Hex()
	if f.objects[tenant] == nil {
		f.objects[tenant] = map[string][]string{}
	}
	f.objects[tenant][id] = append([]string{}, images...)
	return id
}

func (f *fakeObjects) images(tenant, id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[tenant][id]
}

func (f *fakeObjects) AppendImage(_ context.Context, tenant, objectID, imageID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if _, err := bson.ObjectIDFromHex(objectID); err != nil {
		return 0, repository.ErrInvalidObjectID
	}
	images, ok := f.objects[tenant][objectID]
	if !ok {
		return 0, nil
	}
	f.objects[tenant][objectID] = append(images, imageID)
	return 1, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]ledger.Entry
	err     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]ledger.Entry{}}
}

func (f *fakeLedger) Track(_ context.Context, entry ledger.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries[entry.FilePath] = entry
	return nil
}

func (f *fakeLedger) Resolve(_ context.Context, entry ledger.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.entries, entry.FilePath)
	return nil
}

func (f *fakeLedger) Due(_ context.Context, olderThan time.Time, limit int) ([]ledger.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []ledger.Entry{}
	for _, entry := range f.entries {
		if !entry.UploadedAt.After(olderThan) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLedger) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Package ledger remembers blobs that were uploaded but whose metadata
// document has not been confirmed yet. Entries that outlive the grace period
// are candidates for the orphan sweep.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Entry struct {
	Tenant     string    `json:"tenant"`
	FilePath   string    `json:"filePath"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Ledger is a Redis sorted set scored by upload time.
type Ledger struct {
	client *redis.Client
	key    string
}

func New(client *redis.Client, key string) *Ledger {
	return &Ledger{client: client, key: key}
}

func (l *Ledger) Track(ctx context.Context, entry Entry) error {
	member, err := encode(entry)
	if err != nil {
		return err
	}
	return l.client.ZAdd(ctx, l.key, redis.Z{
		Score:  float64(entry.UploadedAt.Unix()),
		Member: member,
	}).Err()
}

func (l *Ledger) Resolve(ctx context.Context, entry Entry) error {
	member, err := encode(entry)
	if err != nil {
		return err
	}
	return l.client.ZRem(ctx, l.key, member).Err()
}

// Due lists up to limit entries uploaded at or before olderThan, oldest first.
func (l *Ledger) Due(ctx context.Context, olderThan time.Time, limit int) ([]Entry, error) {
	members, err := l.client.ZRangeByScore(ctx, l.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(olderThan.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(members))
	for _, member := range members {
		var entry Entry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			// Unreadable members can never be resolved; drop them.
			_ = l.client.ZRem(ctx, l.key, member).Err()
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// encode produces the set member. UploadedAt is truncated to seconds so that
// Track and Resolve agree on the member bytes.
func encode(entry Entry) (string, error) {
	entry.UploadedAt = entry.UploadedAt.UTC().Truncate(time.Second)
	b, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode ledger entry: %w", err)
	}
	return string(b), nil
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"account-service/internal/domain"
	"account-service/internal/storage"
)

// ErrArchiveDisabled is returned by archive reads when no bucket is configured.
var ErrArchiveDisabled = errors.New("account archive is not configured")

const archiveLinkTTL = 15 * time.Minute

// ArchivedAccount is the snapshot written for every deleted account.
type ArchivedAccount struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"createdAt"`
	DeletedAt time.Time `json:"deletedAt"`
}

// ArchiveEntry describes a stored snapshot.
type ArchiveEntry struct {
	storage.ObjectInfo
	URL string
}

// AccountArchive keeps snapshots of deleted accounts in object storage.
type AccountArchive struct {
	store  storage.Service
	bucket string
	prefix string
	now    func() time.Time
}

func NewAccountArchive(store storage.Service, bucket, prefix string) *AccountArchive {
	return &AccountArchive{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Put stores a sanitized snapshot of user and returns its location.
func (a *AccountArchive) Put(ctx context.Context, user *domain.User) (string, error) {
	snapshot := ArchivedAccount{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Age:       user.Age,
		CreatedAt: user.CreatedAt,
		DeletedAt: a.now().UTC(),
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	return a.store.PutObject(ctx, bytes.NewReader(body), storage.PutOptions{
		Bucket:      a.bucket,
		Key:         a.key(user.ID),
		ContentType: "application/json",
	})
}

// List returns stored snapshots with short-lived download links.
func (a *AccountArchive) List(ctx context.Context) ([]ArchiveEntry, error) {
	prefix := a.prefix
	if prefix != "" {
		prefix += "/"
	}
	objects, err := a.store.ListObjects(ctx, a.bucket, prefix)
	if err != nil {
		return nil, err
	}

	entries := make([]ArchiveEntry, 0, len(objects))
	for _, obj := range objects {
		url, err := a.store.GetObjectURL(ctx, a.bucket, obj.Key, archiveLinkTTL)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ArchiveEntry{ObjectInfo: obj, URL: url})
	}
	return entries, nil
}

func (a *AccountArchive) key(id string) string {
	return path.Join(a.prefix, id+".json")
}

package job

import (
	"Parley/internal/pkg/mongo"
	"Parley/internal/pkg/redis"
	"Parley/internal/testutil"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	mu      sync.Mutex
	deleted []string
	failOn  map[string]bool
}

func (m *memoryObjects) DeleteFile(_ context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn[objectName] {
		return errors.New("minio unavailable")
	}
	m.deleted = append(m.deleted, objectName)
	return nil
}

type memoryTemp struct {
	entries map[string]redis.MediaTempMetadata
}

func (m *memoryTemp) All(context.Context) (map[string]redis.MediaTempMetadata, error) {
	out := make(map[string]redis.MediaTempMetadata, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *memoryTemp) Remove(_ context.Context, objectKey string) error {
	delete(m.entries, objectKey)
	return nil
}

var fixedNow = time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)

func newJob(objects *memoryObjects, temp *memoryTemp, messages *testutil.MessageRepo) *MediaCleanupJob {
	j := NewMediaCleanupJob(objects, temp, messages, 30, 24)
	j.now = func() time.Time { return fixedNow }
	return j
}

func mediaMessage(t *testing.T, repo *testutil.MessageRepo, key string, age time.Duration) *mongo.Message {
	t.Helper()
	msg := mongo.NewMessage(1, 1, "image", "", fixedNow.Add(-age))
	msg.Media = &mongo.Media{
		URL:          "http://minio/bucket/" + key,
		Key:          key,
		ThumbnailKey: key + ".thumb",
		MimeType:     "image/png",
	}
	require.NoError(t, repo.SaveMessage(context.Background(), msg))
	return msg
}

func TestCleanTempRemovesOnlyExpiredUploads(t *testing.T) {
	objects := &memoryObjects{}
	temp := &memoryTemp{entries: map[string]redis.MediaTempMetadata{
		"image/old.png": {UserID: 1, ThumbnailKey: "image/thumb_old.jpg", CreatedAt: fixedNow.Add(-25 * time.Hour).Unix()},
		"image/new.png": {UserID: 1, CreatedAt: fixedNow.Add(-time.Hour).Unix()},
	}}
	j := newJob(objects, temp, testutil.NewMessageRepo())

	require.Equal(t, 1, j.cleanTemp(context.Background()))
	require.ElementsMatch(t, []string{"image/old.png", "image/thumb_old.jpg"}, objects.deleted)
	require.Contains(t, temp.entries, "image/new.png")
	require.NotContains(t, temp.entries, "image/old.png")
}

func TestCleanTempKeepsEntryWhenDeleteFails(t *testing.T) {
	objects := &memoryObjects{failOn: map[string]bool{"image/old.png": true}}
	temp := &memoryTemp{entries: map[string]redis.MediaTempMetadata{
		"image/old.png": {CreatedAt: fixedNow.Add(-48 * time.Hour).Unix()},
	}}
	j := newJob(objects, temp, testutil.NewMessageRepo())

	require.Zero(t, j.cleanTemp(context.Background()))
	require.Contains(t, temp.entries, "image/old.png")
}

func TestPurgeExpiredMarksMessages(t *testing.T) {
	objects := &memoryObjects{}
	messages := testutil.NewMessageRepo()
	old := mediaMessage(t, messages, "image/a.png", 31*24*time.Hour)
	fresh := mediaMessage(t, messages, "image/b.png", 2*24*time.Hour)
	j := newJob(objects, &memoryTemp{}, messages)

	require.Equal(t, 1, j.purgeExpired(context.Background()))
	require.ElementsMatch(t, []string{"image/a.png", "image/a.png.thumb"}, objects.deleted)
	require.True(t, messages.Get(old.ID.Hex()).Media.Purged)
	require.False(t, messages.Get(fresh.ID.Hex()).Media.Purged)

	// 已清理的消息不会再次处理
	require.Zero(t, j.purgeExpired(context.Background()))
}

func TestPurgeExpiredStopsOnFailedBatch(t *testing.T) {
	objects := &memoryObjects{failOn: map[string]bool{"image/a.png": true}}
	messages := testutil.NewMessageRepo()
	msg := mediaMessage(t, messages, "image/a.png", 40*24*time.Hour)
	j := newJob(objects, &memoryTemp{}, messages)

	require.Zero(t, j.purgeExpired(context.Background()))
	require.False(t, messages.Get(msg.ID.Hex()).Media.Purged)
}

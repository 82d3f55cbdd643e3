package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pagegen-backend/internal/model"
	"pagegen-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journalStore records the order of gateway calls and can fail saves.
type journalStore struct {
	storage.Storage

	mu      sync.Mutex
	journal []string
	delay   time.Duration
	saveErr error
}

func (j *journalStore) CreateProject(ctx context.Context, id string) error {
	j.record("create:" + id)
	return j.Storage.CreateProject(ctx, id)
}

func (j *journalStore) SaveMessages(ctx context.Context, id string, msgs []model.Message) error {
	time.Sleep(j.delay)
	j.record("save:" + id)
	if j.saveErr != nil {
		return j.saveErr
	}
	return j.Storage.SaveMessages(ctx, id, msgs)
}

func (j *journalStore) record(entry string) {
	j.mu.Lock()
	j.journal = append(j.journal, entry)
	j.mu.Unlock()
}

func (j *journalStore) entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.journal...)
}

func TestPersister_RunsInEnqueueOrder(t *testing.T) {
	store := &journalStore{Storage: storage.NewMemoryStorage(), delay: 5 * time.Millisecond}
	p := NewPersister(store, time.Second, nil)
	defer p.Close(context.Background())

	p.EnqueueCreate("p1")
	p.EnqueueSave("p1", []model.Message{{ID: "u1", Role: model.RoleUser, Content: "one"}})
	p.EnqueueSave("p2", nil)
	p.EnqueueSave("p1", []model.Message{{ID: "u2", Role: model.RoleUser, Content: "two"}})

	require.NoError(t, p.Flush(testCtx(t)))

	assert.Equal(t, []string{"create:p1", "save:p1", "save:p2", "save:p1"}, store.entries())
	got, err := store.GetMessages(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "two", got[0].Content)
}

func TestPersister_SnapshotsMessages(t *testing.T) {
	store := &journalStore{Storage: storage.NewMemoryStorage(), delay: 10 * time.Millisecond}
	p := NewPersister(store, time.Second, nil)
	defer p.Close(context.Background())

	msgs := []model.Message{{ID: "u1", Role: model.RoleUser, Content: "original"}}
	p.EnqueueSave("p1", msgs)
	msgs[0].Content = "mutated"

	require.NoError(t, p.Flush(testCtx(t)))
	got, _ := store.GetMessages(context.Background(), "p1")
	assert.Equal(t, "original", got[0].Content)
}

func TestPersister_FailuresAreNotRetried(t *testing.T) {
	store := &journalStore{Storage: storage.NewMemoryStorage(), saveErr: errors.New("gateway down")}
	p := NewPersister(store, time.Second, nil)
	defer p.Close(context.Background())

	p.EnqueueSave("p1", []model.Message{{ID: "u1", Role: model.RoleUser}})
	p.EnqueueSave("p2", nil)

	require.NoError(t, p.Flush(testCtx(t)))
	assert.Equal(t, []string{"save:p1", "save:p2"}, store.entries())
}

func TestPersister_CloseDrainsQueue(t *testing.T) {
	store := &journalStore{Storage: storage.NewMemoryStorage(), delay: 5 * time.Millisecond}
	p := NewPersister(store, time.Second, nil)

	p.EnqueueSave("p1", nil)
	p.EnqueueSave("p2", nil)
	require.NoError(t, p.Close(testCtx(t)))

	assert.Equal(t, []string{"save:p1", "save:p2"}, store.entries())
	assert.False(t, p.EnqueueSave("p3", nil))
	assert.NoError(t, p.Flush(testCtx(t)))
}

func TestPersister_FlushHonoursContext(t *testing.T) {
	store := &journalStore{Storage: storage.NewMemoryStorage(), delay: 200 * time.Millisecond}
	p := NewPersister(store, time.Second, nil)
	defer p.Close(context.Background())

	p.EnqueueSave("p1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Flush(ctx), context.DeadlineExceeded)
}

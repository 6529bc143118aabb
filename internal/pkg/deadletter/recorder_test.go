package deadletter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
)

type memoryRepository struct {
	records []models.DeadLetter
	err     error
}

func (m *memoryRepository) Create(ctx context.Context, dl *models.DeadLetter) error {
	if m.err != nil {
		return m.err
	}
	dl.ID = uint(len(m.records) + 1)
	m.records = append(m.records, *dl)
	return nil
}

func (m *memoryRepository) ListRecent(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	out := make([]models.DeadLetter, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *memoryRepository) Get(ctx context.Context, id uint) (*models.DeadLetter, error) {
	for i := range m.records {
		if m.records[i].ID == id {
			dl := m.records[i]
			return &dl, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type stubArchiver struct {
	key string
	err error
	got []byte
}

func (s *stubArchiver) Archive(ctx context.Context, eventID string, payload []byte, at time.Time) (string, error) {
	s.got = payload
	return s.key, s.err
}

func TestRecordPersistsPayload(t *testing.T) {
	repo := &memoryRepository{}
	rec := NewRecorder(repo, nil, nil)

	rec.Record(context.Background(), "", []byte("raw bytes"), "signature_invalid")

	require.Len(t, repo.records, 1)
	assert.Equal(t, models.UnknownEventID, repo.records[0].EventID)
	assert.Equal(t, []byte("raw bytes"), repo.records[0].Payload)
	assert.Equal(t, "signature_invalid", repo.records[0].Reason)
	assert.False(t, repo.records[0].FailedAt.IsZero())
	assert.Empty(t, repo.records[0].ArchiveKey)
}

func TestRecordArchivesWhenConfigured(t *testing.T) {
	repo := &memoryRepository{}
	arch := &stubArchiver{key: "dead-letters/2024/05/evt_1-1.json"}
	rec := NewRecorder(repo, arch, nil)

	rec.Record(context.Background(), "evt_1", []byte(`{"id":"evt_1"}`), "ledger_write_failed")

	require.Len(t, repo.records, 1)
	assert.Equal(t, arch.key, repo.records[0].ArchiveKey)
	assert.Equal(t, []byte(`{"id":"evt_1"}`), arch.got)
}

func TestRecordSurvivesFailures(t *testing.T) {
	t.Run("archive failure still persists", func(t *testing.T) {
		repo := &memoryRepository{}
		rec := NewRecorder(repo, &stubArchiver{err: errors.New("s3 down")}, nil)
		rec.Record(context.Background(), "evt_1", []byte("x"), "malformed_payload")
		require.Len(t, repo.records, 1)
		assert.Empty(t, repo.records[0].ArchiveKey)
	})

	t.Run("storage failure is swallowed", func(t *testing.T) {
		repo := &memoryRepository{err: errors.New("db down")}
		rec := NewRecorder(repo, nil, nil)
		assert.NotPanics(t, func() {
			rec.Record(context.Background(), "evt_1", []byte("x"), "malformed_payload")
		})
	})

	t.Run("cancelled caller context", func(t *testing.T) {
		repo := &memoryRepository{}
		rec := NewRecorder(repo, nil, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rec.Record(ctx, "evt_1", []byte("x"), "ledger_write_failed")
		assert.Len(t, repo.records, 1)
	})
}

func TestListNewestFirst(t *testing.T) {
	repo := &memoryRepository{}
	rec := NewRecorder(repo, nil, nil)
	rec.Record(context.Background(), "evt_1", nil, "a")
	rec.Record(context.Background(), "evt_2", nil, "b")

	got, err := rec.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "evt_2", got[0].EventID)
}

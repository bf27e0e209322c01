package repositories

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordViolationFirstOffenseRace(t *testing.T) {
	repo := NewBlacklistRepository(newTestDB(t))
	now := time.Now()

	entry, err := repo.RecordViolation("198.51.100.4", "scraping", "", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.ViolationCount)

	// A racing first offense that lost the insert must surface as a
	// unique-constraint error the caller can recognize, not as a silent
	// duplicate row.
	insertErr := repo.insertFirstViolation("198.51.100.4", "scraping", "", now)
	require.Error(t, insertErr)
	assert.True(t, isDuplicateKey(insertErr))

	// The loser's violation still lands through the increment path.
	applied, err := repo.incrementViolation("198.51.100.4", "scraping", now)
	require.NoError(t, err)
	assert.True(t, applied)

	entry, err = repo.Get("198.51.100.4")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.ViolationCount)
}

func TestRecordViolationIncrementsExisting(t *testing.T) {
	repo := NewBlacklistRepository(newTestDB(t))

	for i := 1; i <= 2; i++ {
		entry, err := repo.RecordViolation("198.51.100.5", "abuse", "", 5)
		require.NoError(t, err)
		assert.Equal(t, i, entry.ViolationCount)
		assert.Nil(t, entry.BlockedAt)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	assert.False(t, isDuplicateKey(nil))
	assert.False(t, isDuplicateKey(errors.New("connection refused")))
	assert.True(t, isDuplicateKey(errors.New("UNIQUE constraint failed: ip_blacklist_entries.ip_address")))
	assert.True(t, isDuplicateKey(errors.New(`duplicate key value violates unique constraint "idx_ip_blacklist_entries_ip_address"`)))
}

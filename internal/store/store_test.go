package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/notabene00/yandex-weather/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEntry(id, uniqueID string) models.Entry {
	lat, lon := 55.75, 37.62
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.Entry{
		ID:       id,
		UniqueID: uniqueID,
		Title:    "Moscow",
		Data: models.EntryData{
			Name:      "Moscow",
			APIKey:    "secret",
			Latitude:  &lat,
			Longitude: &lon,
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "")
	assert.Error(t, err)
}

func TestEntries_CRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := sampleEntry("e1", "55.75,37.62")
	require.NoError(t, s.SaveEntry(ctx, entry))

	got, err := s.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	got, err = s.FindByUniqueID(ctx, "55.75,37.62")
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)

	entry.Data.Name = "Home"
	entry.Version = 2
	entry.UpdatedAt = entry.UpdatedAt.Add(time.Hour)
	require.NoError(t, s.UpdateEntry(ctx, entry))

	got, err = s.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Home", got.Data.Name)
	assert.Equal(t, 2, got.Version)

	require.NoError(t, s.SaveEntry(ctx, sampleEntry("e2", "1,2")))
	entries, err := s.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, s.DeleteEntry(ctx, "e1"))
	_, err = s.GetEntry(ctx, "e1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntries_DuplicateUniqueID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEntry(ctx, sampleEntry("e1", "same")))
	assert.Error(t, s.SaveEntry(ctx, sampleEntry("e2", "same")))
}

func TestEntries_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.FindByUniqueID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateEntry(ctx, sampleEntry("missing", "x")), ErrNotFound)
	assert.ErrorIs(t, s.DeleteEntry(ctx, "missing"), ErrNotFound)
}

func TestEntries_LegacyWithoutCoordinates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := sampleEntry("e1", "home")
	entry.Data.Latitude = nil
	entry.Data.Longitude = nil
	require.NoError(t, s.SaveEntry(ctx, entry))

	got, err := s.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, got.Data.Latitude)
	lat, lon := got.Data.Coordinates(1.5, 2.5)
	assert.Equal(t, 1.5, lat)
	assert.Equal(t, 2.5, lon)
}

func TestReadings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEntry(ctx, sampleEntry("e1", "u1")))

	fetched := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		fact := models.Fact{Temp: float64(i), Condition: "clear", ObsTime: fetched.Unix()}
		id, err := s.RecordReading(ctx, models.NewReading("e1", fact, fetched.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	readings, err := s.ListReadings(ctx, "e1", 2)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 2.0, readings[0].Temperature)
	assert.Equal(t, fetched.Add(2*time.Minute), readings[0].FetchedAt)
	assert.Equal(t, fetched, readings[0].ObservedAt)
	assert.Equal(t, "clear", readings[0].Condition)

	require.NoError(t, s.DeleteEntry(ctx, "e1"))
	readings, err = s.ListReadings(ctx, "e1", 0)
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: "postgres"}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &SQLStore{driver: "sqlite"}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

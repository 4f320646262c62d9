package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maltedev/spa-slots/internal/appointment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *appointment.Snapshot {
	img := "https://cdn.example.de/1042.jpg"
	return appointment.NewSnapshot([]appointment.Appointment{
		{Date: "13.01.2026", Time: "10:00", Treatment: "Hot Stone", Price: "89,00 €", BookingURL: "https://shop.example.de/booking/template/1042", ImageURL: &img},
		{Date: "14.01.", Time: "15:30", Treatment: "Aroma", Price: "65,00 €", BookingURL: "https://shop.example.de/booking/template/77"},
	}, time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC))
}

func TestSnapshotStore_Empty(t *testing.T) {
	s, err := NewSnapshotStore(filepath.Join(t.TempDir(), "appointments.json"))
	require.NoError(t, err)

	_, err = s.Current()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = s.Raw()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	assert.ErrorIs(t, s.Load(), ErrNoSnapshot)
}

func TestSnapshotStore_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "appointments.json")

	s, err := NewSnapshotStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleSnapshot()))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	var onDisk map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, true, onDisk["success"])
	assert.Equal(t, float64(2), onDisk["count"])
	assert.Equal(t, "2026-01-10T08:00:00Z", onDisk["lastUpdated"])

	apts := onDisk["appointments"].([]any)
	second := apts[1].(map[string]any)
	assert.Contains(t, second, "imageUrl")
	assert.Nil(t, second["imageUrl"], "missing image is serialised as null")

	reopened, err := NewSnapshotStore(path)
	require.NoError(t, err)
	got, err := reopened.Current()
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
	require.NotNil(t, got.Appointments[0].ImageURL)
	assert.Equal(t, "https://cdn.example.de/1042.jpg", *got.Appointments[0].ImageURL)

	raw, err := reopened.Raw()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(raw))
}

func TestSnapshotStore_CurrentIsACopy(t *testing.T) {
	s, err := NewSnapshotStore(filepath.Join(t.TempDir(), "appointments.json"))
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleSnapshot()))

	first, err := s.Current()
	require.NoError(t, err)
	first.Appointments[0].Treatment = "changed"
	first.Appointments = first.Appointments[:1]

	second, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, "Hot Stone", second.Appointments[0].Treatment)
	assert.Len(t, second.Appointments, 2)
}

func TestSnapshotStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewSnapshotStore(path)
	assert.Error(t, err)
}

func TestSnapshotStore_SaveNil(t *testing.T) {
	s, err := NewSnapshotStore(filepath.Join(t.TempDir(), "appointments.json"))
	require.NoError(t, err)
	assert.Error(t, s.Save(nil))
}

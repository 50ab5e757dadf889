package db

import (
	"reflect"
	"testing"

	"github.com/wrapped-fm/jellywrapped/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	return database
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	database := newTestDB(t)

	users := []models.User{
		{ID: "u1", Name: "alice"},
		{ID: "u2", Name: "bob"},
	}
	items := []models.MediaItem{
		{
			ID:           "i1",
			Name:         "Song One",
			AlbumArtist:  "Alpha",
			Artists:      []string{"Alpha", "Beta"},
			RunTimeTicks: 120000000,
			UserData: map[string]models.PlayStats{
				"alice": {PlayCount: 3, Played: true, Key: "k1"},
				"bob":   {PlayCount: 0},
			},
		},
		{
			ID:           "i2",
			Name:         "Song Two",
			Artists:      []string{"Gamma"},
			RunTimeTicks: 60000000,
			UserData: map[string]models.PlayStats{
				"alice": {PlayCount: 1, IsFavorite: true, Played: true},
				"bob":   {PlayCount: 5, Played: true, PlaybackPositionTicks: 42},
			},
		},
	}

	if err := database.SaveSnapshot(items, users); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	gotItems, gotUsers, err := database.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if !reflect.DeepEqual(gotUsers, users) {
		t.Errorf("users round trip mismatch:\n got %+v\nwant %+v", gotUsers, users)
	}
	if !reflect.DeepEqual(gotItems, items) {
		t.Errorf("items round trip mismatch:\n got %+v\nwant %+v", gotItems, items)
	}
}

func TestSaveSnapshotReplacesPrevious(t *testing.T) {
	database := newTestDB(t)

	first := []models.MediaItem{{
		ID: "old", Name: "Old", Artists: []string{"X"}, RunTimeTicks: 1,
		UserData: map[string]models.PlayStats{"alice": {PlayCount: 1}},
	}}
	second := []models.MediaItem{{
		ID: "new", Name: "New", Artists: []string{"Y"}, RunTimeTicks: 2,
		UserData: map[string]models.PlayStats{"alice": {PlayCount: 2}},
	}}
	users := []models.User{{ID: "u1", Name: "alice"}}

	if err := database.SaveSnapshot(first, users); err != nil {
		t.Fatalf("first SaveSnapshot failed: %v", err)
	}
	if err := database.SaveSnapshot(second, users); err != nil {
		t.Fatalf("second SaveSnapshot failed: %v", err)
	}

	items, _, err := database.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "new" {
		t.Errorf("expected only the new snapshot, got %+v", items)
	}
}

func TestLoadSnapshotPreservesFetchOrder(t *testing.T) {
	database := newTestDB(t)

	// ranking tie-breaks are stable on input order, so the store must
	// give items back in the order they were saved
	items := []models.MediaItem{
		{ID: "c", Name: "C", Artists: []string{}, RunTimeTicks: 1, UserData: map[string]models.PlayStats{}},
		{ID: "a", Name: "A", Artists: []string{}, RunTimeTicks: 1, UserData: map[string]models.PlayStats{}},
		{ID: "b", Name: "B", Artists: []string{}, RunTimeTicks: 1, UserData: map[string]models.PlayStats{}},
	}

	if err := database.SaveSnapshot(items, []models.User{{ID: "u", Name: "alice"}}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, _, err := database.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	for i, want := range []string{"c", "a", "b"} {
		if got[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

func TestLoadSnapshotEmptyStore(t *testing.T) {
	database := newTestDB(t)

	if _, _, err := database.LoadSnapshot(); err == nil {
		t.Fatal("expected error loading from empty store")
	}
}

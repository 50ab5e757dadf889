// Package recap turns the fetched item/user snapshot into per-user
// rankings and listening totals. It performs no I/O; callers hand it a
// read-only snapshot and receive a fresh result per user.
package recap

import (
	"fmt"
	"sort"

	"github.com/wrapped-fm/jellywrapped/models"
)

// ticksPerMinute converts Jellyfin runtime ticks to minutes
// (10,000,000 ticks per second).
const ticksPerMinute = 6e7

// Compute builds a UserRecap for every user: the topSongs most played
// items, the topArtists most played artists, and total minutes listened.
//
// Sorting is stable: items with equal play counts keep their relative
// order from the input slice, and artists with equal totals keep the
// order in which they were first encountered. An item without a
// UserData entry for a known user is a data-integrity error; zero plays
// must be recorded as zero, not absent.
func Compute(items []models.MediaItem, users []models.User, topSongs, topArtists int) (map[string]models.UserRecap, error) {
	if topSongs < 0 || topArtists < 0 {
		return nil, fmt.Errorf("recap: negative ranking size (topSongs=%d, topArtists=%d)", topSongs, topArtists)
	}

	recaps := make(map[string]models.UserRecap, len(users))
	for _, user := range users {
		songs, err := rankSongs(items, user.Name, topSongs)
		if err != nil {
			return nil, err
		}
		artists, err := rankArtists(items, user.Name, topArtists)
		if err != nil {
			return nil, err
		}
		minutes, err := minutesListened(items, user.Name)
		if err != nil {
			return nil, err
		}
		recaps[user.Name] = models.UserRecap{
			TopSongs:        songs,
			TopArtists:      artists,
			MinutesListened: minutes,
		}
	}

	return recaps, nil
}

// playCount returns one user's play count for an item, failing when the
// snapshot is missing the (item, user) entry entirely.
func playCount(item models.MediaItem, userName string) (int, error) {
	stats, ok := item.UserData[userName]
	if !ok {
		return 0, fmt.Errorf("recap: item %q (%s) has no play statistics for user %q", item.Name, item.ID, userName)
	}
	return stats.PlayCount, nil
}

func rankSongs(items []models.MediaItem, userName string, limit int) ([]models.MediaItem, error) {
	counts := make([]int, len(items))
	for i, item := range items {
		n, err := playCount(item, userName)
		if err != nil {
			return nil, err
		}
		counts[i] = n
	}

	ranked := make([]models.MediaItem, len(items))
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	for i, idx := range order {
		ranked[i] = items[idx]
	}

	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func rankArtists(items []models.MediaItem, userName string, limit int) ([]models.ArtistPlays, error) {
	totals := make(map[string]int)
	var seen []string // first-encounter order, for stable ties
	for _, item := range items {
		n, err := playCount(item, userName)
		if err != nil {
			return nil, err
		}
		for _, artist := range item.Artists {
			if _, ok := totals[artist]; !ok {
				seen = append(seen, artist)
			}
			// every credited artist gets the full count, not a share
			totals[artist] += n
		}
	}

	ranked := make([]models.ArtistPlays, len(seen))
	for i, artist := range seen {
		ranked[i] = models.ArtistPlays{Artist: artist, PlayCount: totals[artist]}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].PlayCount > ranked[b].PlayCount
	})

	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func minutesListened(items []models.MediaItem, userName string) (float64, error) {
	var total float64
	for _, item := range items {
		n, err := playCount(item, userName)
		if err != nil {
			return 0, err
		}
		total += float64(item.RunTimeTicks) / ticksPerMinute * float64(n)
	}
	return total, nil
}

// TopSongImageID resolves the image asset a user's report should embed:
// the ID of their #1 ranked song, or "" when the catalog produced no
// ranking at all.
func TopSongImageID(r models.UserRecap) string {
	if len(r.TopSongs) == 0 {
		return ""
	}
	return r.TopSongs[0].ID
}

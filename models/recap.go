package models

// ArtistPlays pairs an artist name with a user's summed play count
// across every item crediting that artist.
type ArtistPlays struct {
	Artist    string `json:"artist"`
	PlayCount int    `json:"playCount"`
}

// UserRecap is the derived per-user summary: top songs descending by
// play count, top artists descending by summed play count, and total
// minutes listened. Computed once per run from the read-only snapshot.
type UserRecap struct {
	TopSongs        []MediaItem   `json:"topSongs"`
	TopArtists      []ArtistPlays `json:"topArtists"`
	MinutesListened float64       `json:"minutesListened"`
}

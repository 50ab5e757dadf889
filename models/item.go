package models

// MediaItem represents one audio item on the Jellyfin server. JSON tags
// mirror the Jellyfin API field names so the all_items.json snapshot is a
// faithful dump of what the server returned, plus the merged UserData.
type MediaItem struct {
	ID           string               `json:"Id"`
	Name         string               `json:"Name"`
	AlbumArtist  string               `json:"AlbumArtist"`
	Artists      []string             `json:"Artists"`
	RunTimeTicks int64                `json:"RunTimeTicks"`
	UserData     map[string]PlayStats `json:"UserData,omitempty"`
}

// PlayStats holds one user's play statistics for one item.
// 10,000,000 ticks = 1 second.
type PlayStats struct {
	PlayCount             int    `json:"PlayCount"`
	IsFavorite            bool   `json:"IsFavorite"`
	Played                bool   `json:"Played"`
	PlaybackPositionTicks int64  `json:"PlaybackPositionTicks"`
	Key                   string `json:"Key"`
}

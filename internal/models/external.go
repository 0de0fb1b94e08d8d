package models

// ExternalTrack is a Spotify track normalized to the [Song] shape, with the extra catalog
// fields clients need to display and add it.
type ExternalTrack struct {
	Song
	Name     string   `json:"name"`
	AlbumID  string   `json:"albumId"`
	AlbumArt string   `json:"albumArt,omitempty"`
	URI      string   `json:"uri"`
	Artists  []Artist `json:"artists"`
}

// Artist is a credited artist on an [ExternalTrack].
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Image is a Spotify image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// ExternalPlaylist is a summary of one of the caller's Spotify playlists.
type ExternalPlaylist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Images      []Image `json:"images"`
	TrackCount  int     `json:"trackCount"`
	Owner       string  `json:"owner"`
	URI         string  `json:"uri"`
}

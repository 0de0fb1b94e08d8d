// Package models defines the domain entities of the setlist service.
//
// The package contains two categories of types:
//
// 1. Stored documents: owned by the service and persisted by internal/repositories
//   - [User] : Account with credentials and the ids of the playlists it owns
//   - [Playlist] : Named, owned playlist embedding an ordered list of [Song]
//   - [Song] : Track reference embedded in a playlist, keyed by its catalog id
//
// 2. Request-scoped and external types
//   - [Identity] : The authenticated caller, passed explicitly to every service operation
//   - [ExternalTrack], [ExternalPlaylist] : Normalized Spotify catalog objects
//   - [PlaylistUpdate], [SongUpdate] : Partial updates where nil means "not supplied"
//
// Stored documents carry both json and bson tags so the same structs travel over HTTP
// and into MongoDB without a mapping layer.
package models

// Package services implements the Spotify gateway behind the [Service] and [OAuthService] interfaces.
//
// # Spotify Implementation
//
// [SpotifyService] is stateless with respect to users: each call builds an [oauth2] client
// from the token on the caller's [models.Identity]. When that token has expired and carries a
// refresh token, the client refreshes it and the new token is handed to the callback set with
// [WithTokenRefresh] so it can be persisted.
//
// Outbound requests share one [rate.Limiter] to pace traffic to the API. There are no retries.
//
// # Error Handling
//
//   - [shared.ErrUnauthorized] : the identity has no Spotify token
//   - [shared.ErrInvalidInput] : empty query, seeds, code or URI
//   - [shared.UpstreamError] : non-2xx response; matches [shared.ErrUpstream] and carries status and body
//
// # API Mappings
//
// Spotify tracks are normalized to [models.ExternalTrack]: the first credited artist becomes
// the song artist and duration stays in milliseconds. Playlists become [models.ExternalPlaylist].
package services

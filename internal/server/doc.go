// Package server provides the HTTP API of setlist: routing, middleware and handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [MuxRouter] implements
// it with gorilla/mux so routes can carry path variables such as {playlistId}.
//
// [Middleware] is applied around the whole router, the first one added being the outermost.
// [New] installs panic recovery, request logging with request ids and a single CORS policy.
//
// # Handlers
//
// Endpoint groups implement the [Handler] interface and return their [Route] list:
//   - [HealthHandler]: liveness probe
//   - [AuthHandler]: registration, login and the user listing
//   - [PlaylistHandler]: playlists owned by the caller and their songs
//   - [SpotifyHandler]: catalog proxy plus linking and unlinking a Spotify account
//   - [OAuthHandler]: the Spotify authorization code callback
//
// Protected routes are wrapped by [Guard], which resolves the bearer token into a
// [models.Identity] available through [IdentityFrom]. Every guard failure yields the same
// 401 response.
//
// # Errors
//
// Handlers return domain errors from internal/shared; they are mapped to status codes in one
// place and rendered as {"success": false, "message": ...}.
package server

// Package repositories implements persistence for the setlist service.
//
// Stores are defined as interfaces so the services never see the engine:
//   - [UserStore] : Accounts with unique username and email, plus owned playlist references
//   - [PlaylistStore] : Owner-scoped playlists with embedded songs and atomic [PlaylistStore.Mutate]
//   - [TokenStore] : Spotify OAuth tokens linked to a user
//
// Implementations:
//   - SQLite ([UserRepository], [PlaylistRepository], [TokenRepository]) over the schema in
//     internal/shared/sql. Documents keep their nested parts (songs, playlist references) in
//     JSON columns, and mutations run in BEGIN IMMEDIATE transactions.
//   - MongoDB ([NewMongoStores]) with unique indexes on users.username and users.email.
//   - Redis ([RedisTokenStore]) for tokens only.
//
// Sequence numbers give SQLite rows a stable creation order independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories

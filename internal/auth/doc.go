// Package auth registers users, verifies credentials and issues the bearer tokens that the
// HTTP access guard resolves back into a [models.Identity].
//
// Passwords are stored as bcrypt digests ([BcryptHasher]). Bearer tokens are HS256 JWTs
// carrying the user id and a fixed lifetime ([JWTIssuer]).
package auth

// Package jwt is helpers for working with JSON Web Tokens (JWT).
//
// It includes:
//   - A typed Claims wrapper (registered claims + phone login payload).
//   - A symmetric HS512 implementation for generating and verifying tokens.
//   - A Redis denylist that revokes individual tokens by their jti.
//   - Context helpers for storing and retrieving authenticated claims.
package jwt

// Package auth authenticates operators calling the gateway's ops API.
//
// # Tokens
//
// Operators present HS256 JWTs in the Authorization header:
//
//	Authorization: Bearer <token>
//
// Tokens carry the operator name in "sub" and a "role" claim. Two roles exist:
//
//   - viewer: may list sessions, history, and hand-offs
//   - admin: may also reset sessions and trigger a retention sweep
//
// Tokens without a role are viewers. Issue tokens with the CLI:
//
//	intake-gateway token --subject alice --role admin
//
// The signing secret comes from ops.jwt_secret and must be at least
// MinSecretLength bytes.
//
// # Middleware
//
//	r.Use(auth.HTTPAuthMiddleware(verifier, logger))
//	r.With(auth.RequireAdminHTTP()).Delete("/api/sessions/{id}", ...)
//
// Handlers read the operator with FromContext.
package auth

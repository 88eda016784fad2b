// Package server provides HTTP routing, middleware, sessions, and handlers
// for the recommendation web service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern. The [BasicRouter] implementation uses
// [http.ServeMux] internally with method filtering.
//
// # Sessions
//
// The OAuth authorization-code flow lives in /login and /callback. On a
// successful code exchange the user's profile is fetched, a session is stored
// in the in-memory [SessionStore], and an opaque session cookie is set.
// [RequireSession] middleware resolves the cookie back into a
// [models.Session] and rejects unauthenticated requests with 401.
//
// Token refreshes performed mid-request are written back to the store through
// the token manager's refresh callback, so a refreshed pair survives the
// request that triggered it.
//
// # API Handlers
//
// [API] registers the service endpoints: listening stats, track suggestions,
// playlist listing, playlist writes, and a health probe. Handlers translate
// the error taxonomy into HTTP statuses in one place ([WriteError]).
package server

package router

import "errors"

// Sentinel errors returned by Router registration and lookup. Callers
// compare with errors.Is; the pipeline layer maps these onto the error
// taxonomy in kerrors.
var (
	// ErrRouteConflict is returned by Insert when a handler already exists
	// for the same (method, normalized path), and by MountSub when a
	// sub-router is already mounted at the given prefix.
	ErrRouteConflict = errors.New("route conflict")

	// ErrMalformedRoute is returned by Insert when a path segment uses
	// invalid ":name" / ":name(pattern)" syntax, or the regex fails to
	// compile.
	ErrMalformedRoute = errors.New("malformed route")

	// ErrNotFound is returned by Find when no handler matches the
	// (method, path) pair, whether because the path is unknown or the
	// method is not registered on an otherwise-known path.
	ErrNotFound = errors.New("not found")
)

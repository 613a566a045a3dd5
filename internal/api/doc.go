// Package api exposes the task service over HTTP using chi.
//
// Handlers decode JSON requests, call the service layer and map service
// sentinel errors to status codes: validation 400, bad credentials 401,
// missing entities 404, duplicates 409, everything else 500.
package api

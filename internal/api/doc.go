// Package api provides the venue's REST client: instrument discovery and
// account risk snapshots. Authentication is a bearer token obtained via
// internal/auth and attached as the X-Auth-Token header on every request.
package api

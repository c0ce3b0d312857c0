// Package requests contains HTTP request DTOs for the listen-api.
// Room-specific request types are in the room subpackage.
package requests

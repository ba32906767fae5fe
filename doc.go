// Package avatarsdk is a client SDK for the avatar conversation platform.
//
// The SDK provides:
//   - Avatar management (list, get, create, delete)
//   - Session creation and lifecycle management over LiveKit rooms
//   - A per-session manager with typed domain events (see the session package)
//   - Affiliate product listing
//
// For more information, see the README.md file.
package avatarsdk

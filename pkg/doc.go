// Package pkg holds the libraries behind whatschanged.
//
// Given npm dependencies and their installed versions, whatschanged finds
// each package's GitHub repository through the npm registry and reports the
// releases published since that version.
//
//   - [releases]: dependency and release types, and the per-name result map
//   - [version]: tag normalization and semver ordering
//   - [manifest]: package.json and name@version parsing
//   - [integrations]: HTTP client plus the npm and GitHub clients
//   - [store]: the release store (SQLite or MongoDB) and its lookup rules
//   - [resolver]: batch resolution and seeding
//   - [cache]: registry response caches (file, Redis, none)
//   - [parallel]: order-preserving bounded fan-out
//   - [errors], [observability], [httputil], [buildinfo]: shared plumbing
//
// A batch flows through them like this:
//
//	dependencies → store lookup → npm repository → GitHub releases → store insert
//	                    ↓                                   ↓
//	                 cached                          newer than baseline
//	                    └────────────→ ReleaseMap ←─────────┘
package pkg

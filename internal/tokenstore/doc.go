// Package tokenstore persists per-user Google OAuth tokens.
//
// FileStore writes one JSON file per user under a directory (tokens/ by
// default). SQLiteStore keeps the same data in a sqlite table for
// deployments that prefer a single file. Neither store locks across
// processes; the last writer wins.
package tokenstore

// Package checkpoint records per-user completion of each substep so that an
// interrupted or repeated run only does the work that is still missing.
//
// A scope is (city, user type, substep). Its marks live in a directory of
// JSON-lines segments:
//
//	checkpoints/portland/remaining/fetch-graph/chunk03of20.jsonl
//	{"user_id":"1234","completed_at":"2024-03-01T12:00:00Z"}
//
// MarkDone returns only after the line is fsynced, and a substep marks a user
// only after its output for that user is durable. Marks are never removed
// except by Reset.
package checkpoint

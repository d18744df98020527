// Package history persists orchestrator jobs in a SQLite database under the
// state directory.
//
// The Store implements orchestrator.Recorder: a row is written when a job
// starts and updated when it finishes. The CLI history command and the API
// jobs endpoint read it back. Schema changes ship as numbered files in
// migrations/ and are applied in order on Open.
package history

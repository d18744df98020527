// Package preflight provides readiness checks for the filesystem locations
// and external binaries gifconv depends on.
//
// These checks run in two contexts:
//   - `gifconv serve` calls RunAll before accepting requests and logs any
//     failed check as a warning.
//   - The CLI "gifconv status" command uses the individual checks to display
//     directory, archive, transcoder and API server health.
package preflight

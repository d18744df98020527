// Package orchestrator sequences probe and conversion jobs on a single
// background worker.
//
// Callers submit work with RequestConvert and RequestProbe and read finished
// jobs from Results. Conversions follow an Idle -> Busy -> Done state machine
// and at most one conversion is in flight per Orchestrator; a second request
// while Busy fails with ErrBusy before anything is queued. Probes share the
// worker but never change the conversion state.
//
// A finished job is published on Results only after the state transition it
// caused, so a caller reacting to a result always observes the new state.
// Started subprocesses are not cancelled: the worker detaches job contexts
// from the Start context and Stop waits for the in-flight job.
package orchestrator

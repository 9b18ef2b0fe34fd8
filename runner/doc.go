// Package runner provides common interface for container process runners
// together with the common types Result, Size and Status.
//
// # Status
//
// Status defines the container process result status including
//   - Normal
//   - Runtime Error (Signaled / Nonzero Exit Status)
//   - Cancelled (context done before the process exited)
//   - Runner Error (the process never started)
//
// # Result
//
// Result defines the container process result including Status,
// ExitStatus, Detailed Error, Time, Memory, SetUpTime and RunningTime
// (in real clock)
//
// # Runner
//
// General interface to run a process, including a context for cancellation
package runner

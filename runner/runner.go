package runner

import "context"

// Runner interface defines method to start running a container process.
// Run blocks until the process exits, the context cancels it by killing
// the process.
type Runner interface {
	Run(context.Context) (Result, error)
}

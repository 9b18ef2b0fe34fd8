package runner

// Status is the result Status
type Status int

// Result Status for container runner
const (
	StatusInvalid Status = iota // 0 not initialized
	// Normal
	StatusNormal // 1 normal

	// Runtime Error
	StatusSignalled         // 2 signalled
	StatusNonzeroExitStatus // 3 nonzero exit status

	// Killed upon context done
	StatusCancelled // 4 cancelled

	// Programmer Runner Error
	StatusRunnerError // 5 runner error
)

var (
	statusString = []string{
		"Invalid",
		"",
		"Signalled",
		"Nonzero Exit Status",
		"Cancelled",
		"Runner Error",
	}
)

func (t Status) String() string {
	i := int(t)
	if i >= 0 && i < len(statusString) {
		return statusString[i]
	}
	return statusString[0]
}

func (t Status) Error() string {
	return t.String()
}

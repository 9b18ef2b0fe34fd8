package unshare

import (
	"time"

	"code.cloudfoundry.org/lager/v3"

	"github.com/yuvaldolev/container/container"
	"github.com/yuvaldolev/container/pkg/forkexec"
	"github.com/yuvaldolev/container/pkg/seccomp"
)

// Runner runs a command inside new namespaces with the container file
// system as root
type Runner struct {
	// Container provides the hostname and the root file system
	Container *container.Container

	// argv and env for the container process, Args[0] is searched in the
	// PATH of Env
	Args []string
	Env  []string

	// file disriptors for new process, from 0 to len - 1.
	// nil inherits stdin, stdout and stderr
	Files []uintptr

	// id maps written when the child creates a user namespace,
	// nil maps the whole uid / gid range from 0
	UIDMappings []forkexec.IDMapping
	GIDMappings []forkexec.IDMapping

	// Seccomp defines the seccomp filter attach to the process
	Seccomp seccomp.Filter

	// HandshakeTimeout bounds each wait for the child during start up,
	// the context deadline applies when it is earlier
	HandshakeTimeout time.Duration

	// SyncFunc is called with the pid before the child is allowed to exec
	SyncFunc func(pid int) error

	Logger lager.Logger
}

// Process returns the persisted form of the startup descriptor
func (r *Runner) Process() *container.Process {
	return &container.Process{
		Args:             r.Args,
		Env:              r.Env,
		HostName:         r.Container.ID,
		RootFS:           r.Container.FS.Path,
		CloneFlags:       forkexec.UnshareFlags,
		UIDMappings:      r.UIDMappings,
		GIDMappings:      r.GIDMappings,
		HandshakeTimeout: r.HandshakeTimeout,
	}
}

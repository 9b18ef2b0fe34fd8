package forkexec

import (
	"golang.org/x/sys/unix"
)

// defines missing consts from syscall package
const (
	SECCOMP_SET_MODE_FILTER   = 1
	SECCOMP_FILTER_FLAG_TSYNC = 1

	// UnshareFlags are the namespaces created by clone. The user namespace
	// is unshared later by the child
	UnshareFlags = unix.CLONE_NEWNS | unix.CLONE_NEWCGROUP | unix.CLONE_NEWPID |
		unix.CLONE_NEWIPC | unix.CLONE_NEWNET | unix.CLONE_NEWUTS

	// rootfs bind mount onto the pivot root
	bindPrivate = unix.MS_BIND | unix.MS_PRIVATE

	// DefaultPath is searched for the command when env does not define PATH
	DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

	// OldRootPrefix prefixes the generated name of the old root mount point
	OldRootPrefix = "old_root."
)

// used by unshare remount / to private
var (
	none  = [...]byte{'n', 'o', 'n', 'e', 0}
	slash = [...]byte{'/', 0}

	// go does not allow constant uintptr to be negative...
	_AT_FDCWD = unix.AT_FDCWD
)

package forkexec

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/yuvaldolev/container/errdefs"
)

// ErrorLocation defines the location where child process failed to exec
type ErrorLocation int

// ChildError defines the specific error and location where it failed.
// It is written as raw bytes on the sync socket by the child
type ChildError struct {
	Err      syscall.Errno
	Location ErrorLocation
	Index    int
}

// childErrorSize is the size of ChildError record on the socket
const childErrorSize = unsafe.Sizeof(ChildError{})

// Location constants
const (
	LocClone ErrorLocation = iota + 1
	LocCloseWrite
	LocDup3
	LocFcntl
	LocSetHostName
	LocMountRoot
	LocMountBind
	LocPivotRootMkdir
	LocPivotRoot
	LocPivotRootChdir
	LocUmountOldRoot
	LocRemoveOldRoot
	LocMountMkdir
	LocMount
	LocSyncWrite
	LocSyncRead
	LocSyncAck
	LocSetGroups
	LocSetResUID
	LocSetResGID
	LocSetNoNewPrivs
	LocSeccomp
	LocExecve
)

var locToString = []string{
	"unknown",
	"clone",
	"close_write",
	"dup3",
	"fcntl",
	"sethostname",
	"mount(root)",
	"mount(bind)",
	"pivot_root(mkdir)",
	"pivot_root",
	"pivot_root(chdir)",
	"umount(old_root)",
	"rmdir(old_root)",
	"mount(mkdir)",
	"mount",
	"sync_write",
	"sync_read",
	"sync_ack",
	"setgroups",
	"setresuid",
	"setresgid",
	"set_no_new_privs",
	"seccomp",
	"execve",
}

func (e ErrorLocation) String() string {
	if e >= LocClone && e <= LocExecve {
		return locToString[e]
	}
	return "unknown"
}

// Kind classifies the failed step
func (e ErrorLocation) Kind() errdefs.Kind {
	switch e {
	case LocMountRoot, LocMountBind, LocUmountOldRoot, LocRemoveOldRoot, LocMountMkdir, LocMount,
		LocCloseWrite, LocDup3, LocFcntl:
		return errdefs.KindIO
	case LocSyncWrite, LocSyncRead, LocSyncAck:
		return errdefs.KindProtocol
	case LocExecve:
		return errdefs.KindExec
	default:
		return errdefs.KindNamespace
	}
}

func (e ChildError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s(%d): %s", e.Location.String(), e.Index, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Location.String(), e.Err.Error())
}

func (e ChildError) Unwrap() error {
	return e.Err
}

// decodeChildError reads the ChildError record written by childExitError
func decodeChildError(b []byte) ChildError {
	var e ChildError
	copy((*[childErrorSize]byte)(unsafe.Pointer(&e))[:], b)
	return e
}

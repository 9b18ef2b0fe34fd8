package forkexec

import (
	"syscall"
	"time"

	"github.com/yuvaldolev/container/pkg/mount"
)

// Runner is the startup descriptor of a container process: the command,
// the new root and the namespaces to create. Start converts it into raw
// syscall arguments before clone so the child shares no Go state with
// the parent.
type Runner struct {
	// argv and env for execve syscall for the child process,
	// Args[0] is searched in PATH of Env like execvp
	Args []string
	Env  []string

	// file descriptors for new process, from 0 to len - 1,
	// nil inherits stdin, stdout and stderr of the parent
	Files []uintptr

	// clone flags to create linux namespaces, masked by UnshareFlags
	CloneFlags uintptr

	// HostName to be set after clone (container identity)
	HostName string

	// RootFS is bind mounted onto PivotRoot, which becomes the new root.
	// OldRoot is the name of the mount point created inside PivotRoot
	// for the old root before it is detached.
	// Call path:
	// mount("none", "/", NULL, MS_REC | MS_PRIVATE, NULL)
	// mount(rootfs, root, NULL, MS_BIND | MS_PRIVATE, NULL)
	// mkdir(root/old_root)
	// pivot_root(root, root/old_root)
	// chdir("/")
	// umount("/old_root", MNT_DETACH)
	// rmdir("/old_root")
	RootFS, PivotRoot, OldRoot string

	// mounts defines the mount syscalls after pivot_root, targets are
	// absolute paths inside the new root
	Mounts []mount.SyscallParams

	// UnshareUser makes child try unshare(CLONE_NEWUSER) after mounts.
	// Failure is reported as capability 0 rather than error
	UnshareUser bool

	// UidMappings / GidMappings written by parent when child has unshared
	// user namespace
	UIDMappings []IDMapping
	GIDMappings []IDMapping

	// seccomp syscall filter applied to child right before execve
	Seccomp *syscall.SockFprog

	// HandshakeTimeout bounds each read of the parent on the sync socket,
	// zero means no deadline
	HandshakeTimeout time.Duration

	// SyncFunc will invoke with the child pid after id maps are written and
	// before ack. If SyncFunc return some error, parent will kill the child
	// and report the error
	SyncFunc func(int) error
}

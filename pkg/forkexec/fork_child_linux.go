package forkexec

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Reference to src/syscall/exec_linux.go
//
//go:norace
func forkAndExecInChild(c *childParams, p [2]int) (r1 uintptr, err1 syscall.Errno) {
	// Acquire the fork lock so that no other threads
	// create new fds that are not yet close-on-exec
	// before we fork.
	syscall.ForkLock.Lock()

	// About to call fork.
	// No more allocation or calls of non-assembly functions.
	beforeFork()

	// UnshareFlags (new namespaces) is activated by clone syscall
	r1, _, err1 = syscall.RawSyscall6(syscall.SYS_CLONE, uintptr(syscall.SIGCHLD)|c.cloneFlags, 0, 0, 0, 0, 0)
	if err1 != 0 || r1 != 0 {
		// in parent process, immediate return
		return
	}

	// In child process
	afterForkInChild()
	// Notice: cannot call any GO functions beyond this point

	pipe := p[1]
	var (
		msg     [unsafe.Sizeof(uint64(0))]byte
		ack     [2 * unsafe.Sizeof(uint64(0))]byte
		eacces  bool
		groups  = [1]uint32{0}
		idZero  uintptr
		msgSize = uintptr(len(msg))
	)

	// Close parent end of the socket, otherwise the child could block forever
	// when parent exits
	if _, _, err1 = syscall.RawSyscall(syscall.SYS_CLOSE, uintptr(p[0]), 0, 0); err1 != 0 {
		childExitError(pipe, LocCloseWrite, err1)
	}

	// Pass 1 & pass 2 assigns fds for child process
	// Pass 1: fd[i] < i => nextfd
	nextfd := c.nextfd
	if len(c.fd) > 0 && pipe < nextfd {
		_, _, err1 = syscall.RawSyscall(syscall.SYS_DUP3, uintptr(pipe), uintptr(nextfd), syscall.O_CLOEXEC)
		if err1 != 0 {
			childExitError(pipe, LocDup3, err1)
		}
		pipe = nextfd
		nextfd++
	}
	for i := 0; i < len(c.fd); i++ {
		if c.fd[i] >= 0 && c.fd[i] < i {
			// Avoid fd rewrite
			for nextfd == pipe {
				nextfd++
			}
			_, _, err1 = syscall.RawSyscall(syscall.SYS_DUP3, uintptr(c.fd[i]), uintptr(nextfd), syscall.O_CLOEXEC)
			if err1 != 0 {
				childExitError(pipe, LocDup3, err1)
			}
			c.fd[i] = nextfd
			nextfd++
		}
	}
	// Pass 2: fd[i] => i
	for i := 0; i < len(c.fd); i++ {
		if c.fd[i] == -1 {
			syscall.RawSyscall(syscall.SYS_CLOSE, uintptr(i), 0, 0)
			continue
		}
		if c.fd[i] == i {
			// dup2(i, i) will not clear close on exec flag, need to reset the flag
			_, _, err1 = syscall.RawSyscall(syscall.SYS_FCNTL, uintptr(c.fd[i]), syscall.F_SETFD, 0)
			if err1 != 0 {
				childExitError(pipe, LocFcntl, err1)
			}
			continue
		}
		_, _, err1 = syscall.RawSyscall(syscall.SYS_DUP3, uintptr(c.fd[i]), uintptr(i), 0)
		if err1 != 0 {
			childExitError(pipe, LocDup3, err1)
		}
	}

	// SetHostName
	if c.hostname != nil {
		_, _, err1 = syscall.RawSyscall(syscall.SYS_SETHOSTNAME,
			uintptr(unsafe.Pointer(c.hostname)), uintptr(c.hostnameLen), 0)
		if err1 != 0 {
			childExitError(pipe, LocSetHostName, err1)
		}
	}

	// Mount file system
	{
		// mark root as private to avoid propagate outside to the original
		// mount namespace
		_, _, err1 = syscall.RawSyscall6(syscall.SYS_MOUNT, uintptr(unsafe.Pointer(&none[0])),
			uintptr(unsafe.Pointer(&slash[0])), 0, syscall.MS_REC|syscall.MS_PRIVATE, 0, 0)
		if err1 != 0 {
			childExitError(pipe, LocMountRoot, err1)
		}

		// mount(rootfs, root, NULL, MS_BIND | MS_PRIVATE, NULL)
		_, _, err1 = syscall.RawSyscall6(syscall.SYS_MOUNT, uintptr(unsafe.Pointer(c.rootBind.Source)),
			uintptr(unsafe.Pointer(c.rootBind.Target)), 0, c.rootBind.Flags, 0, 0)
		if err1 != 0 {
			childExitError(pipe, LocMountBind, err1)
		}

		// mkdir("root/old_root")
		_, _, err1 = syscall.RawSyscall(syscall.SYS_MKDIRAT, uintptr(_AT_FDCWD), uintptr(unsafe.Pointer(c.oldRootDir)), 0700)
		if err1 != 0 {
			childExitError(pipe, LocPivotRootMkdir, err1)
		}

		// pivot_root(root, "root/old_root")
		_, _, err1 = syscall.RawSyscall(syscall.SYS_PIVOT_ROOT, uintptr(unsafe.Pointer(c.pivotRoot)), uintptr(unsafe.Pointer(c.oldRootDir)), 0)
		if err1 != 0 {
			childExitError(pipe, LocPivotRoot, err1)
		}

		_, _, err1 = syscall.RawSyscall(syscall.SYS_CHDIR, uintptr(unsafe.Pointer(&slash[0])), 0, 0)
		if err1 != 0 {
			childExitError(pipe, LocPivotRootChdir, err1)
		}

		// umount("/old_root", MNT_DETACH)
		_, _, err1 = syscall.RawSyscall(syscall.SYS_UMOUNT2, uintptr(unsafe.Pointer(c.oldRoot)), syscall.MNT_DETACH, 0)
		if err1 != 0 {
			childExitError(pipe, LocUmountOldRoot, err1)
		}

		// rmdir("/old_root")
		_, _, err1 = syscall.RawSyscall(syscall.SYS_UNLINKAT, uintptr(_AT_FDCWD), uintptr(unsafe.Pointer(c.oldRoot)), uintptr(unix.AT_REMOVEDIR))
		if err1 != 0 {
			childExitError(pipe, LocRemoveOldRoot, err1)
		}

		// performing mounts inside the new root (e.g. /proc)
		for i, m := range c.mounts {
			// mkdirs(target)
			for _, p := range m.Prefixes {
				_, _, err1 = syscall.RawSyscall(syscall.SYS_MKDIRAT, uintptr(_AT_FDCWD), uintptr(unsafe.Pointer(p)), 0755)
				if err1 != 0 && err1 != syscall.EEXIST {
					childExitErrorWithIndex(pipe, LocMountMkdir, i, err1)
				}
			}
			// mount(source, target, fsType, flags, data)
			_, _, err1 = syscall.RawSyscall6(syscall.SYS_MOUNT, uintptr(unsafe.Pointer(m.Source)),
				uintptr(unsafe.Pointer(m.Target)), uintptr(unsafe.Pointer(m.FsType)), uintptr(m.Flags),
				uintptr(unsafe.Pointer(m.Data)), 0)
			if err1 != 0 {
				childExitErrorWithIndex(pipe, LocMount, i, err1)
			}
		}
	}

	// Try user namespace, failure is a capability signal instead of error
	if c.unshareUser {
		_, _, err1 = syscall.RawSyscall(syscall.SYS_UNSHARE, uintptr(unix.CLONE_NEWUSER), 0, 0)
		if err1 == 0 {
			msg[0] = 1
		}
	}

	// Send capability and wait for parent to write uid_map / gid_map
	{
		r1, _, err1 = syscall.RawSyscall(syscall.SYS_WRITE, uintptr(pipe), uintptr(unsafe.Pointer(&msg[0])), msgSize)
		if err1 != 0 {
			childExitError(pipe, LocSyncWrite, err1)
		}
		if r1 != msgSize {
			childExitError(pipe, LocSyncWrite, syscall.EPROTO)
		}

		r1, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(pipe), uintptr(unsafe.Pointer(&ack[0])), uintptr(len(ack)))
		if err1 != 0 {
			childExitError(pipe, LocSyncRead, err1)
		}
		if r1 != msgSize {
			childExitError(pipe, LocSyncRead, syscall.EPROTO)
		}
		for i := uintptr(0); i < msgSize; i++ {
			if ack[i] != 0 {
				childExitError(pipe, LocSyncAck, syscall.EPROTO)
			}
		}
	}

	// Switch to uid 0 / gid 0 within the (possibly new) user namespace
	_, _, err1 = syscall.RawSyscall(unix.SYS_SETGROUPS, uintptr(len(groups)), uintptr(unsafe.Pointer(&groups[0])), 0)
	if err1 != 0 {
		childExitError(pipe, LocSetGroups, err1)
	}
	_, _, err1 = syscall.RawSyscall(unix.SYS_SETRESUID, idZero, idZero, idZero)
	if err1 != 0 {
		childExitError(pipe, LocSetResUID, err1)
	}
	_, _, err1 = syscall.RawSyscall(unix.SYS_SETRESGID, idZero, idZero, idZero)
	if err1 != 0 {
		childExitError(pipe, LocSetResGID, err1)
	}

	// Load seccomp
	if c.seccomp != nil {
		_, _, err1 = syscall.RawSyscall6(syscall.SYS_PRCTL, unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0, 0)
		if err1 != 0 {
			childExitError(pipe, LocSetNoNewPrivs, err1)
		}
		_, _, err1 = syscall.RawSyscall(unix.SYS_SECCOMP, SECCOMP_SET_MODE_FILTER, SECCOMP_FILTER_FLAG_TSYNC, uintptr(unsafe.Pointer(c.seccomp)))
		if err1 != 0 {
			childExitError(pipe, LocSeccomp, err1)
		}
	}

	// execvp: try every candidate, the socket is closed by close_on_exec on success
	err1 = syscall.ENOENT
exec:
	for _, path := range c.execPaths {
		_, _, err1 = syscall.RawSyscall(unix.SYS_EXECVE, uintptr(unsafe.Pointer(path)),
			uintptr(unsafe.Pointer(&c.argv[0])), uintptr(unsafe.Pointer(&c.env[0])))
		switch err1 {
		case syscall.EACCES:
			eacces = true
		case syscall.ENOENT, syscall.ENOTDIR, syscall.ESTALE, syscall.ENODEV, syscall.ETIMEDOUT:
		default:
			break exec
		}
	}
	if eacces && err1 != syscall.EACCES && (err1 == syscall.ENOENT || err1 == syscall.ENOTDIR ||
		err1 == syscall.ESTALE || err1 == syscall.ENODEV || err1 == syscall.ETIMEDOUT) {
		err1 = syscall.EACCES
	}
	childExitError(pipe, LocExecve, err1)
	return
}

//go:nosplit
func childExitError(pipe int, loc ErrorLocation, err syscall.Errno) {
	childExitErrorWithIndex(pipe, loc, 0, err)
}

//go:nosplit
func childExitErrorWithIndex(pipe int, loc ErrorLocation, idx int, err syscall.Errno) {
	childError := ChildError{
		Err:      err,
		Location: loc,
		Index:    idx,
	}

	// send error code on pipe
	syscall.RawSyscall(unix.SYS_WRITE, uintptr(pipe), uintptr(unsafe.Pointer(&childError)), unsafe.Sizeof(childError))
	for {
		syscall.RawSyscall(syscall.SYS_EXIT, uintptr(err), 0, 0)
	}
}

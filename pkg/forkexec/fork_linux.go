package forkexec

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"
	_ "unsafe" // required for go:linkname.

	"golang.org/x/sys/unix"

	"github.com/yuvaldolev/container/errdefs"
	"github.com/yuvaldolev/container/pkg/mount"
	"github.com/yuvaldolev/container/pkg/unixsocket"
)

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()

// childParams is the raw form of Runner consumed by the child after clone,
// it only holds c style strings and flags
type childParams struct {
	cloneFlags uintptr

	fd     []int
	nextfd int

	argv, env []*byte
	execPaths []*byte

	hostname    *byte
	hostnameLen int

	rootBind   mount.SyscallParams
	pivotRoot  *byte
	oldRootDir *byte // old root mount point before pivot_root
	oldRoot    *byte // old root mount point after pivot_root
	mounts     []mount.SyscallParams

	unshareUser bool
	seccomp     *syscall.SockFprog
}

// Start will clone the child into new namespaces, run the sync protocol
// and return the pid of the child after it successfully called execve.
// If Start returns error after clone, the child has been killed and reaped
func (r *Runner) Start() (int, error) {
	c, err := r.prepare()
	if err != nil {
		return 0, err
	}

	// socketpair p used to notify child the uid / gid mapping have been setup
	// and to receive the child error before execve
	// p[0] is used by parent and p[1] is used by child
	p, err := unixsocket.RawSocketPair()
	if err != nil {
		return 0, errdefs.New(errdefs.KindProtocol, "socketpair", "", err)
	}

	// fork in child
	pid, err1 := forkAndExecInChild(c, p)

	// restore all signals
	afterFork()
	syscall.ForkLock.Unlock()

	return syncWithChild(r, p, int(pid), err1)
}

func (r *Runner) prepare() (*childParams, error) {
	if len(r.Args) == 0 {
		return nil, errdefs.Errorf(errdefs.KindInvalidCommand, "execute", "empty command")
	}
	argv, env, err := prepareExec(r.Args, r.Env)
	if err != nil {
		return nil, errdefs.New(errdefs.KindInvalidCommand, "execute", "", err)
	}
	candidates := execCandidates(r.Args[0], r.Env)
	if len(candidates) == 0 {
		return nil, errdefs.New(errdefs.KindExec, "execvp", r.Args[0], syscall.ENOENT)
	}
	execPaths, err := arrayPtrFromStrings(candidates)
	if err != nil {
		return nil, errdefs.New(errdefs.KindExec, "execvp", r.Args[0], err)
	}

	c := &childParams{
		cloneFlags:  r.CloneFlags & UnshareFlags,
		argv:        argv,
		env:         env,
		execPaths:   execPaths,
		hostnameLen: len(r.HostName),
		mounts:      r.Mounts,
		unshareUser: r.UnshareUser,
		seccomp:     r.Seccomp,
	}

	c.fd, c.nextfd = prepareFds(r.Files)

	// prepare hostname
	if c.hostname, err = syscallStringFromString(r.HostName); err != nil {
		return nil, errdefs.New(errdefs.KindNamespace, "sethostname", r.HostName, err)
	}

	// prepare pivot_root param
	if r.PivotRoot == "" || r.RootFS == "" || r.OldRoot == "" {
		return nil, errdefs.Errorf(errdefs.KindNamespace, "pivot_root", "root, rootfs and old root are required")
	}
	bind, err := mount.NewBuilder().WithMount(mount.Mount{
		Source: r.RootFS,
		Target: r.PivotRoot,
		Flags:  bindPrivate,
	}).Build()
	if err != nil {
		return nil, errdefs.New(errdefs.KindIO, "mount", r.RootFS, err)
	}
	c.rootBind = bind[0]
	if c.pivotRoot, err = syscall.BytePtrFromString(r.PivotRoot); err != nil {
		return nil, errdefs.New(errdefs.KindNamespace, "pivot_root", r.PivotRoot, err)
	}
	if c.oldRootDir, err = syscall.BytePtrFromString(filepath.Join(r.PivotRoot, r.OldRoot)); err != nil {
		return nil, errdefs.New(errdefs.KindNamespace, "pivot_root", r.OldRoot, err)
	}
	if c.oldRoot, err = syscall.BytePtrFromString("/" + r.OldRoot); err != nil {
		return nil, errdefs.New(errdefs.KindNamespace, "pivot_root", r.OldRoot, err)
	}
	return c, nil
}

func syncWithChild(r *Runner, p [2]int, pid int, err1 syscall.Errno) (_ int, err error) {
	// sync with child
	unix.Close(p[1])

	// clone syscall failed
	if err1 != 0 {
		unix.Close(p[0])
		return 0, errdefs.New(errdefs.KindNamespace, "clone", "", ChildError{Err: err1, Location: LocClone})
	}

	// the child is killed and reaped on any failure from now on
	defer func() {
		if err != nil {
			handleChildFailed(pid)
		}
	}()

	sock, err := unixsocket.NewSocket(p[0])
	if err != nil {
		return 0, errdefs.New(errdefs.KindProtocol, "sync", "", err)
	}
	defer sock.Close()

	var (
		buf      = make([]byte, childErrorSize)
		deadline time.Time
	)
	if r.HandshakeTimeout > 0 {
		deadline = time.Now().Add(r.HandshakeTimeout)
	}

	// read user namespace capability
	n, err := sock.Recv(buf, deadline)
	if err != nil {
		return 0, protocolError("read capability", err)
	}
	if n == int(childErrorSize) {
		return 0, childFailed(buf[:n])
	}
	unshared, err := unixsocket.DecodeUint64(buf[:n])
	if err != nil {
		return 0, protocolError("read capability", err)
	}

	if unshared != 0 {
		if err = writeIDMaps(r, pid); err != nil {
			return 0, err
		}
	}

	// if syncfunc return error, then fail child immediately
	if r.SyncFunc != nil {
		if err = r.SyncFunc(pid); err != nil {
			return 0, err
		}
	}

	// otherwise, ack child
	if err = sock.SendUint64(0); err != nil {
		return 0, protocolError("send ack", err)
	}

	// if read anything mean child failed after sync (close_on_exec so EOF means execve succeeded)
	n, err = sock.Recv(buf, deadline)
	switch {
	case err == io.EOF:
		return pid, nil
	case err != nil:
		return 0, protocolError("read exec status", err)
	case n == int(childErrorSize):
		return 0, childFailed(buf[:n])
	default:
		return 0, protocolError("read exec status", errors.New("unexpected message"))
	}
}

func protocolError(op string, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errdefs.New(errdefs.KindProtocol, op, "", errors.New("timeout waiting for child"))
	}
	if err == io.EOF {
		return errdefs.New(errdefs.KindProtocol, op, "", errors.New("child closed sync socket"))
	}
	return errdefs.New(errdefs.KindProtocol, op, "", err)
}

func childFailed(b []byte) error {
	ce := decodeChildError(b)
	return errdefs.New(ce.Location.Kind(), "child", "", ce)
}

func handleChildFailed(pid int) {
	var wstatus syscall.WaitStatus
	// make sure not blocked
	syscall.Kill(pid, syscall.SIGKILL)
	// child failed; wait for it to exit, to make sure the zombies don't accumulate
	_, err := syscall.Wait4(pid, &wstatus, 0, nil)
	for err == syscall.EINTR {
		_, err = syscall.Wait4(pid, &wstatus, 0, nil)
	}
}

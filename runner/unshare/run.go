//go:build linux

package unshare

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"golang.org/x/sys/unix"

	"github.com/yuvaldolev/container/container"
	"github.com/yuvaldolev/container/errdefs"
	"github.com/yuvaldolev/container/pkg/forkexec"
	"github.com/yuvaldolev/container/pkg/mount"
	"github.com/yuvaldolev/container/runner"
)

// DefaultEnv is the environment of the container process when Env is nil
var DefaultEnv = []string{"PATH=" + forkexec.DefaultPath}

// Run starts the command in the container and waits for it to exit.
// The child is reaped on every return path once it has been cloned.
func (r *Runner) Run(ctx context.Context) (result runner.Result, err error) {
	if len(r.Args) == 0 {
		result.Status = runner.StatusRunnerError
		err = errdefs.Errorf(errdefs.KindInvalidCommand, "execute", "empty command")
		result.Error = err.Error()
		return result, err
	}

	log := r.Logger.Session("execute", lager.Data{"id": r.Container.ID, "args": r.Args})

	fr, cleanup, err := r.descriptor(ctx, log)
	if err != nil {
		log.Error("prepare", err)
		result.Status = runner.StatusRunnerError
		result.Error = err.Error()
		return result, err
	}
	defer cleanup()

	sTime := time.Now()
	log.Debug("starting")
	pid, err := fr.Start()
	if err != nil {
		log.Error("start", err)
		result.Status = runner.StatusRunnerError
		result.Error = err.Error()
		result.SetUpTime = time.Since(sTime)
		return result, err
	}
	fTime := time.Now()
	log.Info("exec-succeeded", lager.Data{"pid": pid})

	result, err = r.wait(ctx, log, pid)
	result.SetUpTime = fTime.Sub(sTime)
	result.RunningTime = time.Since(fTime)
	return result, err
}

// descriptor builds the startup descriptor. cleanup removes the temporary
// pivot root and must be called after the child is reaped.
func (r *Runner) descriptor(ctx context.Context, log lager.Logger) (*forkexec.Runner, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, errdefs.New(errdefs.KindProtocol, "execute", "", err)
	}

	suffix, err := container.NewID()
	if err != nil {
		return nil, nil, err
	}

	mb := mount.NewBuilder().WithProc("/proc")
	mounts, err := mb.Build()
	if err != nil {
		return nil, nil, errdefs.New(errdefs.KindIO, "mount", "/proc", err)
	}
	log.Debug("mounts", lager.Data{"mounts": mb.String()})

	env := r.Env
	if env == nil {
		env = DefaultEnv
	}

	timeout, err := handshakeTimeout(ctx, r.HandshakeTimeout)
	if err != nil {
		return nil, nil, err
	}

	// the bind mount only exists in the child mount namespace, so the
	// directory is empty from the parent view
	root, err := os.MkdirTemp("", "container-root.")
	if err != nil {
		return nil, nil, errdefs.New(errdefs.KindIO, "mkdir", os.TempDir(), err)
	}
	cleanup := func() {
		if err := os.Remove(root); err != nil {
			log.Error("remove-root", err, lager.Data{"root": root})
		}
	}

	fr := &forkexec.Runner{
		Args:             r.Args,
		Env:              env,
		Files:            r.Files,
		CloneFlags:       forkexec.UnshareFlags,
		HostName:         r.Container.ID,
		RootFS:           r.Container.FS.Path,
		PivotRoot:        root,
		OldRoot:          forkexec.OldRootPrefix + suffix,
		Mounts:           mounts,
		UnshareUser:      true,
		UIDMappings:      r.UIDMappings,
		GIDMappings:      r.GIDMappings,
		Seccomp:          r.Seccomp.SockFprog(),
		HandshakeTimeout: timeout,
		SyncFunc: func(pid int) error {
			log.Debug("spawned", lager.Data{"pid": pid})
			if r.SyncFunc != nil {
				return r.SyncFunc(pid)
			}
			return nil
		},
	}
	return fr, cleanup, nil
}

// handshakeTimeout bounds timeout by the ctx deadline. A deadline already
// passed is an error since a zero timeout means no deadline to forkexec
func handshakeTimeout(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return timeout, nil
	}
	d := time.Until(deadline)
	if d <= 0 {
		return 0, errdefs.New(errdefs.KindProtocol, "execute", "", context.DeadlineExceeded)
	}
	if timeout <= 0 || d < timeout {
		timeout = d
	}
	return timeout, nil
}

// wait waits the child to exit and kills it when ctx is done
func (r *Runner) wait(ctx context.Context, log lager.Logger, pid int) (result runner.Result, err error) {
	var (
		wstatus   unix.WaitStatus
		rusage    unix.Rusage
		cancelled atomic.Bool
		finish    = make(chan struct{})
	)

	// handle cancel
	go func() {
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			unix.Kill(pid, unix.SIGKILL)
		case <-finish:
		}
	}()
	defer close(finish)

	_, err = unix.Wait4(pid, &wstatus, 0, &rusage)
	for err == unix.EINTR {
		_, err = unix.Wait4(pid, &wstatus, 0, &rusage)
	}
	if err != nil {
		log.Error("wait4", err)
		result.Status = runner.StatusRunnerError
		result.Error = err.Error()
		return result, errdefs.New(errdefs.KindNamespace, "wait4", "", err)
	}

	result.Time = time.Duration(rusage.Utime.Nano())
	result.Memory = runner.Size(rusage.Maxrss << 10)

	switch {
	case cancelled.Load():
		result.Status = runner.StatusCancelled
		result.ExitStatus = int(unix.SIGKILL)
		err = ctx.Err()
	case wstatus.Exited():
		result.ExitStatus = wstatus.ExitStatus()
		result.Status = runner.StatusNormal
		if result.ExitStatus != 0 {
			result.Status = runner.StatusNonzeroExitStatus
		}
	case wstatus.Signaled():
		result.Status = runner.StatusSignalled
		result.ExitStatus = int(wstatus.Signal())
	}
	log.Info("exited", lager.Data{"status": result.Status.String(), "exit-status": result.ExitStatus})
	return result, err
}

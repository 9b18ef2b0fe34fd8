package mount

import (
	"strings"

	"golang.org/x/sys/unix"
)

const pFlag = unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC

// Builder builds fork_exec friendly mount syscall format
type Builder struct {
	Mounts []Mount
}

// NewBuilder creates new mount builder instance
func NewBuilder() *Builder {
	return &Builder{}
}

// Build creates sequence of syscalls for fork_exec
func (b *Builder) Build() ([]SyscallParams, error) {
	ret := make([]SyscallParams, 0, len(b.Mounts))
	for _, m := range b.Mounts {
		sp, err := m.ToSyscall()
		if err != nil {
			return nil, err
		}
		ret = append(ret, *sp)
	}
	return ret, nil
}

// WithMount add single mount to builder
func (b *Builder) WithMount(m Mount) *Builder {
	b.Mounts = append(b.Mounts, m)
	return b
}

// WithProc add proc file system at target
func (b *Builder) WithProc(target string) *Builder {
	b.Mounts = append(b.Mounts, Mount{
		Source: "proc",
		Target: target,
		FsType: "proc",
		Flags:  pFlag,
	})
	return b
}

// String describes the mounts for logging
func (b Builder) String() string {
	var sb strings.Builder
	sb.WriteString("Mounts: ")
	for i, m := range b.Mounts {
		sb.WriteString(m.String())
		if i != len(b.Mounts)-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}

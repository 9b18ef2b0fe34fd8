package libseccomp

import (
	"fmt"
	"syscall"

	libseccomp "github.com/elastic/go-seccomp-bpf"
	"golang.org/x/net/bpf"

	"github.com/yuvaldolev/container/pkg/seccomp"
)

// Builder is used to build the filter
type Builder struct {
	Deny    []string
	Default seccomp.Action
}

// actDeny makes denied syscalls fail with EPERM instead of killing the
// container process
var actDeny = seccomp.ActionErrno.WithReturnCode(int16(syscall.EPERM))

// DenyList creates a builder allowing everything except the named syscalls
func DenyList(names []string) *Builder {
	return &Builder{
		Deny:    names,
		Default: seccomp.ActionAllow,
	}
}

// Build builds the filter
func (b *Builder) Build() (seccomp.Filter, error) {
	policy := libseccomp.Policy{
		DefaultAction: ToSeccompAction(b.Default),
	}
	if len(b.Deny) > 0 {
		policy.Syscalls = append(policy.Syscalls, libseccomp.SyscallGroup{
			Names:  b.Deny,
			Action: ToSeccompAction(actDeny),
		})
	}

	insts, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble policy: %w", err)
	}
	raw, err := bpf.Assemble(insts)
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble bpf: %w", err)
	}
	return ExportBPF(raw), nil
}

// ExportBPF convert raw bpf instructions to kernel readable filter
func ExportBPF(raw []bpf.RawInstruction) seccomp.Filter {
	filter := make(seccomp.Filter, 0, len(raw))
	for _, in := range raw {
		filter = append(filter, syscall.SockFilter{
			Code: in.Op,
			Jt:   in.Jt,
			Jf:   in.Jf,
			K:    in.K,
		})
	}
	return filter
}

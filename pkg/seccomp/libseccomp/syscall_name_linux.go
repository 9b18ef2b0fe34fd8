package libseccomp

import (
	"fmt"

	"github.com/elastic/go-seccomp-bpf/arch"
)

var info, errInfo = arch.GetInfo("")

// CheckSyscallNames reports the first name unknown to the native
// architecture
func CheckSyscallNames(names []string) error {
	if errInfo != nil {
		return errInfo
	}
	for _, n := range names {
		if _, ok := info.SyscallNames[n]; !ok {
			return fmt.Errorf("syscall %q does not exist on %s", n, info.Name)
		}
	}
	return nil
}

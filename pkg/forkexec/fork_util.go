package forkexec

import (
	"path/filepath"
	"strings"
	"syscall"
)

// prepareExec prepares execve parameters
func prepareExec(Args, Env []string) ([]*byte, []*byte, error) {
	// make exec args
	argv, err := syscall.SlicePtrFromStrings(Args)
	if err != nil {
		return nil, nil, err
	}
	// make env
	env, err := syscall.SlicePtrFromStrings(Env)
	if err != nil {
		return nil, nil, err
	}
	return argv, env, nil
}

// execCandidates lists the paths execvp would try for file with PATH from env
func execCandidates(file string, env []string) []string {
	if strings.Contains(file, "/") {
		return []string{file}
	}
	path := DefaultPath
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = e[len("PATH="):]
			break
		}
	}
	ret := make([]string, 0)
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		ret = append(ret, dir+"/"+file)
	}
	return ret
}

// prepareFds finds the first fd above every fd in files, so the shuffle in
// the child never overwrites a fd it still needs
func prepareFds(files []uintptr) ([]int, int) {
	fd := make([]int, len(files))
	nextfd := len(files)
	for i, ufd := range files {
		if nextfd < int(ufd) {
			nextfd = int(ufd)
		}
		fd[i] = int(ufd)
	}
	nextfd++
	return fd, nextfd
}

// syscallStringFromString prepares *byte if string is not empty, other wise nil
func syscallStringFromString(str string) (*byte, error) {
	if str != "" {
		return syscall.BytePtrFromString(str)
	}
	return nil, nil
}

// arrayPtrFromStrings converts strings to c style strings without nil terminator
func arrayPtrFromStrings(strs []string) ([]*byte, error) {
	bytes := make([]*byte, 0, len(strs))
	for _, s := range strs {
		b, err := syscall.BytePtrFromString(s)
		if err != nil {
			return nil, err
		}
		bytes = append(bytes, b)
	}
	return bytes, nil
}

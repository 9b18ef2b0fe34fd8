// Package seccomp provides a generated filter format for seccomp filter
package seccomp

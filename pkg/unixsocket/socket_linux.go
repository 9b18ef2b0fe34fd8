// Package unixsocket provides wrapper for Linux unix socket used as the
// parent / child synchronization channel, with fixed size messages and
// read deadlines.
package unixsocket

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// MsgSize is the size of a synchronization message (little-endian uint64)
const MsgSize = 8

// Socket wrappers a unix socket connection
type Socket struct {
	*net.UnixConn
}

// NewSocket creates Socket conn struct using existing unix socket fd
// creates by socketpair and mark it as close_on_exec (avoid fd leak).
// It need SOCK_SEQPACKET socket to keep message boundaries.
// The fd is owned by the returned Socket afterwards.
func NewSocket(fd int) (*Socket, error) {
	syscall.SetNonblock(fd, true)
	syscall.CloseOnExec(fd)

	file := os.NewFile(uintptr(fd), "unix-socket")
	if file == nil {
		return nil, fmt.Errorf("NewSocket: %d is not a valid fd", fd)
	}
	defer file.Close()

	conn, err := net.FileConn(file)
	if err != nil {
		return nil, err
	}

	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("NewSocket: %d is not a valid unix socket connection", fd)
	}
	return &Socket{UnixConn: unixConn}, nil
}

// RawSocketPair creates the SOCK_SEQPACKET socketpair as raw fds, both close_on_exec.
// fd[1] is meant to be used by a forked child with raw syscalls
func RawSocketPair() ([2]int, error) {
	fd, err := syscall.Socketpair(syscall.AF_LOCAL, syscall.SOCK_SEQPACKET|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return fd, fmt.Errorf("RawSocketPair: failed to call socketpair %v", err)
	}
	return fd, nil
}

// Send writes b as one message
func (s *Socket) Send(b []byte) error {
	_, _, err := s.WriteMsgUnix(b, nil, nil)
	return err
}

// Recv reads one message into b before the deadline (zero means no deadline).
// A closed peer is reported as io.EOF
func (s *Socket) Recv(b []byte, deadline time.Time) (int, error) {
	if err := s.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := s.Read(b)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// SendUint64 sends v as an 8 bytes little-endian message
func (s *Socket) SendUint64(v uint64) error {
	var b [MsgSize]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return s.Send(b[:])
}

// DecodeUint64 decodes a synchronization message
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) != MsgSize {
		return 0, fmt.Errorf("unixsocket: message of %d bytes, want %d: %w", len(b), MsgSize, io.ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint64(b), nil
}

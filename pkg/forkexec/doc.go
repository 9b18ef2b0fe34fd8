// Package forkexec starts a process inside new Linux namespaces with a raw
// clone, moves it onto a new root filesystem and executes the command.
//
// # Protocol
//
// Parent and child synchronize over a SOCK_SEQPACKET socketpair, every
// message is an 8 bytes little-endian integer unless noted:
//
//   - child: unshare(CLONE_NEWUSER), send capability (1 if unshared, 0 otherwise)
//   - parent: write /proc/<pid>/uid_map and gid_map if capability is 1, send ack (0)
//   - child: switch to uid 0 / gid 0, execve (the socket is close_on_exec)
//   - parent: read EOF on successful execve
//
// A child failure at any step is sent as a ChildError record instead of the
// next message, and the child exits.
//
// unshare cgroup namespace requires kernel >= 4.6
// unshare pid / user namespaces requires kernel >= 3.8
package forkexec

// Package volume manages btrfs subvolumes through the btrfs command line
// tool. Images are read-only subvolumes and container file systems are
// writable snapshots of them.
package volume

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"code.cloudfoundry.org/commandrunner"
	"code.cloudfoundry.org/commandrunner/linux_command_runner"
	"code.cloudfoundry.org/lager/v3"

	"github.com/yuvaldolev/container/errdefs"
)

// ErrNotFound is returned by Locate when nothing exists at the path
var ErrNotFound = errors.New("volume not found")

// Volume is a handle to an existing btrfs subvolume
type Volume struct {
	Path string `json:"path"`
}

func (v Volume) String() string {
	return v.Path
}

// DefaultBtrfsBin is the btrfs tool looked up in PATH
const DefaultBtrfsBin = "btrfs"

// Store locates and snapshots subvolumes
type Store struct {
	Runner commandrunner.CommandRunner
	Logger lager.Logger

	// BtrfsBin is the btrfs tool, DefaultBtrfsBin when empty
	BtrfsBin string
}

// NewStore creates a store running btrfs on the host with logging
func NewStore(logger lager.Logger) *Store {
	return &Store{
		Runner:   linux_command_runner.New(),
		Logger:   logger,
		BtrfsBin: DefaultBtrfsBin,
	}
}

// Locate returns the subvolume at path
func (s *Store) Locate(path string) (Volume, error) {
	log := s.Logger.Session("locate", lager.Data{"path": path})

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Volume{}, errdefs.New(errdefs.KindImageNotFound, "locate", path, ErrNotFound)
		}
		return Volume{}, errdefs.New(errdefs.KindIO, "locate", path, err)
	}

	if _, err := s.run(log, s.btrfs("subvolume", "show", path)); err != nil {
		return Volume{}, errdefs.New(errdefs.KindIO, "btrfs subvolume show", path, err)
	}
	return Volume{Path: path}, nil
}

// Snapshot creates a writable snapshot of src at dst
func (s *Store) Snapshot(src Volume, dst string) (Volume, error) {
	log := s.Logger.Session("snapshot", lager.Data{"source": src.Path, "destination": dst})

	if _, err := os.Stat(filepath.Dir(dst)); err != nil {
		return Volume{}, errdefs.New(errdefs.KindIO, "snapshot", dst, err)
	}

	if _, err := s.run(log, s.btrfs("subvolume", "snapshot", src.Path, dst)); err != nil {
		return Volume{}, errdefs.New(errdefs.KindIO, "btrfs subvolume snapshot", dst, err)
	}
	return Volume{Path: dst}, nil
}

func (s *Store) btrfs(args ...string) *exec.Cmd {
	bin := s.BtrfsBin
	if bin == "" {
		bin = DefaultBtrfsBin
	}
	return exec.Command(bin, args...)
}

func (s *Store) run(log lager.Logger, cmd *exec.Cmd) (string, error) {
	runner := &LoggingRunner{CommandRunner: s.Runner, Logger: log}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := runner.Run(cmd); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

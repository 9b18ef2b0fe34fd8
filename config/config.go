// Package config loads the runtime settings from flags, the APP_ prefixed
// environment and a plain key value config file, in that priority.
package config

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"github.com/peterbourgon/ff/v3"

	"github.com/yuvaldolev/container/pkg/forkexec"
	"github.com/yuvaldolev/container/pkg/seccomp/libseccomp"
)

// Defaults
const (
	DefaultRootDir          = "/var/lib/container"
	DefaultConfigFile       = "config/default"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultLogLevel         = "info"

	EnvVarPrefix = "APP"
)

// Disk locates images and containers
type Disk struct {
	RootDir       string
	ImagesDir     string
	ContainersDir string
}

// UserNS is the host id range mapped to id 0 onwards in the container
type UserNS struct {
	Offset uint32
	Count  uint64
}

// Seccomp lists syscalls denied in the container
type Seccomp struct {
	Deny []string
}

// Settings is the runtime configuration, it is not modified after Load
type Settings struct {
	Disk             Disk
	UserNS           UserNS
	HandshakeTimeout time.Duration
	Seccomp          Seccomp
	LogLevel         string
}

// RegisterFlags binds the settings to flags in fs with their defaults
func (s *Settings) RegisterFlags(fs *flag.FlagSet) {
	fs.String("config", DefaultConfigFile, "config file (optional)")
	fs.StringVar(&s.Disk.RootDir, "disk.root-dir", DefaultRootDir, "root of the runtime state")
	fs.StringVar(&s.Disk.ImagesDir, "disk.images-dir", "", "image subvolumes directory (default <root-dir>/images)")
	fs.StringVar(&s.Disk.ContainersDir, "disk.containers-dir", "", "containers directory (default <root-dir>/containers)")
	fs.Func("userns.offset", "first host id mapped to id 0 (default 0)", uint32Setter(&s.UserNS.Offset))
	fs.Uint64Var(&s.UserNS.Count, "userns.count", forkexec.DefaultIDMapCount, "number of mapped ids")
	fs.DurationVar(&s.HandshakeTimeout, "handshake-timeout", DefaultHandshakeTimeout, "timeout of each wait for the container process during start up")
	fs.Var((*stringSlice)(&s.Seccomp.Deny), "seccomp.deny", "syscalls denied in the container, comma separated (repeatable)")
	fs.StringVar(&s.LogLevel, "log-level", DefaultLogLevel, "log level: debug, info, error or fatal")
}

// Options returns the ff options used to parse the settings flags
func Options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
		ff.WithEnvVarPrefix(EnvVarPrefix),
	}
}

// Load parses args, the environment and the config file into settings
func Load(name string, args []string) (*Settings, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	s := &Settings{}
	s.RegisterFlags(fs)
	if err := ff.Parse(fs, args, Options()...); err != nil {
		return nil, err
	}
	if err := s.Complete(); err != nil {
		return nil, err
	}
	return s, nil
}

// Complete fills the derived defaults and validates the settings
func (s *Settings) Complete() error {
	if s.Disk.ImagesDir == "" {
		s.Disk.ImagesDir = filepath.Join(s.Disk.RootDir, "images")
	}
	if s.Disk.ContainersDir == "" {
		s.Disk.ContainersDir = filepath.Join(s.Disk.RootDir, "containers")
	}
	return s.Validate()
}

// Validate checks the settings
func (s *Settings) Validate() error {
	for _, d := range []struct{ name, path string }{
		{"disk.root-dir", s.Disk.RootDir},
		{"disk.images-dir", s.Disk.ImagesDir},
		{"disk.containers-dir", s.Disk.ContainersDir},
	} {
		if !filepath.IsAbs(d.path) {
			return fmt.Errorf("config: %s must be an absolute path: %q", d.name, d.path)
		}
	}
	if s.UserNS.Count == 0 {
		return errors.New("config: userns.count must be positive")
	}
	if s.HandshakeTimeout < 0 {
		return errors.New("config: handshake-timeout must not be negative")
	}
	if _, err := lager.LogLevelFromString(s.LogLevel); err != nil {
		return fmt.Errorf("config: log-level: %w", err)
	}
	if err := libseccomp.CheckSyscallNames(s.Seccomp.Deny); err != nil {
		return fmt.Errorf("config: seccomp.deny: %w", err)
	}
	return nil
}

// IDMappings returns the id map of the user namespace
func (s *Settings) IDMappings() []forkexec.IDMapping {
	return forkexec.IDMap(s.UserNS.Offset, s.UserNS.Count)
}

// Level returns the lager log level
func (s *Settings) Level() lager.LogLevel {
	l, err := lager.LogLevelFromString(s.LogLevel)
	if err != nil {
		return lager.INFO
	}
	return l
}

type stringSlice []string

func (s *stringSlice) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(v string) error {
	for _, n := range strings.Split(v, ",") {
		if n = strings.TrimSpace(n); n != "" {
			*s = append(*s, n)
		}
	}
	return nil
}

func uint32Setter(p *uint32) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return err
		}
		*p = uint32(n)
		return nil
	}
}

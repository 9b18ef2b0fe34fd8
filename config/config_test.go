package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"code.cloudfoundry.org/lager/v3"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("test", nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Disk.RootDir != DefaultRootDir {
		t.Errorf("RootDir = %q", s.Disk.RootDir)
	}
	if s.Disk.ImagesDir != "/var/lib/container/images" {
		t.Errorf("ImagesDir = %q", s.Disk.ImagesDir)
	}
	if s.Disk.ContainersDir != "/var/lib/container/containers" {
		t.Errorf("ContainersDir = %q", s.Disk.ContainersDir)
	}
	if s.UserNS.Offset != 0 || s.UserNS.Count != 4294967295 {
		t.Errorf("UserNS = %+v", s.UserNS)
	}
	if s.HandshakeTimeout != 10*time.Second {
		t.Errorf("HandshakeTimeout = %v", s.HandshakeTimeout)
	}
	if len(s.Seccomp.Deny) != 0 {
		t.Errorf("Seccomp = %v", s.Seccomp.Deny)
	}
	if s.Level() != lager.INFO {
		t.Errorf("Level() = %v", s.Level())
	}
}

func TestLoad_Priority(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config")
	content := "disk.root-dir /srv/container\n" +
		"disk.images-dir /from/file\n" +
		"userns.offset 100000\n" +
		"seccomp.deny reboot\n" +
		"seccomp.deny swapon\n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APP_DISK_IMAGES_DIR", "/from/env")
	t.Setenv("APP_USERNS_COUNT", "65536")

	s, err := Load("test", []string{"-config", file, "-handshake-timeout", "2s"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Disk.ImagesDir != "/from/env" {
		t.Errorf("ImagesDir = %q, want env value", s.Disk.ImagesDir)
	}
	if s.Disk.ContainersDir != "/srv/container/containers" {
		t.Errorf("ContainersDir = %q", s.Disk.ContainersDir)
	}
	if s.UserNS.Offset != 100000 || s.UserNS.Count != 65536 {
		t.Errorf("UserNS = %+v", s.UserNS)
	}
	if s.HandshakeTimeout != 2*time.Second {
		t.Errorf("HandshakeTimeout = %v", s.HandshakeTimeout)
	}
	if len(s.Seccomp.Deny) != 2 || s.Seccomp.Deny[0] != "reboot" || s.Seccomp.Deny[1] != "swapon" {
		t.Errorf("Seccomp = %v", s.Seccomp.Deny)
	}

	m := s.IDMappings()
	if len(m) != 1 || m[0].ContainerID != 0 || m[0].HostID != 100000 || m[0].Size != 65536 {
		t.Errorf("IDMappings() = %+v", m)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := [][]string{
		{"-disk.root-dir", "relative"},
		{"-disk.containers-dir", "containers"},
		{"-userns.count", "0"},
		{"-userns.offset", "4294967296"},
		{"-handshake-timeout", "-1s"},
		{"-log-level", "verbose"},
		{"-seccomp.deny", "reboot,no_such_syscall"},
	}
	for _, args := range tests {
		if _, err := Load("test", args); err == nil {
			t.Errorf("Load(%v) succeeded, want error", args)
		}
	}
}

func TestDefaultFile(t *testing.T) {
	s, err := Load("test", []string{"-config", "default"})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Seccomp.Deny) == 0 {
		t.Error("default config denies no syscall")
	}
}

func TestLoad_EnvComma(t *testing.T) {
	t.Setenv("APP_DISK_ROOT_DIR", "/srv/a,b")
	t.Setenv("APP_SECCOMP_DENY", "reboot, swapon")

	s, err := Load("test", nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Disk.RootDir != "/srv/a,b" {
		t.Errorf("RootDir = %q, want the whole env value", s.Disk.RootDir)
	}
	if len(s.Seccomp.Deny) != 2 || s.Seccomp.Deny[0] != "reboot" || s.Seccomp.Deny[1] != "swapon" {
		t.Errorf("Seccomp = %v", s.Seccomp.Deny)
	}
}

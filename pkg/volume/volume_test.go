package volume_test

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"code.cloudfoundry.org/commandrunner/fake_command_runner"
	"code.cloudfoundry.org/commandrunner/linux_command_runner"
	"code.cloudfoundry.org/lager/v3"
	"code.cloudfoundry.org/lager/v3/lagertest"

	"github.com/yuvaldolev/container/errdefs"
	"github.com/yuvaldolev/container/pkg/volume"
)

const btrfsBin = "/fake/bin/btrfs"

func newStore(t *testing.T) (*volume.Store, *fake_command_runner.FakeCommandRunner, *lagertest.TestLogger) {
	t.Helper()
	runner := fake_command_runner.New()
	logger := lagertest.NewTestLogger("test")
	return &volume.Store{Runner: runner, Logger: logger, BtrfsBin: btrfsBin}, runner, logger
}

// hasExecuted reports whether path was run with exactly args
func hasExecuted(runner *fake_command_runner.FakeCommandRunner, path string, args ...string) bool {
	for _, cmd := range runner.ExecutedCommands() {
		if cmd.Path == path && slices.Equal(cmd.Args[1:], args) {
			return true
		}
	}
	return false
}

func TestLocate(t *testing.T) {
	store, runner, _ := newStore(t)
	dir := t.TempDir()

	v, err := store.Locate(dir)
	if err != nil {
		t.Fatal(err)
	}
	if v.Path != dir {
		t.Errorf("Path = %q, want %q", v.Path, dir)
	}
	if !hasExecuted(runner, btrfsBin, "subvolume", "show", dir) {
		t.Errorf("btrfs subvolume show %s was not executed", dir)
	}
}

func TestLocate_NotFound(t *testing.T) {
	store, runner, _ := newStore(t)

	_, err := store.Locate(filepath.Join(t.TempDir(), "missing"))
	if !errdefs.Is(err, errdefs.KindImageNotFound) {
		t.Fatalf("err = %v, want image not found", err)
	}
	if !errors.Is(err, volume.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if n := len(runner.ExecutedCommands()); n != 0 {
		t.Errorf("%d commands executed, want none", n)
	}
}

func TestLocate_NotSubvolume(t *testing.T) {
	store, runner, logger := newStore(t)
	dir := t.TempDir()

	runner.WhenRunning(fake_command_runner.CommandSpec{Path: btrfsBin}, func(cmd *exec.Cmd) error {
		cmd.Stderr.Write([]byte("ERROR: not a subvolume\n"))
		return errors.New("exit status 1")
	})

	_, err := store.Locate(dir)
	if !errdefs.Is(err, errdefs.KindIO) {
		t.Fatalf("err = %v, want io error", err)
	}

	logs := logger.Logs()
	if len(logs) != 2 {
		t.Fatalf("got %d log lines, want 2", len(logs))
	}
	if logs[1].Message != "test.locate.command.failed" || logs[1].LogLevel != lager.ERROR {
		t.Errorf("log = %+v", logs[1])
	}
	if logs[1].Data["stderr"] != "ERROR: not a subvolume\n" {
		t.Errorf("stderr = %v", logs[1].Data["stderr"])
	}
}

func TestSnapshot(t *testing.T) {
	store, runner, logger := newStore(t)
	dst := filepath.Join(t.TempDir(), "fs")

	v, err := store.Snapshot(volume.Volume{Path: "/images/alpine/latest"}, dst)
	if err != nil {
		t.Fatal(err)
	}
	if v.Path != dst {
		t.Errorf("Path = %q, want %q", v.Path, dst)
	}
	if !hasExecuted(runner, btrfsBin, "subvolume", "snapshot", "/images/alpine/latest", dst) {
		t.Errorf("btrfs subvolume snapshot to %s was not executed", dst)
	}

	msgs := logger.LogMessages()
	want := []string{"test.snapshot.command.starting", "test.snapshot.command.succeeded"}
	if len(msgs) != len(want) {
		t.Fatalf("log messages = %v, want %v", msgs, want)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("log message %d = %q, want %q", i, msgs[i], want[i])
		}
	}
}

func TestSnapshot_MissingParent(t *testing.T) {
	store, runner, _ := newStore(t)
	dst := filepath.Join(t.TempDir(), "missing", "fs")

	_, err := store.Snapshot(volume.Volume{Path: "/images/alpine/latest"}, dst)
	if !errdefs.Is(err, errdefs.KindIO) {
		t.Fatalf("err = %v, want io error", err)
	}
	if n := len(runner.ExecutedCommands()); n != 0 {
		t.Errorf("%d commands executed, want none", n)
	}
}

func TestSnapshot_CommandFailed(t *testing.T) {
	store, runner, _ := newStore(t)
	runner.WhenRunning(fake_command_runner.CommandSpec{Path: btrfsBin}, func(*exec.Cmd) error {
		return errors.New("exit status 1")
	})

	_, err := store.Snapshot(volume.Volume{Path: "/images/alpine/latest"}, filepath.Join(t.TempDir(), "fs"))
	if !errdefs.Is(err, errdefs.KindIO) {
		t.Fatalf("err = %v, want io error", err)
	}
}

func TestStore_DefaultBin(t *testing.T) {
	runner := fake_command_runner.New()
	store := &volume.Store{Runner: runner, Logger: lagertest.NewTestLogger("test")}

	if _, err := store.Locate(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	cmds := runner.ExecutedCommands()
	if len(cmds) != 1 || cmds[0].Args[0] != volume.DefaultBtrfsBin {
		t.Errorf("executed %v, want %s", cmds, volume.DefaultBtrfsBin)
	}
}

func TestLoggingRunner_Delegates(t *testing.T) {
	fake := fake_command_runner.New()
	logger := lagertest.NewTestLogger("test")
	runner := &volume.LoggingRunner{CommandRunner: fake, Logger: logger}

	if err := runner.Run(exec.Command("morgan-freeman")); err != nil {
		t.Fatal(err)
	}
	if !hasExecuted(fake, "morgan-freeman") {
		t.Error("command not run through the wrapped runner")
	}
	if msgs := logger.LogMessages(); len(msgs) != 2 || msgs[1] != "test.command.succeeded" {
		t.Errorf("log messages = %v", msgs)
	}
}

func TestLoggingRunner(t *testing.T) {
	logger := lagertest.NewTestLogger("test")
	runner := &volume.LoggingRunner{CommandRunner: linux_command_runner.New(), Logger: logger}

	if err := runner.Run(exec.Command("true")); err != nil {
		t.Skipf("cannot run true: %v", err)
	}
	logs := logger.Logs()
	if len(logs) != 2 {
		t.Fatalf("got %d log lines, want 2", len(logs))
	}
	if logs[0].Message != "test.command.starting" || logs[0].LogLevel != lager.DEBUG {
		t.Errorf("log = %+v", logs[0])
	}
	if _, ok := logs[1].Data["took"]; !ok {
		t.Errorf("log = %+v, want took", logs[1])
	}
}

// TestStore_Btrfs runs against a real btrfs file system given by
// CONTAINER_TEST_BTRFS
func TestStore_Btrfs(t *testing.T) {
	root := os.Getenv("CONTAINER_TEST_BTRFS")
	if root == "" || os.Geteuid() != 0 {
		t.Skip("requires root and CONTAINER_TEST_BTRFS")
	}
	dir, err := os.MkdirTemp(root, "volume-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "src")
	if err := exec.Command("btrfs", "subvolume", "create", src).Run(); err != nil {
		t.Fatal(err)
	}
	defer exec.Command("btrfs", "subvolume", "delete", src).Run()
	if err := os.WriteFile(filepath.Join(src, "file"), []byte("image"), 0644); err != nil {
		t.Fatal(err)
	}

	store := volume.NewStore(lagertest.NewTestLogger("test"))
	image, err := store.Locate(src)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Locate(dir); err == nil {
		t.Error("plain directory located as subvolume")
	}

	snap, err := store.Snapshot(image, filepath.Join(dir, "snap"))
	if err != nil {
		t.Fatal(err)
	}
	defer exec.Command("btrfs", "subvolume", "delete", snap.Path).Run()

	if err := os.WriteFile(filepath.Join(snap.Path, "file"), []byte("container"), 0644); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(src, "file"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "image" {
		t.Errorf("image content = %q, snapshot write leaked", b)
	}
}

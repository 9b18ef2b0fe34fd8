// Command container runs a command in an isolated container created from a
// btrfs image subvolume.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"code.cloudfoundry.org/lager/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/yuvaldolev/container/config"
)

const appName = "container"

// stageError is reported as "container: <stage>: <error>"
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return e.stage + ": " + e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}

func stage(name string, err error) error {
	return &stageError{stage: name, err: err}
}

// exitStatus makes the process exit with the status of the container
// command
type exitStatus int

func (e exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func main() {
	settings := &config.Settings{}
	rootFlagSet := flag.NewFlagSet(appName, flag.ExitOnError)
	settings.RegisterFlags(rootFlagSet)

	root := &ffcli.Command{
		Name:        appName,
		ShortUsage:  "container [flags] COMMAND",
		ShortHelp:   "container runs commands in namespaces on btrfs image snapshots",
		FlagSet:     rootFlagSet,
		Options:     config.Options(),
		Subcommands: []*ffcli.Command{newRunCommand(settings), newLsCommand(settings)},
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return flag.ErrHelp
			}
			return fmt.Errorf("'%s' is not a container command.\nSee 'container -help'", args[0])
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ParseAndRun(ctx, os.Args[1:])
	stop()

	var status exitStatus
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		fmt.Fprintln(os.Stderr, ffcli.DefaultUsageFunc(root))
		os.Exit(2)
	case errors.As(err, &status):
		os.Exit(int(status))
	default:
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// setup completes the settings once flags are parsed and creates the
// root logger
func setup(settings *config.Settings) (lager.Logger, error) {
	if err := settings.Complete(); err != nil {
		return nil, stage("config", err)
	}
	logger := lager.NewLogger(appName)
	logger.RegisterSink(lager.NewWriterSink(os.Stderr, settings.Level()))
	return logger, nil
}

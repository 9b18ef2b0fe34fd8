package main

import (
	"context"
	"errors"
	"flag"

	"code.cloudfoundry.org/lager/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/yuvaldolev/container/config"
	"github.com/yuvaldolev/container/container"
	"github.com/yuvaldolev/container/errdefs"
	"github.com/yuvaldolev/container/image"
	"github.com/yuvaldolev/container/pkg/seccomp"
	"github.com/yuvaldolev/container/pkg/seccomp/libseccomp"
	"github.com/yuvaldolev/container/pkg/volume"
	"github.com/yuvaldolev/container/runner"
	"github.com/yuvaldolev/container/runner/unshare"
)

func newRunCommand(settings *config.Settings) *ffcli.Command {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var envs arrayFlags
	fs.Var(&envs, "e", "Set environment variables (KEY=VALUE)")

	return &ffcli.Command{
		Name:       "run",
		ShortUsage: "container run [-e KEY=VALUE]... IMAGE COMMAND [ARG...]",
		ShortHelp:  "Create a container from IMAGE and run COMMAND in it",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) < 2 {
				return errors.New("'container run' requires at least 2 arguments")
			}
			logger, err := setup(settings)
			if err != nil {
				return err
			}
			return run(ctx, logger, settings, args[0], args[1:], envs)
		},
	}
}

func run(ctx context.Context, logger lager.Logger, settings *config.Settings, ref string, command, envs []string) error {
	// checked before anything is created on disk
	if len(command) == 0 {
		return stage("execute", errdefs.Errorf(errdefs.KindInvalidCommand, "execute", "empty command"))
	}

	var (
		filter seccomp.Filter
		err    error
	)
	if len(settings.Seccomp.Deny) > 0 {
		if filter, err = libseccomp.DenyList(settings.Seccomp.Deny).Build(); err != nil {
			return stage("seccomp", err)
		}
	}

	store := volume.NewStore(logger)

	img, err := image.Resolve(logger, store, ref, settings.Disk.ImagesDir)
	if err != nil {
		return stage("resolve", err)
	}

	c, err := container.Create(logger, store, img, settings.Disk.ContainersDir)
	if err != nil {
		return stage("create", err)
	}

	info := container.NewInfo(c, ref, command)
	r := &unshare.Runner{
		Container:        c,
		Args:             command,
		Env:              append(append([]string{}, unshare.DefaultEnv...), envs...),
		UIDMappings:      settings.IDMappings(),
		GIDMappings:      settings.IDMappings(),
		Seccomp:          filter,
		HandshakeTimeout: settings.HandshakeTimeout,
		Logger:           logger,
		SyncFunc: func(pid int) error {
			info.Pid = pid
			info.Status = container.StatusRunning
			return c.SaveInfo(info)
		},
	}
	info.Process = r.Process()
	info.Process.Seccomp = settings.Seccomp.Deny
	if err := c.SaveInfo(info); err != nil {
		return stage("create", err)
	}

	result, err := r.Run(ctx)
	logger.Debug("result", lager.Data{"id": c.ID, "result": result.String()})
	if err != nil && result.Status == runner.StatusRunnerError {
		info.Status = container.StatusFailed
		info.Error = err.Error()
		if serr := c.SaveInfo(info); serr != nil {
			logger.Error("save-info", serr)
		}
		return stage("execute", err)
	}

	info.Status = container.StatusExited
	info.ExitStatus = result.Code()
	if err := c.SaveInfo(info); err != nil {
		logger.Error("save-info", err)
	}
	if code := result.Code(); code != 0 {
		return exitStatus(code)
	}
	return nil
}

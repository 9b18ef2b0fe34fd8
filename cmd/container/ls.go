package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/yuvaldolev/container/config"
	"github.com/yuvaldolev/container/container"
)

const (
	maxPrintCmdLength       = 30
	truncatedPrintCmdLength = maxPrintCmdLength - 3 // Reserve space for "..."
)

func newLsCommand(settings *config.Settings) *ffcli.Command {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)

	return &ffcli.Command{
		Name:       "ls",
		ShortUsage: "container ls",
		ShortHelp:  "List containers",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if _, err := setup(settings); err != nil {
				return err
			}
			infos, err := container.List(settings.Disk.ContainersDir)
			if err != nil {
				return stage("ls", err)
			}
			printInfos(os.Stdout, infos)
			return nil
		},
	}
}

func printInfos(w io.Writer, infos []*container.Info) {
	fmt.Fprintf(w, "%-12s  %-8s  %-15s  %-8s  %-4s  %-20s  %s\n",
		"ID", "STATUS", "IMAGE", "PID", "EXIT", "CREATED", "COMMAND")

	for _, info := range infos {
		cmd := strings.Join(info.Command, " ")
		if len(cmd) > maxPrintCmdLength {
			cmd = cmd[:truncatedPrintCmdLength] + "..."
		}
		created := ""
		if !info.CreatedAt.IsZero() {
			created = info.CreatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%-12s  %-8s  %-15s  %-8d  %-4d  %-20s  %s\n",
			info.ID, info.Status, info.Image, info.Pid, info.ExitStatus, created, cmd)
	}
}

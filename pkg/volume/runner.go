package volume

import (
	"bytes"
	"io"
	"os/exec"
	"time"

	"code.cloudfoundry.org/commandrunner"
	"code.cloudfoundry.org/lager/v3"
)

// LoggingRunner logs every command run through the wrapped runner
type LoggingRunner struct {
	commandrunner.CommandRunner
	Logger lager.Logger
}

// Run runs cmd and logs its argv, duration and output on failure
func (r *LoggingRunner) Run(cmd *exec.Cmd) error {
	logger := r.Logger.Session("command", lager.Data{"argv": cmd.Args})

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(cmd.Stdout, &stdout)
	cmd.Stderr = tee(cmd.Stderr, &stderr)

	started := time.Now()
	logger.Debug("starting")

	err := r.CommandRunner.Run(cmd)
	took := time.Since(started).String()
	if err != nil {
		logger.Error("failed", err, lager.Data{
			"took":   took,
			"stdout": stdout.String(),
			"stderr": stderr.String(),
		})
		return err
	}

	logger.Debug("succeeded", lager.Data{"took": took})
	return nil
}

func tee(w io.Writer, buf *bytes.Buffer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(w, buf)
}

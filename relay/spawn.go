package relay

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// Spawner creates a worker context and returns the connection to it.
type Spawner interface {
	Spawn(ctx context.Context) (io.ReadWriteCloser, error)
}

// SpawnFunc adapts a function to the [Spawner] interface.
type SpawnFunc func(ctx context.Context) (io.ReadWriteCloser, error)

func (f SpawnFunc) Spawn(ctx context.Context) (io.ReadWriteCloser, error) { return f(ctx) }

// InProcess runs the worker in a goroutine, connected through an
// in-memory pipe.
type InProcess struct {
	Extractor Extractor
	Logger    *logrus.Logger
}

func (s InProcess) Spawn(context.Context) (io.ReadWriteCloser, error) {
	if s.Extractor == nil {
		return nil, fmt.Errorf("relay: in-process worker has no extractor")
	}
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		// The worker lives until the client closes the pipe, independent of
		// the request that caused it to be spawned.
		if err := Serve(context.Background(), server, s.Extractor, s.Logger); err != nil && s.Logger != nil {
			s.Logger.WithError(err).Warn("in-process worker stopped")
		}
	}()
	return client, nil
}

// ProcessSpawner runs the worker as a child process speaking the relay protocol
// on its stdin and stdout, typically "tdsum worker".
type ProcessSpawner struct {
	Path string
	Args []string
	// Env is the child's environment; nil inherits the parent's.
	Env []string
	// Stderr receives the child's logs. Defaults to os.Stderr.
	Stderr io.Writer
	// ExitTimeout bounds how long Close waits before killing the child.
	// Defaults to 5 seconds.
	ExitTimeout time.Duration
}

func (p ProcessSpawner) Spawn(context.Context) (io.ReadWriteCloser, error) {
	// Not CommandContext: the worker outlives the spawning request.
	cmd := exec.Command(p.Path, p.Args...)
	cmd.Env = p.Env
	cmd.Stderr = p.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("relay: worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("relay: worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("relay: starting worker %s: %w", p.Path, err)
	}

	timeout := p.ExitTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &processConn{cmd: cmd, stdin: stdin, stdout: stdout, exitTimeout: timeout}, nil
}

type processConn struct {
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      io.ReadCloser
	exitTimeout time.Duration
}

func (c *processConn) Read(p []byte) (int, error)  { return c.stdout.Read(p) }
func (c *processConn) Write(p []byte) (int, error) { return c.stdin.Write(p) }

// Close signals EOF to the worker and waits for it to exit, killing it if
// it does not exit in time.
func (c *processConn) Close() error {
	_ = c.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(c.exitTimeout):
		_ = c.cmd.Process.Kill()
		return <-done
	}
}

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/juls0730/fluxops/models"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultKillGrace      = 5 * time.Second

	// exit status of coreutils/busybox timeout(1) when the limit was hit
	timeoutExitCode = 124

	// extra time the client waits for the remote timeout(1) to report back
	clientSlack = 5 * time.Second
)

type SSHConfig struct {
	KnownHostsPath string        `mapstructure:"known_hosts"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	KillGrace      time.Duration `mapstructure:"kill_grace"`
}

func (c SSHConfig) withDefaults() SSHConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}

	if c.KillGrace <= 0 {
		c.KillGrace = DefaultKillGrace
	}

	return c
}

// SSHExecutor opens a fresh connection for every command.
type SSHExecutor struct {
	config SSHConfig
}

func NewSSHExecutor(config SSHConfig) *SSHExecutor {
	return &SSHExecutor{config: config.withDefaults()}
}

func (e *SSHExecutor) clientConfig(server models.Server) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if server.PrivateKeyPath != "" {
		key, err := os.ReadFile(server.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %v", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %v", err)
		}

		auth = append(auth, ssh.PublicKeys(signer))
	}

	if server.Password != "" {
		auth = append(auth, ssh.Password(server.Password))
	}

	if len(auth) == 0 {
		return nil, fmt.Errorf("no credentials configured for server %s", server.Host)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if e.config.KnownHostsPath != "" {
		cb, err := knownhosts.New(e.config.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %v", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            server.User(),
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         e.config.ConnectTimeout,
	}, nil
}

func (e *SSHExecutor) dial(ctx context.Context, server models.Server) (*ssh.Client, error) {
	config, err := e.clientConfig(server)
	if err != nil {
		return nil, err
	}

	addr := server.Address()
	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// bound the handshake, the deadline is cleared once the session is up
	if err := conn.SetDeadline(time.Now().Add(config.Timeout)); err != nil {
		conn.Close()
		return nil, err
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return nil, err
	}

	return ssh.NewClient(c, chans, reqs), nil
}

// wrapTimeout makes the remote host enforce the limit itself so the process
// dies even if this side loses the connection.
func wrapTimeout(command string, timeout, grace time.Duration) string {
	return fmt.Sprintf("timeout -k %d %d sh -c %s", ceilSeconds(grace), ceilSeconds(timeout), Quote(command))
}

func ceilSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}

	return secs
}

func (e *SSHExecutor) execute(ctx context.Context, server models.Server, req request) (CommandResult, error) {
	start := time.Now()

	client, err := e.dial(ctx, server)
	if err != nil {
		return CommandResult{ExitCode: -1}, fmt.Errorf("%w: %s: %v", ErrConnectivity, server.Address(), err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return CommandResult{ExitCode: -1}, fmt.Errorf("%w: failed to open session: %v", ErrConnectivity, err)
	}
	defer session.Close()

	var stdout, stderr syncBuffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if req.stdin != nil {
		session.Stdin = bytes.NewReader(req.stdin)
	}

	if req.interactive {
		modes := ssh.TerminalModes{
			ssh.ECHO:          0,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		if err := session.RequestPty("xterm", 40, 120, modes); err != nil {
			return CommandResult{ExitCode: -1}, fmt.Errorf("%w: failed to request pty: %v", ErrConnectivity, err)
		}
	}

	command := req.command
	waitCtx := ctx
	if req.timeout > 0 {
		command = wrapTimeout(command, req.timeout, e.config.KillGrace)

		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, req.timeout+e.config.KillGrace+clientSlack)
		defer cancel()
	}

	started := time.Now()
	if err := session.Start(command); err != nil {
		return CommandResult{ExitCode: -1}, fmt.Errorf("%w: failed to start command: %v", ErrConnectivity, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err = <-done:
	case <-waitCtx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		client.Close()

		res := CommandResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			TimedOut: req.timeout > 0,
			Duration: time.Since(start),
		}
		if req.timeout > 0 && ctx.Err() == nil {
			return res, &TimeoutError{After: req.timeout}
		}

		return res, fmt.Errorf("command cancelled: %w", ctx.Err())
	}

	res := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitStatus()
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	if req.timeout > 0 && hitRemoteTimeout(res.ExitCode, time.Since(started), req.timeout) {
		res.TimedOut = true
		return res, &TimeoutError{After: req.timeout}
	}

	return res, nil
}

// hitRemoteTimeout tells a command killed by timeout(1) from one that exited
// 124 by itself. The remote clock starts after ours, so a real timeout is
// never observed before the limit has passed here.
func hitRemoteTimeout(exitCode int, elapsed, limit time.Duration) bool {
	return exitCode == timeoutExitCode && elapsed >= limit
}

// syncBuffer lets the session copy goroutines write while a timed out call
// reads whatever arrived so far.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

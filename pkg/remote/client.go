package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/afraznein/ktpfleet/pkg/types"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultDialTimeout matches the connect timeout of the original tooling
const DefaultDialTimeout = 30 * time.Second

// Output captures the result of a remote command
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Session is the remote-host surface the deploy and restart code needs.
// *Client implements it; tests substitute fakes.
type Session interface {
	Run(ctx context.Context, cmd string) (Output, error)
	Upload(localPath, remotePath string, mode os.FileMode) error
	WriteFile(remotePath string, data []byte, mode os.FileMode) error
	MkdirAll(path string) error
	Exists(path string) (bool, error)
	BackupFile(remotePath, backupDir string) error
	Close() error
}

// DialFunc opens a session to a cluster host. Indirection point for tests.
type DialFunc func(cluster *types.Cluster) (Session, error)

// Options tunes connection behavior
type Options struct {
	// Timeout for the TCP connect + handshake
	Timeout time.Duration

	// KnownHostsPath enables host key verification against the given
	// known_hosts file. Empty means accept any host key, matching the
	// behavior the fleet has always run with.
	KnownHostsPath string

	// KeyPaths overrides the default private key search paths
	KeyPaths []string
}

// Client is an SSH + SFTP connection to one cluster host
type Client struct {
	cluster *types.Cluster
	ssh     *ssh.Client
	sftp    *sftp.Client
}

// Dial connects to the cluster host with default options
func Dial(cluster *types.Cluster) (Session, error) {
	return DialWithOptions(cluster, Options{})
}

// DialWithOptions connects to the cluster host
func DialWithOptions(cluster *types.Cluster, opts Options) (Session, error) {
	if cluster.Host == "" {
		return nil, fmt.Errorf("cluster %s: no host configured", cluster.Name)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // fleet hosts are provisioned by us
	if opts.KnownHostsPath != "" {
		cb, err := knownhosts.New(opts.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	auth, err := authMethods(cluster, opts.KeyPaths)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            cluster.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(cluster.Host, "22")
	sshClient, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to open sftp: %w", err)
	}

	return &Client{cluster: cluster, ssh: sshClient, sftp: sftpClient}, nil
}

// authMethods builds the auth chain: password when configured,
// otherwise private keys from the default (or overridden) locations.
func authMethods(cluster *types.Cluster, keyPaths []string) ([]ssh.AuthMethod, error) {
	if cluster.Password != "" {
		return []ssh.AuthMethod{ssh.Password(cluster.Password)}, nil
	}

	if len(keyPaths) == 0 {
		keyPaths = defaultKeyPaths()
	}

	var signers []ssh.Signer
	for _, path := range keyPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}

	if len(signers) == 0 {
		return nil, fmt.Errorf("cluster %s: no password and no usable private key", cluster.Name)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signers...)}, nil
}

func defaultKeyPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
}

// Run executes a command on the remote host, capturing output and exit
// status. A non-zero exit is reported in Output, not as an error; errors
// mean the command could not be run at all.
func (c *Client) Run(ctx context.Context, cmd string) (Output, error) {
	session, err := c.ssh.NewSession()
	if err != nil {
		return Output{}, fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		// Best effort: signal then tear the session down
		_ = session.Signal(ssh.SIGKILL)
		return Output{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1}, ctx.Err()
	case err := <-done:
		out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				out.ExitCode = exitErr.ExitStatus()
				return out, nil
			}
			return out, fmt.Errorf("command failed: %w", err)
		}
		return out, nil
	}
}

// Upload copies a local file to the remote path via SFTP, creating
// parent directories as needed.
func (c *Client) Upload(localPath, remotePath string, mode os.FileMode) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	if err := c.MkdirAll(remoteDir(remotePath)); err != nil {
		return err
	}

	dst, err := c.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", remotePath, err)
	}

	if _, err := dst.ReadFrom(src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", remotePath, err)
	}

	if mode != 0 {
		if err := c.sftp.Chmod(remotePath, mode); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", remotePath, err)
		}
	}
	return nil
}

// WriteFile writes in-memory data (rendered templates, generated
// configs) to the remote path via SFTP.
func (c *Client) WriteFile(remotePath string, data []byte, mode os.FileMode) error {
	if err := c.MkdirAll(remoteDir(remotePath)); err != nil {
		return err
	}

	dst, err := c.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", remotePath, err)
	}
	if _, err := dst.Write(data); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", remotePath, err)
	}

	if mode != 0 {
		if err := c.sftp.Chmod(remotePath, mode); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", remotePath, err)
		}
	}
	return nil
}

// MkdirAll creates the remote directory hierarchy (mkdir -p semantics)
func (c *Client) MkdirAll(path string) error {
	if path == "" || path == "/" || path == "." {
		return nil
	}
	if err := c.sftp.MkdirAll(path); err != nil {
		return fmt.Errorf("failed to mkdir %s: %w", path, err)
	}
	return nil
}

// Exists reports whether the remote path exists
func (c *Client) Exists(path string) (bool, error) {
	_, err := c.sftp.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// BackupFile copies an existing remote file into backupDir as
// <name>.<timestamp>.bak before it gets overwritten. Missing source
// files are not an error: there is nothing to back up.
func (c *Client) BackupFile(remotePath, backupDir string) error {
	exists, err := c.Exists(remotePath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", remotePath, err)
	}
	if !exists {
		return nil
	}

	if err := c.MkdirAll(backupDir); err != nil {
		return err
	}

	backupPath := backupDir + "/" + BackupName(remoteBase(remotePath), time.Now())
	out, err := c.Run(context.Background(), fmt.Sprintf("cp %s %s", remotePath, backupPath))
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("backup cp exited %d: %s", out.ExitCode, out.Stderr)
	}
	return nil
}

// Close tears down the SFTP and SSH connections
func (c *Client) Close() error {
	if c.sftp != nil {
		c.sftp.Close()
	}
	return c.ssh.Close()
}

// BackupName builds the timestamped backup filename for a remote file
func BackupName(name string, now time.Time) string {
	return fmt.Sprintf("%s.%s.bak", name, now.Format("20060102_150405"))
}

// Remote paths are always forward-slash; filepath helpers would break
// when cross-compiled, so do it by hand.
func remoteDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "."
}

func remoteBase(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

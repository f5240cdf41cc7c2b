package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/fleetdash/fleetdash/internal/config"
	"github.com/fleetdash/fleetdash/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Client wraps an authenticated SSH connection to one registered server.
type Client struct {
	*ssh.Client
	name    string
	address string
}

// DefaultDialTimeout bounds the TCP dial plus SSH handshake.
const DefaultDialTimeout = 10 * time.Second

// Dial opens an authenticated connection using the descriptor's single
// configured auth method. The descriptor is read once; credentials are not
// retained past this call.
func Dial(srv *config.Server, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	auth, err := authMethods(srv)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User: srv.Username,
		Auth: auth,
		// Fleet hosts are operator-registered; host-key pinning is not
		// part of the registry.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		Timeout:         timeout,
	}

	address := srv.Addr()
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConn,
			fmt.Sprintf("Can't reach '%s' at %s", srv.Name, address),
			suggestionForDialError(err))
	}

	// The ClientConfig timeout only covers the TCP dial inside ssh.Dial;
	// set a deadline so a stalled banner exchange can't hang the caller.
	_ = conn.SetDeadline(time.Now().Add(timeout))

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshConfig)
	if err != nil {
		conn.Close()
		if isAuthError(err) {
			return nil, errors.WrapWithCode(err, errors.ErrAuth,
				fmt.Sprintf("Server '%s' rejected the credentials", srv.Name),
				"Check the username and password or key_file in servers.yaml")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConn,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", srv.Name),
			"Try connecting manually: ssh "+srv.Username+"@"+srv.Host)
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		name:    srv.Name,
		address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// Name returns the server name this client is connected to.
func (c *Client) Name() string {
	return c.name
}

// Addr returns the resolved host:port address.
func (c *Client) Addr() string {
	return c.address
}

// authMethods builds the auth list from the descriptor's one configured variant.
func authMethods(srv *config.Server) ([]ssh.AuthMethod, error) {
	switch srv.Auth() {
	case config.AuthKeyFile:
		keyAuth, err := keyFileAuth(srv.KeyFile)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				return nil, errors.WrapWithCode(err, errors.ErrAuth,
					fmt.Sprintf("Key for server '%s' is passphrase protected", srv.Name),
					"Decrypt it or use an unencrypted deploy key: ssh-keygen -p -f "+srv.KeyFile)
			}
			return nil, errors.WrapWithCode(err, errors.ErrAuth,
				fmt.Sprintf("Can't load key file for server '%s': %s", srv.Name, srv.KeyFile),
				"Check the path exists and is readable")
		}
		return []ssh.AuthMethod{keyAuth}, nil

	case config.AuthPassword:
		// Some sshd setups only offer keyboard-interactive; answer every
		// prompt with the configured password, like paramiko does.
		return []ssh.AuthMethod{
			ssh.Password(srv.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = srv.Password
				}
				return answers, nil
			}),
		}, nil

	default:
		return nil, errors.New(errors.ErrAuth,
			fmt.Sprintf("Server '%s' has no credentials configured", srv.Name),
			"Set either password or key_file in servers.yaml")
	}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missErr *ssh.PassphraseMissingError
		if stderrors.As(err, &missErr) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED")) ||
		bytes.Contains(data, []byte("Proc-Type: 4,ENCRYPTED"))
}

// isAuthError reports whether a handshake error is a credentials rejection
// rather than a transport problem.
func isAuthError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods remain")
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is sshd running on that box?"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

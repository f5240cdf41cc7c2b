package forward

import (
	"fmt"
	"os"
	osexec "os/exec"
	"strconv"

	"github.com/fleetdash/fleetdash/internal/config"
)

// CommandBuilder constructs the child process that bridges a local port to a
// remote port. Injected so supervisor tests can substitute a harmless
// process for the real ssh client.
type CommandBuilder func(srv *config.Server, localPort, remotePort int) *osexec.Cmd

// buildSSHCommand builds the default bridge: the system ssh client in
// no-command local-forward mode. Password auth goes through sshpass reading
// the SSHPASS variable from the child's environment; the secret never
// appears in the argv.
func buildSSHCommand(srv *config.Server, localPort, remotePort int) *osexec.Cmd {
	port := srv.Port
	if port == 0 {
		port = config.DefaultSSHPort
	}

	args := []string{
		"-N",
		"-L", fmt.Sprintf("%d:localhost:%d", localPort, remotePort),
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "ServerAliveInterval=60",
		"-o", "ExitOnForwardFailure=yes",
		"-p", strconv.Itoa(port),
	}

	if srv.Auth() == config.AuthKeyFile {
		args = append(args, "-i", srv.KeyFile, "-o", "BatchMode=yes")
	}

	args = append(args, fmt.Sprintf("%s@%s", srv.Username, srv.Host))

	if srv.Auth() == config.AuthPassword {
		cmd := osexec.Command("sshpass", append([]string{"-e", "ssh"}, args...)...)
		cmd.Env = append(os.Environ(), "SSHPASS="+srv.Password)
		return cmd
	}

	return osexec.Command("ssh", args...)
}

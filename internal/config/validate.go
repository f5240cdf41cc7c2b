package config

import (
	"fmt"
	"regexp"

	"github.com/fleetdash/fleetdash/internal/errors"
)

// Server names end up in log lines and forward IDs, so keep them shell-safe.
var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// validateServer checks a single descriptor on load. A descriptor with
// neither auth variant is allowed through here and fails at connect time,
// so that a half-configured host doesn't block loading the rest of the fleet.
func validateServer(srv *Server) error {
	if srv == nil {
		return errors.New(errors.ErrConfig, "Empty server entry", "Remove the stray '-' from the servers list")
	}
	if srv.Name == "" {
		return errors.New(errors.ErrConfig,
			"Server entry is missing a name",
			"Every entry under 'servers:' needs a unique name")
	}
	if !nameRe.MatchString(srv.Name) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid server name %q", srv.Name),
			"Use letters, digits, '.', '_' and '-' only")
	}
	if srv.Host == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server %q has no host", srv.Name),
			"Set 'host:' to the machine's address")
	}
	if srv.Username == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server %q has no username", srv.Name),
			"Set 'username:' to the SSH login user")
	}
	if srv.Port < 0 || srv.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server %q has invalid port %d", srv.Name, srv.Port),
			"Ports must be between 1 and 65535 (or omitted for 22)")
	}
	if srv.Password != "" && srv.KeyFile != "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server %q has both password and key_file", srv.Name),
			"Pick one authentication method per server")
	}
	return nil
}

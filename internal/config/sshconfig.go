package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// resolveSSHConfig builds a descriptor for an alias defined in ~/.ssh/config.
// Only hosts the config actually knows about resolve; a bare miss returns
// false rather than inventing a descriptor for an arbitrary hostname.
func resolveSSHConfig(alias string) (*Server, bool) {
	path := filepath.Join(homeDir(), ".ssh", "config")
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return nil, false
	}

	srv := &Server{Name: alias, Host: alias, Port: DefaultSSHPort}

	found := false
	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		srv.Host = hostname
		found = true
	}
	if port, _ := cfg.Get(alias, "Port"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			srv.Port = p
			found = true
		}
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		srv.Username = user
		found = true
	}
	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		srv.KeyFile = expandPath(identity)
		found = true
	}

	if !found {
		return nil, false
	}
	if srv.Username == "" {
		srv.Username = currentUser()
	}
	return srv, true
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

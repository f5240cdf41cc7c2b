package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fleetdash/fleetdash/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default servers file name.
	ConfigFileName = "servers.yaml"
	// GlobalConfigDir is the directory for the global servers file.
	GlobalConfigDir = ".config/fleetdash"
)

// FileStore is a Store backed by a YAML file. Descriptors are kept in memory
// and re-read on Reload; lookups never touch the filesystem.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	servers map[string]*Server
	order   []string

	// SSHConfigFallback resolves names absent from the YAML file against
	// ~/.ssh/config. Off by default; the CLI enables it.
	SSHConfigFallback bool
}

// Load reads the servers file at path and returns a FileStore.
func Load(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		servers: make(map[string]*Server),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadOrEmpty loads path if it exists, or returns an empty store bound to
// that path. Useful for 'servers add' before any config exists.
func LoadOrEmpty(path string) (*FileStore, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &FileStore{
			path:    path,
			servers: make(map[string]*Server),
		}, nil
	}
	return Load(path)
}

// Find locates the servers file: explicit path, ./servers.yaml, then
// ~/.config/fleetdash/servers.yaml. Returns empty string if none exists.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Specified servers file not found: "+explicit,
				"Check the path is correct")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err == nil {
		local := filepath.Join(cwd, ConfigFileName)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, GlobalConfigDir, ConfigFileName)
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// Reload re-reads the servers file, replacing the in-memory descriptor set.
func (s *FileStore) Reload() error {
	v := viper.New()
	v.SetConfigFile(s.path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Servers file not found: "+s.path,
				"Create one with: fleetdash servers add")
		}
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read servers file: "+s.path,
			"Check the file is valid YAML")
	}

	var raw struct {
		Servers []*Server `mapstructure:"servers"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to parse servers file: "+s.path,
			"Check the file matches the servers.yaml schema")
	}

	servers := make(map[string]*Server, len(raw.Servers))
	order := make([]string, 0, len(raw.Servers))
	for _, srv := range raw.Servers {
		if err := validateServer(srv); err != nil {
			return err
		}
		if _, dup := servers[srv.Name]; dup {
			return errors.New(errors.ErrConfig,
				"Duplicate server name: "+srv.Name,
				"Server names must be unique in "+s.path)
		}
		servers[srv.Name] = srv
		order = append(order, srv.Name)
	}

	s.mu.Lock()
	s.servers = servers
	s.order = order
	s.mu.Unlock()
	return nil
}

// GetServer returns the descriptor for name. When SSHConfigFallback is on,
// names absent from the YAML file are resolved against ~/.ssh/config.
func (s *FileStore) GetServer(name string) (*Server, bool) {
	s.mu.RLock()
	srv, ok := s.servers[name]
	s.mu.RUnlock()
	if ok {
		return srv, true
	}
	if s.SSHConfigFallback {
		return resolveSSHConfig(name)
	}
	return nil, false
}

// ListServers returns all descriptors in file order.
func (s *FileStore) ListServers() []*Server {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Server, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.servers[name])
	}
	return out
}

// Path returns the file this store reads from and writes to.
func (s *FileStore) Path() string {
	return s.path
}

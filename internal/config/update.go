package config

import (
	"os"
	"path/filepath"

	"github.com/fleetdash/fleetdash/internal/errors"
	"gopkg.in/yaml.v3"
)

// fileSchema is the on-disk shape of servers.yaml.
type fileSchema struct {
	Servers []*Server `yaml:"servers"`
}

// Add validates and inserts a new descriptor, then writes the file back.
func (s *FileStore) Add(srv *Server) error {
	if err := validateServer(srv); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.servers[srv.Name]; exists {
		s.mu.Unlock()
		return errors.New(errors.ErrConfig,
			"Server '"+srv.Name+"' already exists",
			"Remove it first with: fleetdash servers rm "+srv.Name)
	}
	s.servers[srv.Name] = srv
	s.order = append(s.order, srv.Name)
	s.mu.Unlock()

	return s.Save()
}

// Remove deletes a descriptor by name and writes the file back.
// Returns false if the name is unknown.
func (s *FileStore) Remove(name string) (bool, error) {
	s.mu.Lock()
	if _, exists := s.servers[name]; !exists {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.servers, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	return true, s.Save()
}

// Save writes the current descriptor set back to the store's file.
// File mode is 0600: the file may contain passwords.
func (s *FileStore) Save() error {
	s.mu.RLock()
	out := fileSchema{Servers: make([]*Server, 0, len(s.order))}
	for _, name := range s.order {
		out.Servers = append(out.Servers, s.servers[name])
	}
	s.mu.RUnlock()

	data, err := yaml.Marshal(&out)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to encode servers file", "")
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to create config directory: "+dir, "Check directory permissions")
		}
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write servers file: "+s.path, "Check file permissions")
	}
	return nil
}

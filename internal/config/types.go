package config

import (
	"fmt"
	"net"
)

// DefaultSSHPort is used when a server entry omits the port.
const DefaultSSHPort = 22

// AuthKind identifies which authentication variant a server carries.
type AuthKind int

const (
	// AuthNone means the descriptor has no usable credentials.
	AuthNone AuthKind = iota
	// AuthPassword means password authentication.
	AuthPassword
	// AuthKeyFile means private-key-file authentication.
	AuthKeyFile
)

// Server describes one registered host: where it is and how to log in.
// Exactly one of Password and KeyFile should be set; key auth wins when a
// stale config carries both (validation rejects that case on load).
type Server struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Host        string `yaml:"host" mapstructure:"host"`
	Port        int    `yaml:"port,omitempty" mapstructure:"port"`
	Username    string `yaml:"username" mapstructure:"username"`
	Password    string `yaml:"password,omitempty" mapstructure:"password"`
	KeyFile     string `yaml:"key_file,omitempty" mapstructure:"key_file"`
	GPUEnabled  bool   `yaml:"gpu_enabled,omitempty" mapstructure:"gpu_enabled"`
	Description string `yaml:"description,omitempty" mapstructure:"description"`
}

// Addr returns the host:port dial address.
func (s *Server) Addr() string {
	port := s.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", port))
}

// Auth reports which authentication variant the descriptor carries.
func (s *Server) Auth() AuthKind {
	switch {
	case s.KeyFile != "":
		return AuthKeyFile
	case s.Password != "":
		return AuthPassword
	default:
		return AuthNone
	}
}

// Store is the descriptor-store contract the core consumes. The connection
// pool and tunnel supervisor read descriptors per call and never cache
// credentials beyond one connection attempt.
type Store interface {
	// GetServer returns the descriptor for name, or false if unknown.
	GetServer(name string) (*Server, bool)

	// ListServers returns all known descriptors.
	ListServers() []*Server
}

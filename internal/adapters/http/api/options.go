package api

import (
	"strings"

	"github.com/okian/cxdiag/pkg/logger"
)

// Option configures the Server.
type Option func(*Server)

// WithTenantResolver replaces the header based tenant resolver.
func WithTenantResolver(r TenantResolver) Option {
	return func(s *Server) {
		if r != nil {
			s.tenants = r
		}
	}
}

// WithTenantHeader reads the tenant from the named header.
func WithTenantHeader(header string) Option {
	return func(s *Server) {
		if h := strings.TrimSpace(header); h != "" {
			s.tenants = HeaderTenantResolver{Header: h}
		}
	}
}

// WithAdminToken sets the bearer token accepted on admin routes.
// An empty token disables them.
func WithAdminToken(token string) Option {
	return func(s *Server) {
		s.adminToken = token
	}
}

// WithMaxBodyBytes limits request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

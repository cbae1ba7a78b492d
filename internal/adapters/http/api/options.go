package api

import "github.com/mcronin4/scrappers-cup/pkg/logger"

type serverConfig struct {
	jwtSecret    []byte
	maxBodyBytes int64
	logger       logger.Logger
}

// Option configures the API server.
type Option func(*serverConfig)

// WithJWTSecret requires an HS256 bearer token on every mutating route. The
// token's subject becomes the recorded actor. An empty secret disables auth.
func WithJWTSecret(secret string) Option {
	return func(c *serverConfig) {
		c.jwtSecret = []byte(secret)
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxBodyBytes limits request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

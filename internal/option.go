package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	logOutput  io.Writer
	clearCache bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the process log. The MCP server logs to stderr
// because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithClearCache drops every cached response during RunSync.
func WithClearCache(clear bool) Option {
	return func(a *application) {
		a.clearCache = clear
	}
}

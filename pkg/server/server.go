package server

import (
	internalserver "github.com/SmitUplenchwar2687/Beacon/internal/server"
)

// Server is the Beacon collector.
type Server = internalserver.Server

// Options configures a Server.
type Options = internalserver.Options

// Hub streams error and report frames to WebSocket clients.
type Hub = internalserver.Hub

// Frame is one message pushed to WebSocket clients.
type Frame = internalserver.Frame

// Admission is the per-client request rate limit.
type Admission = internalserver.Admission

// DashboardHTML is the embedded live error dashboard.
const DashboardHTML = internalserver.DashboardHTML

// New creates a new Beacon collector.
func New(opts Options) *Server {
	return internalserver.New(opts)
}

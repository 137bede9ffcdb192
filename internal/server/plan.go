package server

import (
	"path"
	"strings"

	"fridamgr/internal/config"
)

// Plan captures where the server lives on the device and how it is addressed.
// It is derived from configuration once per invocation and never persisted.
type Plan struct {
	RemotePath  string
	RemoteLog   string
	ProcessName string
	Port        int
}

// DerivePlan computes the remote paths from the android configuration. A push
// path with a trailing separator is a directory and the server name is
// appended; any other push path is used verbatim as the full remote path.
func DerivePlan(cfg config.AndroidConfig) Plan {
	name := cfg.ServerName
	remote := cfg.PushPath

	if strings.HasSuffix(remote, "/") {
		if name == "" {
			name = config.DefaultServerName
		}
		remote += name
	} else if name == "" {
		name = path.Base(remote)
	}

	return Plan{
		RemotePath:  remote,
		RemoteLog:   remote + ".log",
		ProcessName: name,
		Port:        cfg.ServerPort,
	}
}

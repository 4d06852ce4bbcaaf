// Package config resolves a node's external configuration (spec section 6):
// the five raft_* options plus the ambient logging, metrics, and naming
// bind options, read from cobra/pflag-bound command-line flags.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexuscore/nexuscore/internal/raftcluster"
	"github.com/nexuscore/nexuscore/pkg/log"
)

// Node is everything needed to wire up and run one cluster node.
type Node struct {
	Raft raftcluster.Config

	NamingBindAddr string
	MetricsAddr    string

	LogLevel log.Level
	LogJSON  bool

	// BootstrapConfigFile, if set, names a YAML manifest of config entries
	// seeded into the store once after a fresh single-node bootstrap.
	BootstrapConfigFile string
}

// BindFlags registers every node flag on cmd, defaulting to a standalone
// single-node setup so `nexuscore agent start` works with no flags at all.
func BindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("raft-node-id", "node-1", "unique id for this node's Raft identity")
	f.Bool("raft-auto-init", true, "bootstrap a new single-node cluster if no existing Raft state is found")
	f.String("raft-join-addr", "", "address of an existing cluster member to join, used only on first start")
	f.String("config-db-dir", "./nexuscore-data", "directory for the embedded config store and Raft log")

	f.String("naming-bind-addr", "127.0.0.1:7947", "address this node's peer transport listens on, shared by naming, join/forward, and Raft RPCs")
	f.String("metrics-addr", "127.0.0.1:9090", "address for the /metrics, /health, and /ready HTTP endpoints")

	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.Bool("log-json", false, "output logs as JSON instead of console text")

	f.String("bootstrap-config", "", "YAML manifest of config entries to seed once after a fresh single-node bootstrap")
}

// FromFlags reads every BindFlags option off cmd.
func FromFlags(cmd *cobra.Command) (Node, error) {
	f := cmd.Flags()

	var n Node
	var err error

	n.Raft.NodeID, err = f.GetString("raft-node-id")
	if err != nil {
		return Node{}, err
	}
	n.Raft.AutoInit, err = f.GetBool("raft-auto-init")
	if err != nil {
		return Node{}, err
	}
	n.Raft.JoinAddr, err = f.GetString("raft-join-addr")
	if err != nil {
		return Node{}, err
	}
	n.Raft.DataDir, err = f.GetString("config-db-dir")
	if err != nil {
		return Node{}, err
	}

	n.NamingBindAddr, err = f.GetString("naming-bind-addr")
	if err != nil {
		return Node{}, err
	}
	// Raft RPCs and naming/join/forward traffic share one physical
	// listener (internal/transport.Listener's magic-byte demux), so they
	// must be configured with the same address.
	n.Raft.NodeAddr = n.NamingBindAddr
	n.MetricsAddr, err = f.GetString("metrics-addr")
	if err != nil {
		return Node{}, err
	}

	level, err := f.GetString("log-level")
	if err != nil {
		return Node{}, err
	}
	n.LogLevel = log.Level(level)

	n.LogJSON, err = f.GetBool("log-json")
	if err != nil {
		return Node{}, err
	}

	n.BootstrapConfigFile, err = f.GetString("bootstrap-config")
	if err != nil {
		return Node{}, err
	}

	if n.Raft.NodeID == "" {
		return Node{}, fmt.Errorf("raft-node-id must not be empty")
	}
	return n, nil
}

package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd)
	return cmd
}

func TestFromFlagsDefaults(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags(nil))

	n, err := FromFlags(cmd)
	require.NoError(t, err)
	require.Equal(t, "node-1", n.Raft.NodeID)
	require.True(t, n.Raft.AutoInit)
	require.Empty(t, n.Raft.JoinAddr)
	require.Equal(t, "./nexuscore-data", n.Raft.DataDir)
	require.Equal(t, "127.0.0.1:7947", n.NamingBindAddr)
	require.Equal(t, n.NamingBindAddr, n.Raft.NodeAddr)
	require.Equal(t, "127.0.0.1:9090", n.MetricsAddr)
	require.Empty(t, n.BootstrapConfigFile)
}

func TestFromFlagsOverrides(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--raft-node-id=node-9",
		"--raft-auto-init=false",
		"--raft-join-addr=10.0.0.1:7946",
		"--naming-bind-addr=10.0.0.1:7947",
		"--bootstrap-config=/tmp/seed.yaml",
	}))

	n, err := FromFlags(cmd)
	require.NoError(t, err)
	require.Equal(t, "node-9", n.Raft.NodeID)
	require.False(t, n.Raft.AutoInit)
	require.Equal(t, "10.0.0.1:7946", n.Raft.JoinAddr)
	require.Equal(t, "/tmp/seed.yaml", n.BootstrapConfigFile)
	require.Equal(t, "10.0.0.1:7947", n.NamingBindAddr)
	require.Equal(t, "10.0.0.1:7947", n.Raft.NodeAddr)
}

func TestFromFlagsRejectsEmptyNodeID(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--raft-node-id="}))

	_, err := FromFlags(cmd)
	require.Error(t, err)
}

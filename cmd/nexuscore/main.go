// Command nexuscore is a thin bootstrap/join entrypoint for one cluster
// node. It is not the external API: clients reach a running node through
// collaborators named but not implemented here (HTTP, gRPC, the admin UI).
// This binary exists to start, bootstrap, or join a node for manual testing.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexuscore/nexuscore/internal/config"
	"github.com/nexuscore/nexuscore/internal/node"
	"github.com/nexuscore/nexuscore/pkg/log"
)

const (
	leaderWaitTimeout = 5 * time.Second
	leaderPollPeriod  = 200 * time.Millisecond
)

// seedBootstrapConfig applies a bootstrap-config manifest once the node has
// settled into leadership. On a node joining an existing cluster this is a
// no-op in practice: it never becomes leader and the manifest is skipped, on
// the assumption the seed data already exists from whichever node bootstrapped
// first.
func seedBootstrapConfig(n *node.Node, path string) error {
	manifest, err := config.LoadManifest(path)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(leaderWaitTimeout)
	for !n.IsLeader() && time.Now().Before(deadline) {
		time.Sleep(leaderPollPeriod)
	}
	if !n.IsLeader() {
		log.Info(fmt.Sprintf("bootstrap config %s skipped: node is not the Raft leader", path))
		return nil
	}

	for _, entry := range manifest.Entries {
		if _, err := n.SetConfig(entry.Key(), entry.Content); err != nil {
			return fmt.Errorf("seed %s/%s: %w", entry.Group, entry.DataID, err)
		}
	}
	log.Info(fmt.Sprintf("bootstrap config %s applied: %d entries", path, len(manifest.Entries)))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nexuscore",
	Short: "nexuscore - config replication and service naming coordination node",
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Start, bootstrap, or join a nexuscore node",
}

var agentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a node using its existing Raft state, or the flags given",
	Long: `Start brings up one node's full component set: the embedded KV
store, the config Raft group and its FSM, the listener engine and
subscription registry, the peer transport, the naming router, the peer
manager, and the heartbeat scheduler that drives their ticks.

On a node with no prior Raft state it bootstraps a new single-node
cluster when --raft-auto-init is set (the default), or joins an
existing cluster at --raft-join-addr when --raft-auto-init=false and
--raft-join-addr is set. With both set, --raft-auto-init wins and the
join address is not used. On a node restarting with existing state,
these flags are ignored.`,
	RunE: runAgent,
}

var agentBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Start a node and bootstrap a new single-node cluster",
	Long:  `Equivalent to agent start with --raft-auto-init=true and no join address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Set("raft-auto-init", "true"); err != nil {
			return err
		}
		if err := cmd.Flags().Set("raft-join-addr", ""); err != nil {
			return err
		}
		return runAgent(cmd, args)
	},
}

var agentJoinCmd = &cobra.Command{
	Use:   "join <existing-node-addr>",
	Short: "Start a node and join an existing cluster",
	Long:  `Equivalent to agent start with --raft-auto-init=false and --raft-join-addr set to the given address.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Set("raft-auto-init", "false"); err != nil {
			return err
		}
		if err := cmd.Flags().Set("raft-join-addr", args[0]); err != nil {
			return err
		}
		return runAgent(cmd, args)
	},
}

func init() {
	config.BindFlags(agentStartCmd)
	config.BindFlags(agentBootstrapCmd)
	config.BindFlags(agentJoinCmd)

	agentCmd.AddCommand(agentStartCmd)
	agentCmd.AddCommand(agentBootstrapCmd)
	agentCmd.AddCommand(agentJoinCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromFlags(cmd)
	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}
	log.Init(log.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})

	n, err := node.New(cfg)
	if err != nil {
		return fmt.Errorf("build node: %w", err)
	}

	if err := n.Start(); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	if cfg.BootstrapConfigFile != "" {
		if err := seedBootstrapConfig(n, cfg.BootstrapConfigFile); err != nil {
			log.Warn(fmt.Sprintf("bootstrap config seed failed: %v", err))
		}
	}

	fmt.Printf("nexuscore node %s listening for peer/raft traffic on %s, metrics on %s\n",
		cfg.Raft.NodeID, cfg.NamingBindAddr, cfg.MetricsAddr)
	fmt.Println("Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	if err := n.Stop(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Println("Shutdown complete")
	return nil
}

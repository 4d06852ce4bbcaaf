package raftcluster

import (
	"time"

	"github.com/hashicorp/raft"

	"github.com/nexuscore/nexuscore/internal/codec"
	"github.com/nexuscore/nexuscore/internal/transport"
	"github.com/nexuscore/nexuscore/pkg/metrics"
	"github.com/nexuscore/nexuscore/pkg/types"
)

const (
	joinNodeTypeTag    = "join_node"
	raftForwardTypeTag = "raft_forward"
	pingTypeTag        = "ping"

	addVoterTimeout = 10 * time.Second
)

// handleJoinNode services an inbound JoinNode request. Only the leader can
// add a voter; a non-leader drops the request and logs it, since the peer
// transport is fire-and-forget and has no reply channel for a leader hint.
func (a *Adapter) handleJoinNode(remoteAddr string, f transport.Frame) {
	cmd, err := codec.DecodeCommand(f.Body)
	if err != nil {
		a.logger.Warn().Err(err).Str("remote_addr", remoteAddr).Msg("malformed join_node")
		return
	}
	payload, err := codec.DecodeNodeAddr(cmd.Data)
	if err != nil {
		a.logger.Warn().Err(err).Str("remote_addr", remoteAddr).Msg("malformed join_node payload")
		return
	}

	if !a.IsLeader() {
		a.logger.Warn().Str("node_id", payload.NodeID).Msg("dropping join_node, not leader")
		return
	}

	future := a.raft.AddVoter(raft.ServerID(payload.NodeID), raft.ServerAddress(payload.Addr), 0, addVoterTimeout)
	if err := future.Error(); err != nil {
		a.logger.Warn().Err(err).Str("node_id", payload.NodeID).Str("addr", payload.Addr).Msg("AddVoter failed")
		return
	}

	if _, err := a.Propose(types.OpNodeAddr, payload); err != nil {
		a.logger.Warn().Err(err).Str("node_id", payload.NodeID).Msg("failed to propose NodeAddr for newly joined node")
	}
}

// handleRaftForward services a follower's forwarded write. Only applied if
// this node is actually the leader; otherwise the forwarding follower's
// view of leadership was already stale and the write is dropped.
func (a *Adapter) handleRaftForward(remoteAddr string, f transport.Frame) {
	if !a.IsLeader() {
		a.logger.Warn().Str("remote_addr", remoteAddr).Msg("dropping forwarded command, not leader")
		return
	}

	timer := metrics.NewTimer()
	future := a.raft.Apply(f.Body, applyTimeout)
	if err := future.Error(); err != nil {
		a.logger.Warn().Err(err).Msg("forwarded command apply failed")
	}
	timer.ObserveDuration(metrics.RaftApplyDuration)
}

// handlePing refreshes the sending peer's liveness.
func (a *Adapter) handlePing(remoteAddr string, f transport.Frame) {
	if a.toucher != nil {
		a.toucher.Touch(string(f.Body))
	}
}

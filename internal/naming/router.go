// Package naming implements the Naming Router (C7): hash-routes a service
// instance write to its owning peer, applies locally or forwards remotely,
// and fans local changes out to every other valid peer for eventual
// consistency.
package naming

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexuscore/nexuscore/internal/coreerrors"
	"github.com/nexuscore/nexuscore/internal/peermgr"
	"github.com/nexuscore/nexuscore/internal/transport"
	"github.com/nexuscore/nexuscore/pkg/log"
	"github.com/nexuscore/nexuscore/pkg/metrics"
	"github.com/nexuscore/nexuscore/pkg/types"
)

const (
	registerTypeTag       = "naming_register"
	deregisterTypeTag     = "naming_deregister"
	deregisterClientTypeTag = "naming_deregister_client"
)

// Router is the C7 actor: all state below is owned exclusively by mu.
type Router struct {
	localNodeID string
	peers       *peermgr.Manager
	pool        *transport.Pool
	logger      zerolog.Logger

	mu        sync.RWMutex
	instances map[string]types.Instance  // instance key -> instance
	byClient  map[string]map[string]struct{} // client id -> set of instance keys
}

// New constructs a Router for localNodeID, routing remote writes through
// pool and learning the valid-node ordering from peers.
func New(localNodeID string, peers *peermgr.Manager, pool *transport.Pool) *Router {
	return &Router{
		localNodeID: localNodeID,
		peers:       peers,
		pool:        pool,
		logger:      log.WithComponent("naming"),
		instances:   make(map[string]types.Instance),
		byClient:    make(map[string]map[string]struct{}),
	}
}

func instanceKey(i types.Instance) string {
	return fmt.Sprintf("%s|%s|%s|%d", i.ServiceName, i.ClientID, i.IP, i.Port)
}

func domainHash(serviceName, clientID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(serviceName))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(clientID))
	return h.Sum32()
}

// owner returns the ClusterNode that owns writes for (serviceName,
// clientID) under the current valid-node ordering, per the spec's hash
// routing (tie-broken by ascending node_id, scenario 6).
func (r *Router) owner(serviceName, clientID string) (types.ClusterNode, bool) {
	nodes := r.peers.ValidNodesOrdered()
	if len(nodes) == 0 {
		return types.ClusterNode{}, false
	}
	idx := int(domainHash(serviceName, clientID) % uint32(len(nodes)))
	return nodes[idx], true
}

// Register routes a service instance registration to its owning peer.
func (r *Router) Register(inst types.Instance) error {
	timer := metrics.NewTimer()
	owner, ok := r.owner(inst.ServiceName, inst.ClientID)
	if !ok {
		timer.ObserveDurationVec(metrics.NamingRouteDuration, "no_owner")
		return fmt.Errorf("%w: no valid nodes to route naming write", coreerrors.ErrNotFound)
	}

	if owner.IsLocal {
		r.applyRegisterLocal(inst)
		r.broadcastExcept(owner.NodeID, registerTypeTag, inst)
		timer.ObserveDurationVec(metrics.NamingRouteDuration, "local")
		return nil
	}

	body, err := json.Marshal(inst)
	if err != nil {
		timer.ObserveDurationVec(metrics.NamingRouteDuration, "encode_error")
		return fmt.Errorf("%w: encode instance: %v", coreerrors.ErrEncoding, err)
	}
	if err := r.pool.Send(owner.NodeID, registerTypeTag, body); err != nil {
		timer.ObserveDurationVec(metrics.NamingRouteDuration, "forward_error")
		return err
	}
	timer.ObserveDurationVec(metrics.NamingRouteDuration, "forwarded")
	return nil
}

func (r *Router) applyRegisterLocal(inst types.Instance) {
	inst.RegisteredAt = time.Now()

	r.mu.Lock()
	key := instanceKey(inst)
	r.instances[key] = inst
	set, ok := r.byClient[inst.ClientID]
	if !ok {
		set = make(map[string]struct{})
		r.byClient[inst.ClientID] = set
	}
	set[key] = struct{}{}
	total := len(r.instances)
	r.mu.Unlock()

	metrics.NamingInstancesTotal.Set(float64(total))
	r.peers.RegisterClient(r.localNodeID, inst.ClientID)
}

// Deregister removes a single instance, routed the same way as Register.
func (r *Router) Deregister(inst types.Instance) {
	owner, ok := r.owner(inst.ServiceName, inst.ClientID)
	if ok && !owner.IsLocal {
		if body, err := json.Marshal(inst); err == nil {
			_ = r.pool.Send(owner.NodeID, deregisterTypeTag, body)
		}
		return
	}
	r.applyDeregisterLocal(inst)
	r.broadcastExcept(r.localNodeID, deregisterTypeTag, inst)
}

func (r *Router) applyDeregisterLocal(inst types.Instance) {
	r.mu.Lock()
	key := instanceKey(inst)
	delete(r.instances, key)
	if set, ok := r.byClient[inst.ClientID]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(r.byClient, inst.ClientID)
		}
	}
	total := len(r.instances)
	r.mu.Unlock()
	metrics.NamingInstancesTotal.Set(float64(total))
}

// PurgeClient implements peermgr.NamingPurger: it removes every instance
// locally held for clientID and tells peers to do the same, satisfying
// cascade invalidation after a dead peer's client_set drains (I5).
func (r *Router) PurgeClient(clientID string) {
	r.mu.Lock()
	keys := r.byClient[clientID]
	removed := make([]types.Instance, 0, len(keys))
	for key := range keys {
		removed = append(removed, r.instances[key])
		delete(r.instances, key)
	}
	delete(r.byClient, clientID)
	total := len(r.instances)
	r.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	metrics.NamingInstancesTotal.Set(float64(total))
	r.broadcastExcept(r.localNodeID, deregisterClientTypeTag, clientID)
}

// ApplyRemoteRegister handles a registration forwarded to this node as the
// owner, or broadcast here for eventual-consistency catch-up.
func (r *Router) ApplyRemoteRegister(inst types.Instance) {
	r.applyRegisterLocal(inst)
}

// ApplyRemoteDeregister handles a deregistration forwarded or broadcast.
func (r *Router) ApplyRemoteDeregister(inst types.Instance) {
	r.applyDeregisterLocal(inst)
}

// ApplyRemotePurgeClient handles a cascade-invalidation broadcast from the
// peer that actually timed the dead node out.
func (r *Router) ApplyRemotePurgeClient(clientID string) {
	r.mu.Lock()
	keys := r.byClient[clientID]
	for key := range keys {
		delete(r.instances, key)
	}
	delete(r.byClient, clientID)
	total := len(r.instances)
	r.mu.Unlock()
	metrics.NamingInstancesTotal.Set(float64(total))
}

// Instances returns every instance currently registered for serviceName.
func (r *Router) Instances(serviceName string) []types.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Instance, 0)
	for _, inst := range r.instances {
		if inst.ServiceName == serviceName {
			out = append(out, inst)
		}
	}
	return out
}

func (r *Router) broadcastExcept(exceptNodeID string, typeTag string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn().Err(err).Str("type_tag", typeTag).Msg("broadcast encode failed")
		return
	}
	for _, n := range r.peers.ValidNodesOrdered() {
		if n.IsLocal || n.NodeID == exceptNodeID {
			continue
		}
		if err := r.pool.Send(n.NodeID, typeTag, body); err != nil {
			r.logger.Warn().Err(err).Str("peer_id", n.NodeID).Str("type_tag", typeTag).Msg("broadcast send failed")
		}
	}
}

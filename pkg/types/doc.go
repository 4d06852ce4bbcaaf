/*
Package types defines the core data structures shared across the config
store and naming cluster packages.

This package contains the domain model: config keys and values, history
records, listener waiters, subscriptions, cluster peer state, naming
instances, and the Raft command envelope. These types carry no behavior of
their own — they are passed by value or pointer between internal/configstore,
internal/listener, internal/subscribe, internal/peermgr, internal/naming,
and internal/raftcluster.

# Core Types

Config Model:
  - ConfigKey: data_id/group/tenant triple with canonical Encode/Decode
  - ConfigValue: content, md5, tmp flag, version
  - ConfigHistoryEntry: append-only history record

Listener & Subscription:
  - ListenerWaiter: parked long-poll request with per-key known md5s
  - Subscription: client_id -> ConfigKey push registration

Cluster & Naming:
  - ClusterNode: peer id, address, validity state, ordered index
  - Instance: a registered naming service instance

Raft Command Envelope:
  - RaftCommand: Op + JSON Data, applied by the config state machine
  - ConfigAddPayload, ConfigRemovePayload, NodeAddrPayload

# Thread Safety

Types in this package carry no synchronization of their own. Callers in
internal/configstore and internal/peermgr guard mutation with their own
locks; values handed out to callers (e.g. from a Query) are copies or are
treated as immutable once returned.
*/
package types

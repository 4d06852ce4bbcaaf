// Package subscribe implements the Subscription Registry (C5): the
// persistent push-mode counterpart to the listener engine. It only holds
// the bidirectional client/key mapping; stream identity and delivery are
// owned by an external connection manager reached through Notifier.
package subscribe

import (
	"sync"

	"github.com/nexuscore/nexuscore/pkg/metrics"
	"github.com/nexuscore/nexuscore/pkg/types"
)

// Notifier delivers a change event to a subscribed client's existing
// stream. The registry only decides who to call, never how delivery works.
type Notifier interface {
	NotifySubscriber(clientID string, key types.ConfigKey)
}

// Registry is the C5 actor: all state below is owned exclusively by mu.
type Registry struct {
	notifier Notifier

	mu          sync.Mutex
	byKey       map[types.ConfigKey]map[string]struct{}
	byClient    map[string]map[types.ConfigKey]struct{}
}

// New constructs a Registry that delivers notify events through notifier.
func New(notifier Notifier) *Registry {
	return &Registry{
		notifier: notifier,
		byKey:    make(map[types.ConfigKey]map[string]struct{}),
		byClient: make(map[string]map[types.ConfigKey]struct{}),
	}
}

// Add registers clientID's interest in every key in items.
func (r *Registry) Add(clientID string, items []types.ConfigKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clientKeys, ok := r.byClient[clientID]
	if !ok {
		clientKeys = make(map[types.ConfigKey]struct{})
		r.byClient[clientID] = clientKeys
	}

	for _, key := range items {
		if _, exists := clientKeys[key]; !exists {
			clientKeys[key] = struct{}{}
			keySet, ok := r.byKey[key]
			if !ok {
				keySet = make(map[string]struct{})
				r.byKey[key] = keySet
			}
			keySet[clientID] = struct{}{}
			metrics.SubscriptionsActive.Inc()
		}
	}
}

// Remove drops clientID's interest in every key in items.
func (r *Registry) Remove(clientID string, items []types.ConfigKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range items {
		r.removeOneLocked(clientID, key)
	}
}

// RemoveClient drops every subscription for clientID, e.g. on disconnect.
func (r *Registry) RemoveClient(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]types.ConfigKey, 0, len(r.byClient[clientID]))
	for key := range r.byClient[clientID] {
		keys = append(keys, key)
	}
	for _, key := range keys {
		r.removeOneLocked(clientID, key)
	}
}

func (r *Registry) removeOneLocked(clientID string, key types.ConfigKey) {
	if clientKeys, ok := r.byClient[clientID]; ok {
		if _, exists := clientKeys[key]; exists {
			delete(clientKeys, key)
			if len(clientKeys) == 0 {
				delete(r.byClient, clientID)
			}
			if keySet, ok := r.byKey[key]; ok {
				delete(keySet, clientID)
				if len(keySet) == 0 {
					delete(r.byKey, key)
				}
			}
			metrics.SubscriptionsActive.Dec()
		}
	}
}

// NotifyChange implements configstore.ChangeNotifier. Every client
// subscribed to key receives a notify call on its own stream; delivery
// order across subscribers is unspecified and independent of the listener
// engine's wake for the same change.
func (r *Registry) NotifyChange(key types.ConfigKey) {
	r.mu.Lock()
	clients := make([]string, 0, len(r.byKey[key]))
	for clientID := range r.byKey[key] {
		clients = append(clients, clientID)
	}
	r.mu.Unlock()

	for _, clientID := range clients {
		r.notifier.NotifySubscriber(clientID, key)
	}
}

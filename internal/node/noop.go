package node

import (
	"fmt"

	"github.com/nexuscore/nexuscore/pkg/log"
	"github.com/nexuscore/nexuscore/pkg/types"
)

// logOnlyNotifier satisfies subscribe.Notifier when no external stream
// transport (gRPC, HTTP/SSE) is wired in, which is the normal case: that
// transport is a named-only external collaborator outside this repository's
// scope. It still records the notification so the registry's behavior is
// observable in logs.
type logOnlyNotifier struct{}

func (logOnlyNotifier) NotifySubscriber(clientID string, key types.ConfigKey) {
	log.Info(fmt.Sprintf("subscribe: would push change for %s to client %s (no stream transport wired)", key.Encode(), clientID))
}

package naming

import (
	"encoding/json"

	"github.com/nexuscore/nexuscore/internal/transport"
	"github.com/nexuscore/nexuscore/pkg/types"
)

// RegisterHandlers wires the router's inbound naming frame types onto ln,
// the receiving half of Register/Deregister/PurgeClient's peer forwarding.
func (r *Router) RegisterHandlers(ln *transport.Listener) {
	ln.RegisterHandler(registerTypeTag, r.onRegisterFrame)
	ln.RegisterHandler(deregisterTypeTag, r.onDeregisterFrame)
	ln.RegisterHandler(deregisterClientTypeTag, r.onDeregisterClientFrame)
}

func (r *Router) onRegisterFrame(remoteAddr string, f transport.Frame) {
	var inst types.Instance
	if err := json.Unmarshal(f.Body, &inst); err != nil {
		r.logger.Warn().Err(err).Str("remote_addr", remoteAddr).Msg("malformed register frame")
		return
	}
	r.ApplyRemoteRegister(inst)
}

func (r *Router) onDeregisterFrame(remoteAddr string, f transport.Frame) {
	var inst types.Instance
	if err := json.Unmarshal(f.Body, &inst); err != nil {
		r.logger.Warn().Err(err).Str("remote_addr", remoteAddr).Msg("malformed deregister frame")
		return
	}
	r.ApplyRemoteDeregister(inst)
}

func (r *Router) onDeregisterClientFrame(remoteAddr string, f transport.Frame) {
	var clientID string
	if err := json.Unmarshal(f.Body, &clientID); err != nil {
		r.logger.Warn().Err(err).Str("remote_addr", remoteAddr).Msg("malformed deregister-client frame")
		return
	}
	r.ApplyRemotePurgeClient(clientID)
}

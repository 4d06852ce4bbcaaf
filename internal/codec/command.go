package codec

import (
	"encoding/json"
	"fmt"

	"github.com/nexuscore/nexuscore/internal/coreerrors"
	"github.com/nexuscore/nexuscore/pkg/types"
)

// EncodeCommand marshals a RaftCommand for raft.Apply, mirroring the
// teacher's json.Marshal(Command) convention at the FSM boundary.
func EncodeCommand(op types.RaftCommandOp, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal command payload: %v", coreerrors.ErrEncoding, err)
	}
	cmd := types.RaftCommand{Op: op, Data: data}
	out, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal command envelope: %v", coreerrors.ErrEncoding, err)
	}
	return out, nil
}

// DecodeCommand unmarshals a raft.Log's Data into a RaftCommand envelope.
func DecodeCommand(data []byte) (types.RaftCommand, error) {
	var cmd types.RaftCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return types.RaftCommand{}, fmt.Errorf("%w: unmarshal command envelope: %v", coreerrors.ErrEncoding, err)
	}
	return cmd, nil
}

// DecodeConfigAdd unmarshals an OpConfigAdd command's Data.
func DecodeConfigAdd(data []byte) (types.ConfigAddPayload, error) {
	var p types.ConfigAddPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return types.ConfigAddPayload{}, fmt.Errorf("%w: unmarshal config_add payload: %v", coreerrors.ErrEncoding, err)
	}
	return p, nil
}

// DecodeConfigRemove unmarshals an OpConfigRemove command's Data.
func DecodeConfigRemove(data []byte) (types.ConfigRemovePayload, error) {
	var p types.ConfigRemovePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return types.ConfigRemovePayload{}, fmt.Errorf("%w: unmarshal config_remove payload: %v", coreerrors.ErrEncoding, err)
	}
	return p, nil
}

// DecodeNodeAddr unmarshals an OpNodeAddr command's Data.
func DecodeNodeAddr(data []byte) (types.NodeAddrPayload, error) {
	var p types.NodeAddrPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return types.NodeAddrPayload{}, fmt.Errorf("%w: unmarshal node_addr payload: %v", coreerrors.ErrEncoding, err)
	}
	return p, nil
}

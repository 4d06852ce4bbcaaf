package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/nexuscore/pkg/types"
)

func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	payload := types.ConfigAddPayload{
		Key:       types.ConfigKey{DataID: "app.properties", Group: "DEFAULT_GROUP"},
		Content:   "timeout=3000",
		MD5:       "abc123",
		HistoryID: 42,
	}

	data, err := EncodeCommand(types.OpConfigAdd, payload)
	require.NoError(t, err)

	cmd, err := DecodeCommand(data)
	require.NoError(t, err)
	require.Equal(t, types.OpConfigAdd, cmd.Op)

	decoded, err := DecodeConfigAdd(cmd.Data)
	require.NoError(t, err)
	require.Equal(t, payload, decoded)
}

func TestEncodeDecodeConfigRemove(t *testing.T) {
	payload := types.ConfigRemovePayload{Key: types.ConfigKey{DataID: "a", Group: "b"}}

	data, err := EncodeCommand(types.OpConfigRemove, payload)
	require.NoError(t, err)

	cmd, err := DecodeCommand(data)
	require.NoError(t, err)
	require.Equal(t, types.OpConfigRemove, cmd.Op)

	decoded, err := DecodeConfigRemove(cmd.Data)
	require.NoError(t, err)
	require.Equal(t, payload, decoded)
}

func TestDecodeCommandRejectsGarbage(t *testing.T) {
	_, err := DecodeCommand([]byte("not json"))
	require.Error(t, err)
}

func TestDecodeNodeAddr(t *testing.T) {
	payload := types.NodeAddrPayload{NodeID: "node-1", Addr: "127.0.0.1:7946"}
	data, err := EncodeCommand(types.OpNodeAddr, payload)
	require.NoError(t, err)

	cmd, err := DecodeCommand(data)
	require.NoError(t, err)

	decoded, err := DecodeNodeAddr(cmd.Data)
	require.NoError(t, err)
	require.Equal(t, payload, decoded)
}

package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/nexuscore/pkg/types"
)

func TestDecodeListenerItemsRoundTrip(t *testing.T) {
	items := []ListenerItem{
		{Key: types.ConfigKey{DataID: "app.properties", Group: "DEFAULT_GROUP"}, MD5: "md5-one"},
		{Key: types.ConfigKey{DataID: "db.yaml", Group: "PROD", Tenant: "tenant-a"}, MD5: "md5-two"},
	}

	payload := EncodeListenerItems(items)
	decoded, err := DecodeListenerItems(payload)
	require.NoError(t, err)
	require.Equal(t, items, decoded)
}

// Pins the spec's own worked example (scenario 4): two 0x01-terminated
// records, each 0x02-joined with the md5 as its last field.
func TestDecodeListenerItemsDecodesSpecWorkedExample(t *testing.T) {
	payload := []byte("app\x02DEFAULT\x02public\x02md5a\x01other\x02g\x02md5b\x01")

	decoded, err := DecodeListenerItems(payload)
	require.NoError(t, err)
	require.Equal(t, []ListenerItem{
		{Key: types.ConfigKey{DataID: "app", Group: "DEFAULT"}, MD5: "md5a"},
		{Key: types.ConfigKey{DataID: "other", Group: "g"}, MD5: "md5b"},
	}, decoded)
}

func TestDecodeListenerItemsNormalizesPublicTenant(t *testing.T) {
	payload := []byte("app\x02group\x02public\x02md5-value\x01")
	decoded, err := DecodeListenerItems(payload)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, "", decoded[0].Key.Tenant)
}

func TestDecodeListenerItemsRejectsBadFieldCount(t *testing.T) {
	payload := []byte("onlyonefield\x01")
	_, err := DecodeListenerItems(payload)
	require.Error(t, err)
}

// DecodeListenerChangeKeys uses the opposite field-count convention from
// DecodeListenerItems: its records carry no md5, so a bare (data_id, group)
// record has an empty tenant and a (data_id, group, tenant) record is fully
// qualified.
func TestDecodeListenerChangeKeysFieldCountAsymmetry(t *testing.T) {
	payload := []byte("app.properties\x02DEFAULT_GROUP\x01db.yaml\x02PROD\x02tenant-a\x01")

	keys, err := DecodeListenerChangeKeys(payload)
	require.NoError(t, err)
	require.Equal(t, []types.ConfigKey{
		{DataID: "app.properties", Group: "DEFAULT_GROUP"},
		{DataID: "db.yaml", Group: "PROD", Tenant: "tenant-a"},
	}, keys)
}

func TestDecodeListenerChangeKeysRejectsBadFieldCount(t *testing.T) {
	payload := []byte("onlyonefield\x01")
	_, err := DecodeListenerChangeKeys(payload)
	require.Error(t, err)
}

package codec

import (
	"bytes"
	"fmt"

	"github.com/nexuscore/nexuscore/internal/coreerrors"
	"github.com/nexuscore/nexuscore/pkg/types"
)

// The legacy long-poll listener wire format is a flat byte stream of
// 0x01-terminated records, themselves 0x02-separated fields. It predates
// the canonical ConfigKey encoding and is kept for compatibility with
// clients that still speak it.
const (
	recordSep = 0x01
	fieldSep  = 0x02
	publicTenant = "public"
)

// ListenerItem pairs a ConfigKey with the md5 the caller already knows for
// it, as decoded from a DecodeListenerItems payload.
type ListenerItem struct {
	Key types.ConfigKey
	MD5 string
}

// DecodeListenerItems parses the "Listener-Check" wire payload: one
// 0x01-terminated record per item, each record itself 0x02-joined with the
// md5 as its last field.
//
// A 3-field record is (data_id, group, md5) with an empty tenant. A 4-field
// record is (data_id, group, tenant, md5); a literal tenant of "public" is
// normalized to the empty tenant.
func DecodeListenerItems(payload []byte) ([]ListenerItem, error) {
	records := splitRecords(payload)

	items := make([]ListenerItem, 0, len(records))
	for _, record := range records {
		fields := bytes.Split(record, []byte{fieldSep})

		var key types.ConfigKey
		var md5 string
		switch len(fields) {
		case 3:
			key = types.ConfigKey{DataID: string(fields[0]), Group: string(fields[1])}
			md5 = string(fields[2])
		case 4:
			tenant := string(fields[2])
			if tenant == publicTenant {
				tenant = ""
			}
			key = types.ConfigKey{DataID: string(fields[0]), Group: string(fields[1]), Tenant: tenant}
			md5 = string(fields[3])
		default:
			return nil, fmt.Errorf("%w: listener item record has %d fields", coreerrors.ErrEncoding, len(fields))
		}

		items = append(items, ListenerItem{Key: key, MD5: md5})
	}
	return items, nil
}

// DecodeListenerChangeKeys parses the reverse "changed keys" notification
// payload sent back to a client: one 0x01-terminated record per key, the
// opposite field-count convention from DecodeListenerItems since a
// changed-key record carries no md5.
//
// A 2-field record is (data_id, group) with an empty tenant. A 3-field
// record is (data_id, group, tenant).
func DecodeListenerChangeKeys(payload []byte) ([]types.ConfigKey, error) {
	records := splitRecords(payload)

	keys := make([]types.ConfigKey, 0, len(records))
	for _, record := range records {
		fields := bytes.Split(record, []byte{fieldSep})

		var key types.ConfigKey
		switch len(fields) {
		case 2:
			key = types.ConfigKey{DataID: string(fields[0]), Group: string(fields[1])}
		case 3:
			key = types.ConfigKey{DataID: string(fields[0]), Group: string(fields[1]), Tenant: string(fields[2])}
		default:
			return nil, fmt.Errorf("%w: listener change-key record has %d fields", coreerrors.ErrEncoding, len(fields))
		}

		keys = append(keys, key)
	}
	return keys, nil
}

// EncodeListenerItems is the inverse of DecodeListenerItems, used by tests
// and by clients constructing a Listener-Check request.
func EncodeListenerItems(items []ListenerItem) []byte {
	var buf bytes.Buffer
	for _, it := range items {
		buf.WriteString(it.Key.DataID)
		buf.WriteByte(fieldSep)
		buf.WriteString(it.Key.Group)
		if it.Key.Tenant != "" {
			buf.WriteByte(fieldSep)
			buf.WriteString(it.Key.Tenant)
		}
		buf.WriteByte(fieldSep)
		buf.WriteString(it.MD5)
		buf.WriteByte(recordSep)
	}
	return buf.Bytes()
}

// splitRecords splits payload on 0x01, dropping a single trailing empty
// token produced by a terminal separator.
func splitRecords(payload []byte) [][]byte {
	tokens := bytes.Split(payload, []byte{recordSep})
	if len(tokens) > 0 && len(tokens[len(tokens)-1]) == 0 {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

package configstore

import (
	"encoding/json"
	"time"
)

// storedValue is the on-disk form of a primary config record.
type storedValue struct {
	Content   string    `json:"content"`
	MD5       string    `json:"md5"`
	Tmp       bool      `json:"tmp"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func encodeStoredValue(v storedValue) ([]byte, error) {
	return json.Marshal(v)
}

func decodeStoredValue(data []byte, v *storedValue) error {
	return json.Unmarshal(data, v)
}

func encodeHistoryEntry(h interface{}) ([]byte, error) {
	return json.Marshal(h)
}

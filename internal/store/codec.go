package store

import (
	"encoding/json"
	"fmt"
)

func encodeJSON(key string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}

	return data, nil
}

func decodeJSON(key string, data []byte, out any) error {
	err := json.Unmarshal(data, out)
	if err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}

	return nil
}

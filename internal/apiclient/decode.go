package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// decodeList はボディから一覧を取り出す。
// バックエンドは素の配列、または {"<key>": [...]} / {"data": [...]} の形で返すため、
// いずれも受け付ける。キーの大文字小文字は区別しない。
func decodeList[T any](resp *Response, key string) ([]T, error) {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return []T{}, nil
	}

	if body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode list envelope: %w", err)
	}

	for _, candidate := range []string{key, "data"} {
		for k, raw := range envelope {
			if !strings.EqualFold(k, candidate) {
				continue
			}
			if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				return []T{}, nil
			}
			var items []T
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("failed to decode %q: %w", k, err)
			}
			return items, nil
		}
	}
	return nil, fmt.Errorf("response has no %q list", key)
}

// decodeObject は {"<key>": {...}} / {"data": {...}} または素のオブジェクトをvにデコードする。
func decodeObject(resp *Response, key string, v any) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	for _, candidate := range []string{key, "data"} {
		for k, raw := range envelope {
			if strings.EqualFold(k, candidate) && len(raw) > 0 && raw[0] == '{' {
				return json.Unmarshal(raw, v)
			}
		}
	}
	return resp.Decode(v)
}

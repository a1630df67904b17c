package repository

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/okian/cxdiag/internal/domain/model"
)

func encodeResponses(r model.ResponseSet) (string, error) {
	if r == nil {
		r = model.ResponseSet{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode responses: %w", err)
	}
	return string(b), nil
}

// decodeResponses reads a stored JSON object of answers. Numbers and numeric
// strings are kept; any other value type is skipped.
func decodeResponses(raw string) (model.ResponseSet, error) {
	if raw == "" {
		return model.ResponseSet{}, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("decode responses: invalid json")
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("decode responses: not an object")
	}
	out := make(model.ResponseSet)
	doc.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.Number:
			out[key.String()] = value.Float()
		case gjson.String:
			if n, err := strconv.ParseFloat(value.Str, 64); err == nil {
				out[key.String()] = n
			}
		}
		return true
	})
	return out, nil
}

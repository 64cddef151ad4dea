package main

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// parseParams flattens a YAML document into dotted keys with string
// values. Nested mappings join their keys with ".".
func parseParams(data []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := map[string]string{}
	if err := flatten("", doc, out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(prefix string, m map[string]any, out map[string]string) error {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			if err := flatten(key, t, out); err != nil {
				return err
			}
		case nil:
			out[key] = ""
		case string:
			out[key] = t
		case bool:
			out[key] = strconv.FormatBool(t)
		case int:
			out[key] = strconv.Itoa(t)
		case float64:
			out[key] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return fmt.Errorf("%s: unsupported value of type %T", key, v)
		}
	}
	return nil
}

package agent

import (
	"siteforge/engine/models"
	"siteforge/engine/settings"
)

func settingsFlatten(schema *settings.Schema, tree models.Settings) map[string]any {
	return settings.Flatten(schema, tree)
}

func getInt(m map[string]any, path string, def int) int {
	if v, ok := m[path]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

func getString(m map[string]any, path string, def string) string {
	if v, ok := m[path]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func getStringList(m map[string]any, path string) []string {
	v, ok := m[path]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

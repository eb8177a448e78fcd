package tools

// Argument bags arrive as decoded JSON, so numbers are float64 and missing
// keys are simply absent.

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if val, ok := args[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func intArg(args map[string]any, key string, defaultVal int) int {
	if args == nil {
		return defaultVal
	}
	if val, ok := args[key]; ok {
		switch v := val.(type) {
		case float64:
			return int(v)
		case int:
			return v
		case int64:
			return int(v)
		}
	}
	return defaultVal
}

func boolArg(args map[string]any, key string) bool {
	if args == nil {
		return false
	}
	if val, ok := args[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

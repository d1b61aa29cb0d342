package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// redactor rewrites sensitive key/value pairs before they reach zap.
// Credentials are replaced outright; user mood text and client addresses are
// replaced by a salted hash so repeated values still correlate.
type redactor struct {
	enabled bool
	salt    string
}

var secretKeyParts = []string{"token", "authorization", "password", "secret", "api_key", "apikey", "dsn"}

func (r *redactor) kvs(kv []interface{}) []interface{} {
	if r == nil || !r.enabled || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := toString(kv[i])
		out = append(out, key, r.value(normKey(key), kv[i+1]))
	}
	return out
}

func (r *redactor) value(key string, val interface{}) interface{} {
	switch {
	case key == "":
		return val
	case isSecretKey(key):
		return "[REDACTED]"
	case key == "text" || key == "mood_text" || strings.Contains(key, "client_ip"):
		return r.hash(val)
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = r.value(normKey(k), inner)
		}
		return out
	case string:
		if looksLikeCredential(v) {
			return "[REDACTED]"
		}
	}
	return val
}

func (r *redactor) hash(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(r.salt))
	h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func isSecretKey(key string) bool {
	for _, p := range secretKeyParts {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}

func looksLikeCredential(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(strings.ToLower(s), "bearer ") || strings.HasPrefix(s, "sk-")
}

func normKey(k string) string { return strings.ToLower(strings.TrimSpace(k)) }

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

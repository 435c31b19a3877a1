package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

var statusNames = map[string]string{
	"ok":           "ok",
	"success":      "ok",
	"fail":         "fail",
	"error":        "fail",
	"skip":         "skip",
	"retry":        "retry",
	"rate_limited": "rate_limited",
	"cancelled":    "cancelled",
	"canceled":     "cancelled",
}

// secretKeys never reach the sink with their value.
var secretKeys = map[string]struct{}{
	"code":           {},
	"blik_code":      {},
	"blik_code_enc":  {},
	"encryption_key": {},
	"token":          {},
	"password":       {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if mapped, ok := statusNames[status]; ok {
		return mapped
	}
	return status
}

func isSecretKey(key string) bool {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	_, ok := secretKeys[strings.ToLower(key)]
	return ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"op",
	"cmd",
	"order_id",
	"operator_id",
	"payment_status",
	"total",
	"items",
	"duration_ms",
	"mode",
	"listen",
	"public_url",
	"driver",
	"db",
	"host",
	"port",
	"version",
	"err",
	"err_code",
	"retryable",
	"attempts",
	"backoff_ms",
}

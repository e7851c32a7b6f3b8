package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's sugared logger with field scrubbing: credentials never
// reach the log stream, and personal identifiers (emails, user and thread
// ids) are replaced with salted digests so lines from the API process, the
// worker, and the render pipeline still correlate per user.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(strings.ToLower(raw))); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, scrubPairs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, scrubPairs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, scrubPairs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, scrubPairs(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, scrubPairs(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(scrubPairs(keysAndValues)...)}
}

// Substring matches on lowercased keys. dropKeys are blanked outright;
// digestKeys are replaced with a salted short digest.
var (
	dropKeys = []string{
		"password", "secret", "token", "authorization", "cookie",
		"api_key", "apikey", "signature", "signed_url", "upload_url",
	}
	digestKeys = []string{
		"email", "user_id", "thread_id", "room_id", "asset_id", "job_id",
	}
)

var (
	scrubOnce    sync.Once
	scrubEnabled bool
	scrubSalt    string
)

func scrubConfig() (bool, string) {
	scrubOnce.Do(func() {
		switch strings.TrimSpace(strings.ToLower(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			scrubEnabled = false
		default:
			scrubEnabled = true
		}
		scrubSalt = strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))
	})
	return scrubEnabled, scrubSalt
}

func scrubPairs(kv []interface{}) []interface{} {
	enabled, _ := scrubConfig()
	if !enabled || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			// dangling key, pass through for zap to complain about
			out = append(out, kv[i])
			break
		}
		key := strings.ToLower(strings.TrimSpace(asString(kv[i])))
		out = append(out, asString(kv[i]), scrub(key, kv[i+1]))
	}
	return out
}

func scrub(key string, val interface{}) interface{} {
	if key != "" {
		if matchesAny(key, dropKeys) {
			return "[redacted]"
		}
		if matchesAny(key, digestKeys) {
			return digest(val)
		}
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = scrub(strings.ToLower(strings.TrimSpace(k)), inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, inner := range v {
			out[i] = scrub("", inner)
		}
		return out
	case string:
		// Value heuristics catch secrets logged under innocuous keys.
		if bearerToken(v) || signedURL(v) {
			return "[redacted]"
		}
		return v
	default:
		return val
	}
}

func matchesAny(key string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(key, n) {
			return true
		}
	}
	return false
}

func digest(val interface{}) string {
	raw := asString(val)
	if raw == "" {
		return ""
	}
	_, salt := scrubConfig()
	sum := sha256.Sum256([]byte(salt + raw))
	return "sha:" + hex.EncodeToString(sum[:])[:16]
}

// bearerToken matches the three-segment shape of a JWT, with or without the
// "Bearer " prefix.
func bearerToken(s string) bool {
	s = strings.TrimPrefix(strings.TrimSpace(s), "Bearer ")
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	return len(parts[0]) >= 8 && len(parts[1]) >= 8 && len(parts[2]) >= 8
}

// signedURL matches GCS V4 signed URLs, whose query string carries the
// credential and signature.
func signedURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	q := u.Query()
	return q.Get("X-Goog-Signature") != "" || q.Get("X-Goog-Credential") != ""
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

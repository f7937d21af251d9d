package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ericfisherdev/prpilot/internal/config"
)

// Redacted replaces secret values in configuration output.
const Redacted = "*****"

const (
	bannerTop    = "##################### CONFIGURATION ######################"
	bannerBottom = "##########################################################"
)

var secretKeys = map[string]struct{}{
	"PRIVATE_KEY":         {},
	"WEBHOOK_SECRET":      {},
	"CACHE_TOKEN_SECRET":  {},
	"OAUTH_CLIENT_ID":     {},
	"OAUTH_CLIENT_SECRET": {},
	"MAIN_TOKEN":          {},
	"FORK_TOKEN":          {},
	"MAIN_TOKEN_DELETE":   {},
	"FORK_TOKEN_DELETE":   {},
}

var urlCredentials = regexp.MustCompile(`://[^@]*@`)

// redaction rules are applied in order to every set value.
var redactions = []struct {
	match   func(key string) bool
	replace func(value string) string
}{
	{
		match: func(key string) bool {
			_, ok := secretKeys[key]
			return ok
		},
		replace: func(string) string { return Redacted },
	},
	{
		match:   func(key string) bool { return strings.Contains(key, "URL") },
		replace: func(v string) string { return urlCredentials.ReplaceAllString(v, "://"+Redacted+"@") },
	},
}

// Redact returns the printable form of a configuration value. Unset values
// stay nil.
func Redact(key string, value any) any {
	if value == nil {
		return nil
	}
	s := fmt.Sprint(value)
	for _, r := range redactions {
		if r.match(key) {
			s = r.replace(s)
		}
	}
	return s
}

// ConfigLog writes the effective configuration between two banner lines,
// one info record per key, with secrets redacted.
func ConfigLog(logger *slog.Logger, values []config.Setting) {
	logger.Info(bannerTop)
	for _, s := range values {
		v := Redact(s.Key, s.Value)
		if v == nil {
			v = "<unset>"
		}
		logger.Info(fmt.Sprintf("* %s%s: %v", config.EnvPrefix, s.Key, v))
	}
	logger.Info(bannerBottom)
}

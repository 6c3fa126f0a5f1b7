// Package backend implements the Backend Extension variants (spec component
// C1): File, Config, LDAP, RADIUS, ODBC and a pluggable custom slot, each
// satisfying authtypes.Extension's {Open, Authenticate, Close} capability
// set. Construction is grounded on the teacher's database/postgres package
// (a config struct, a pool/dialer built from it in Open, a slog.Logger
// threaded through for query/connect diagnostics); the registry itself
// mirrors the teacher's notification channel registry
// (internal/notification/channel), which resolves a type string to a
// constructor rather than a switch buried in the caller.
package backend

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
)

// CommonArgs holds the argument keys every backend recognises (spec §4.1).
// LockoutCount/LockoutThreshold/LockoutTime are not parsed here;
// StripLockoutArgs removes them before an extension builds a
// source-specific string, and the realm mapping layer is what actually
// consumes their values.
type CommonArgs struct {
	MaxCacheTime time.Duration
}

const defaultMaxCacheTime = 5 * time.Minute

var lockoutArgKeys = map[string]struct{}{
	"LockoutCount":     {},
	"LockoutThreshold": {},
	"LockoutTime":      {},
}

// ParseCommonArgs extracts MaxCacheTime from args, defaulting to 5 minutes.
func ParseCommonArgs(args map[string]string) (CommonArgs, error) {
	ca := CommonArgs{MaxCacheTime: defaultMaxCacheTime}
	if raw, ok := args["MaxCacheTime"]; ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return CommonArgs{}, fmt.Errorf("backend: invalid MaxCacheTime %q: %w", raw, err)
		}
		ca.MaxCacheTime = d
	}
	return ca, nil
}

// StripLockoutArgs returns a copy of args with the realm-mapping-only keys
// removed, for backends that fold the remaining args into a source-specific
// string (ODBC connection strings, LDAP server lists).
func StripLockoutArgs(args map[string]string) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		if _, skip := lockoutArgKeys[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}

var envMacro = regexp.MustCompile(`\$\(([A-Za-z_][A-Za-z0-9_]*)\)`)

// ExpandEnv expands $(name) macros against the process environment, per
// spec §4.2 ("Environment-variable macros $(name) inside args are
// expanded"). Unknown names expand to the empty string.
func ExpandEnv(s string) string {
	return envMacro.ReplaceAllStringFunc(s, func(m string) string {
		name := envMacro.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
}

// ArgBool parses a boolean arg with a default, accepting the same forms as
// strconv.ParseBool.
func ArgBool(args map[string]string, key string, def bool) bool {
	raw, ok := args[key]
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

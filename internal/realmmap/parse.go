package realmmap

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/backend"
)

// parseEntries parses the File/Config wire format (spec §4.2, §9 "Realm map
// format"): "realm$$extensionTypeRef$$argString$$queryString", "$$"
// separated, "//" comments, blank lines ignored. Duplicate realms within
// one snapshot are a hard error for File and Config (ODBCProvider also
// rejects them; the engine itself merely logs-and-skips duplicates that a
// custom provider lets through).
func parseEntries(backends *backend.Registry, lines []string) ([]authtypes.RealmMapping, error) {
	seen := make(map[string]struct{})
	var mappings []authtypes.RealmMapping

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		parts := strings.SplitN(line, "$$", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("realmmap: malformed entry on line %d: %q", i+1, line)
		}
		realm := strings.TrimSpace(parts[0])
		lowerRealm := strings.ToLower(realm)
		if _, dup := seen[lowerRealm]; dup {
			return nil, fmt.Errorf("realmmap: duplicate realm %q on line %d", realm, i+1)
		}
		seen[lowerRealm] = struct{}{}

		args, err := parseArgs(parts[2])
		if err != nil {
			return nil, fmt.Errorf("realmmap: line %d: %w", i+1, err)
		}

		mapping := authtypes.RealmMapping{
			Realm:         realm,
			ExtensionType: strings.TrimSpace(parts[1]),
			Args:          args,
			Query:         backend.ExpandEnv(parts[3]),
		}
		if err := applyLockoutArgs(&mapping, args); err != nil {
			return nil, fmt.Errorf("realmmap: line %d: %w", i+1, err)
		}
		if err := openExtension(backends, &mapping); err != nil {
			return nil, fmt.Errorf("realmmap: line %d: %w", i+1, err)
		}
		mappings = append(mappings, mapping)
	}
	return mappings, nil
}

// openExtension constructs and opens the backend extension named by
// mapping.ExtensionType, attaching it to mapping.Extension.
func openExtension(backends *backend.Registry, mapping *authtypes.RealmMapping) error {
	ext, err := backends.New(mapping.ExtensionType)
	if err != nil {
		return err
	}
	if err := ext.Open(mapping.Args, mapping.Query); err != nil {
		return fmt.Errorf("opening extension for realm %q: %w", mapping.Realm, err)
	}
	mapping.Extension = ext
	return nil
}

// parseArgs parses a semicolon-separated Key=Value argument string (spec
// §6 "Backend argument string"), expanding $(name) environment macros in
// each value (spec §4.2).
func parseArgs(raw string) (map[string]string, error) {
	args := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args, nil
	}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed arg %q", pair)
		}
		args[strings.TrimSpace(kv[0])] = backend.ExpandEnv(strings.TrimSpace(kv[1]))
	}
	return args, nil
}

// applyLockoutArgs pulls LockoutCount/LockoutThreshold/LockoutTime out of
// args and onto the mapping itself -- these are consumed by the realm
// mapping layer, not the backend extension (spec §4.1).
func applyLockoutArgs(m *authtypes.RealmMapping, args map[string]string) error {
	if raw, ok := args["LockoutCount"]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid LockoutCount %q: %w", raw, err)
		}
		m.LockoutCount = n
	}
	if raw, ok := args["LockoutThreshold"]; ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid LockoutThreshold %q: %w", raw, err)
		}
		m.LockoutThreshold = d
	}
	if raw, ok := args["LockoutTime"]; ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid LockoutTime %q: %w", raw, err)
		}
		m.LockoutTime = d
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("realmmap: opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("realmmap: reading %s: %w", path, err)
	}
	return lines, nil
}

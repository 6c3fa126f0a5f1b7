package backend

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

// recordKey is the File/Config in-memory lookup key: lower(realm)/lower(account).
type recordStore struct {
	mu      sync.RWMutex
	records map[string]string // recordKey -> password
}

func newRecordStore() *recordStore {
	return &recordStore{records: make(map[string]string)}
}

// loadLines parses "realm;account;password" lines -- blank lines and lines
// starting with "//" are ignored (spec §4.1, reusing the realm-map comment
// convention from §4.2's format note).
func (s *recordStore) loadLines(lines []string) error {
	records := make(map[string]string, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		parts := strings.SplitN(line, ";", 3)
		if len(parts) != 3 {
			return fmt.Errorf("backend: malformed record on line %d: %q", i+1, line)
		}
		key := authtypes.AccountKey(parts[0], parts[1])
		records[key] = parts[2]
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

func (s *recordStore) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backend: opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("backend: reading %s: %w", path, err)
	}
	return s.loadLines(lines)
}

func (s *recordStore) check(realm, account, password string) authtypes.AuthResult {
	key := authtypes.AccountKey(realm, account)

	s.mu.RLock()
	want, ok := s.records[key]
	s.mu.RUnlock()

	if !ok || want != password {
		return authtypes.Rejected(authtypes.StatusAccessDenied, "account not found or password mismatch", 0)
	}
	return authtypes.Authenticated(0)
}

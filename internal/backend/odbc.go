package backend

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

// ODBCExtension authenticates by substituting macros into a SQL query
// template and interpreting the scalar integer it returns (spec §4.1). The
// retrieval pack carries no generic ODBC driver -- only jackc/pgx/v5, the
// teacher's own database layer (internal/database/postgres) -- so this
// targets a Postgres-compatible connection string the way the teacher's
// PostgresPool does, under the "ODBC" name the spec uses for "whatever SQL
// source a deployment points this at."
type ODBCExtension struct {
	open atomic.Bool

	pool         *pgxpool.Pool
	queryTmpl    string
	maxCacheTime CommonArgs
}

func NewODBCExtension() *ODBCExtension {
	return &ODBCExtension{}
}

func (e *ODBCExtension) Open(args map[string]string, query string) error {
	if e.open.Load() {
		return errAlreadyOpen
	}

	ca, err := ParseCommonArgs(args)
	if err != nil {
		return err
	}
	e.maxCacheTime = ca

	dsn := ExpandEnv(args["ConnectionString"])
	if dsn == "" {
		return errors.New("backend: odbc ConnectionString arg is required")
	}
	if query == "" {
		return errors.New("backend: odbc requires a non-empty query template")
	}
	e.queryTmpl = query

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("backend: odbc parsing connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("backend: odbc connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("backend: odbc ping: %w", err)
	}

	e.pool = pool
	e.open.Store(true)
	return nil
}

// substituteMacros expands the spec's $(realm) $(account) $(password)
// $(md5-password) $(sha1-password) $(sha256-password) $(sha512-password)
// macros as single-quoted SQL string literals, escaping embedded quotes by
// doubling them per standard SQL literal escaping.
func substituteMacros(tmpl, realm, account, password string) string {
	lit := func(s string) string {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	hexSum := func(sum []byte) string { return lit(hex.EncodeToString(sum)) }

	md5Sum := md5.Sum([]byte(password))
	sha1Sum := sha1.Sum([]byte(password))
	sha256Sum := sha256.Sum256([]byte(password))
	sha512Sum := sha512.Sum512([]byte(password))

	replacer := strings.NewReplacer(
		"$(realm)", lit(realm),
		"$(account)", lit(account),
		"$(password)", lit(password),
		"$(md5-password)", hexSum(md5Sum[:]),
		"$(sha1-password)", hexSum(sha1Sum[:]),
		"$(sha256-password)", hexSum(sha256Sum[:]),
		"$(sha512-password)", hexSum(sha512Sum[:]),
	)
	return replacer.Replace(tmpl)
}

// resultCodeToStatus maps the spec's 0-8 scalar result codes (§4.1) to a
// Status. Codes outside 0-8 are the caller's responsibility to treat as an
// infrastructure error.
func resultCodeToStatus(code int) (authtypes.Status, bool) {
	switch code {
	case 0:
		return authtypes.StatusAuthenticated, true
	case 1:
		return authtypes.StatusAccessDenied, true
	case 2:
		return authtypes.StatusBadRealm, true
	case 3:
		return authtypes.StatusBadAccount, true
	case 4:
		return authtypes.StatusBadPassword, true
	case 5:
		return authtypes.StatusAccountDisabled, true
	case 6:
		return authtypes.StatusAccountLocked, true
	case 7:
		return authtypes.StatusBadRequest, true
	case 8:
		return authtypes.StatusServerError, true
	default:
		return 0, false
	}
}

func (e *ODBCExtension) Authenticate(ctx context.Context, realm, account, password string) (authtypes.AuthResult, error) {
	if !e.open.Load() {
		return authtypes.AuthResult{}, errNotOpen
	}

	query := substituteMacros(e.queryTmpl, realm, account, password)

	row := e.pool.QueryRow(ctx, query)
	var raw interface{}
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authtypes.Rejected(authtypes.StatusAccessDenied, "empty result set", 0), nil
		}
		return authtypes.AuthResult{}, fmt.Errorf("backend: odbc query: %w", err)
	}

	code, err := toInt(raw)
	if err != nil {
		return authtypes.AuthResult{}, fmt.Errorf("backend: odbc result: %w", err)
	}

	status, ok := resultCodeToStatus(code)
	if !ok {
		return authtypes.AuthResult{}, fmt.Errorf("backend: odbc result code %d out of range 0-8", code)
	}
	if status == authtypes.StatusAuthenticated {
		return authtypes.Authenticated(e.maxCacheTime.MaxCacheTime), nil
	}
	return authtypes.Rejected(status, status.String(), 0), nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unexpected scalar type %T", v)
	}
}

func (e *ODBCExtension) Close() error {
	if e.pool != nil {
		e.pool.Close()
	}
	e.open.Store(false)
	return nil
}

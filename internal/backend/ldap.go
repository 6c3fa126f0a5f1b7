package backend

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

// LDAPExtension authenticates by opening a TCP (optionally TLS) connection
// to a directory server and performing an LDAPv3 simple bind (spec §4.1,
// "performs a bind with account@realm... on the directory's 'invalid
// credentials' indication returns AccessDenied; transport errors throw").
//
// No LDAP client library appears anywhere in the retrieval pack (see
// DESIGN.md); this is a minimal hand-rolled BER/LDAPv3 bind request, not a
// general-purpose client -- it sends exactly one bindRequest and reads
// exactly one bindResponse per Authenticate call, using a short-lived
// connection rather than the pooled-connection style the rest of this
// package follows for ODBC, since a directory bind is not pipelined.
type LDAPExtension struct {
	mu   sync.Mutex
	open atomic.Bool

	servers      []string
	useTLS       bool
	bindPattern  string // "Slash" (realm\account) or "Email" (account@realm)
	dialTimeout  time.Duration
	maxCacheTime CommonArgs
}

func NewLDAPExtension() *LDAPExtension {
	return &LDAPExtension{dialTimeout: 5 * time.Second}
}

func (e *LDAPExtension) Open(args map[string]string, query string) error {
	if e.open.Load() {
		return errAlreadyOpen
	}

	ca, err := ParseCommonArgs(args)
	if err != nil {
		return err
	}
	e.maxCacheTime = ca

	servers := ExpandEnv(args["Servers"])
	if servers == "" {
		return errors.New("backend: ldap Servers arg is required")
	}
	e.servers = strings.Split(servers, ",")
	for i := range e.servers {
		e.servers[i] = strings.TrimSpace(e.servers[i])
	}

	e.useTLS = ArgBool(args, "UseTLS", false)
	e.bindPattern = args["BindFormat"]
	if e.bindPattern == "" {
		e.bindPattern = "Email"
	}
	if raw, ok := args["DialTimeout"]; ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("backend: invalid ldap DialTimeout %q: %w", raw, err)
		}
		e.dialTimeout = d
	}

	e.open.Store(true)
	return nil
}

func (e *LDAPExtension) bindName(realm, account string) string {
	if e.bindPattern == "Slash" {
		return realm + "\\" + account
	}
	return account + "@" + realm
}

func (e *LDAPExtension) Authenticate(ctx context.Context, realm, account, password string) (authtypes.AuthResult, error) {
	if !e.open.Load() {
		return authtypes.AuthResult{}, errNotOpen
	}
	if password == "" {
		// RFC 4513 5.1.2: an LDAPv3 simple bind with an empty password is an
		// unauthenticated bind, always "successful" on the server side -- the
		// engine must never let an empty password reach here, but refuse
		// defensively rather than report a false Authenticated.
		return authtypes.Rejected(authtypes.StatusBadPassword, "empty password", 0), nil
	}

	dn := e.bindName(realm, account)

	var lastErr error
	for _, server := range e.servers {
		conn, err := e.dial(ctx, server)
		if err != nil {
			lastErr = err
			continue
		}
		result, bindErr := simpleBind(conn, dn, password)
		conn.Close()
		if bindErr != nil {
			lastErr = bindErr
			continue
		}
		if result.Status == authtypes.StatusAuthenticated {
			result.MaxCacheTime = e.maxCacheTime.MaxCacheTime
		}
		return result, nil
	}
	return authtypes.AuthResult{}, fmt.Errorf("backend: ldap bind failed against all configured servers: %w", lastErr)
}

func (e *LDAPExtension) dial(ctx context.Context, server string) (net.Conn, error) {
	d := net.Dialer{Timeout: e.dialTimeout}
	if e.useTLS {
		host := server
		if _, _, err := net.SplitHostPort(server); err != nil {
			host = net.JoinHostPort(server, "636")
		}
		return tls.DialWithDialer(&d, "tcp", host, &tls.Config{MinVersion: tls.VersionTLS12})
	}
	host := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		host = net.JoinHostPort(server, "389")
	}
	return d.DialContext(ctx, "tcp", host)
}

func (e *LDAPExtension) Close() error {
	e.open.Store(false)
	return nil
}

// --- minimal LDAPv3 bind request/response encoding (BER) ---
//
// This is deliberately narrow: one message ID, one simple BindRequest, one
// BindResponse. It exists only because no LDAP client library is available
// anywhere in the retrieval pack (DESIGN.md); it is not a general BER codec.

const (
	ldapResultSuccess            = 0
	ldapResultInvalidCredentials = 49
)

func simpleBind(conn net.Conn, dn, password string) (authtypes.AuthResult, error) {
	req := encodeBindRequest(1, dn, password)
	if _, err := conn.Write(req); err != nil {
		return authtypes.AuthResult{}, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return authtypes.AuthResult{}, err
	}

	code, err := decodeBindResponseResultCode(buf[:n])
	if err != nil {
		return authtypes.AuthResult{}, err
	}

	switch code {
	case ldapResultSuccess:
		return authtypes.Authenticated(0), nil
	case ldapResultInvalidCredentials:
		return authtypes.Rejected(authtypes.StatusAccessDenied, "invalid credentials", 0), nil
	default:
		return authtypes.AuthResult{}, fmt.Errorf("backend: ldap bind returned result code %d", code)
	}
}

func berLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte(n & 0xff)}, b...)
		n >>= 8
	}
	return append([]byte{byte(0x80 | len(b))}, b...)
}

func berTLV(tag byte, content []byte) []byte {
	out := []byte{tag}
	out = append(out, berLength(len(content))...)
	return append(out, content...)
}

func berInt(tag byte, v int) []byte {
	return berTLV(tag, []byte{byte(v)})
}

// encodeBindRequest builds a full LDAPMessage containing a simple
// BindRequest: version 3, name = dn, simple authentication = password.
func encodeBindRequest(messageID int, dn, password string) []byte {
	version := berInt(0x02, 3)
	name := berTLV(0x04, []byte(dn))
	auth := berTLV(0x80, []byte(password)) // [0] simple, context-specific primitive
	bindReq := berTLV(0x60, append(append(version, name...), auth...))
	msgID := berInt(0x02, messageID)
	msg := berTLV(0x30, append(msgID, bindReq...))
	return msg
}

// decodeBindResponseResultCode extracts the enumerated resultCode from a
// BindResponse without validating the full ASN.1 structure.
func decodeBindResponseResultCode(data []byte) (int, error) {
	// SEQUENCE { messageID INTEGER, protocolOp [APPLICATION 1] SEQUENCE { resultCode ENUMERATED, ... } }
	_, rest, err := berReadTLV(data)
	if err != nil {
		return 0, err
	}
	_, inner, err := berReadTLV(rest)
	if err != nil {
		return 0, err
	}
	// inner starts with messageID INTEGER TLV, then the bindResponse TLV.
	_, afterMsgID, err := berReadTLV(inner)
	if err != nil {
		return 0, err
	}
	opTag, opContent, _, err := berReadTLVFull(afterMsgID)
	if err != nil {
		return 0, err
	}
	if opTag != 0x61 { // [APPLICATION 1] BindResponse
		return 0, fmt.Errorf("backend: unexpected ldap response tag 0x%x", opTag)
	}
	resultTag, resultContent, _, err := berReadTLVFull(opContent)
	if err != nil {
		return 0, err
	}
	if resultTag != 0x0a { // ENUMERATED
		return 0, fmt.Errorf("backend: unexpected ldap resultCode tag 0x%x", resultTag)
	}
	code := 0
	for _, b := range resultContent {
		code = code<<8 | int(b)
	}
	return code, nil
}

func berReadTLV(data []byte) (content []byte, rest []byte, err error) {
	_, c, r, err := berReadTLVFull(data)
	return c, r, err
}

func berReadTLVFull(data []byte) (tag byte, content []byte, rest []byte, err error) {
	if len(data) < 2 {
		return 0, nil, nil, errors.New("backend: truncated ldap BER element")
	}
	tag = data[0]
	length := int(data[1])
	offset := 2
	if length&0x80 != 0 {
		numBytes := length & 0x7f
		if len(data) < offset+numBytes {
			return 0, nil, nil, errors.New("backend: truncated ldap BER length")
		}
		length = 0
		for i := 0; i < numBytes; i++ {
			length = length<<8 | int(data[offset+i])
		}
		offset += numBytes
	}
	if len(data) < offset+length {
		return 0, nil, nil, errors.New("backend: truncated ldap BER content")
	}
	return tag, data[offset : offset+length], data[offset+length:], nil
}

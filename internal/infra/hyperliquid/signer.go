package hyperliquid

import (
	"encoding/binary"
	"fmt"
	"io"
	stdnet "net"
	"time"

	"github.com/goccy/go-json"

	"connector_go/internal/domain"
)

// Signature is an ECDSA signature in the r/s/v form the exchange expects.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// SignParams is one signing request. ActionJSON is the exact serialized
// action that will be placed in the request body.
type SignParams struct {
	ActionJSON    string
	NonceMS       int64
	IsMainnet     bool
	PrivateKeyHex string
	ActivePool    string // vault address, empty for none
	ExpiresAfter  *int64
}

// ActionSigner produces wallet signatures for exchange actions.
type ActionSigner interface {
	Sign(p SignParams) (Signature, error)
}

// signerRequest is the line-protocol request: length-prefixed JSON out,
// length-prefixed JSON back.
type signerRequest struct {
	ActionJSON   string  `json:"action_json"`
	Nonce        int64   `json:"nonce"`
	IsMainnet    bool    `json:"is_mainnet"`
	PrivateKey   string  `json:"private_key"`
	ActivePool   *string `json:"active_pool"`
	ExpiresAfter *int64  `json:"expires_after"`
}

// DaemonSigner talks to the external signer over a unix-domain socket,
// falling back to TCP loopback. The daemon must answer within the 50 ms
// deadline or the operation aborts.
type DaemonSigner struct {
	SocketPath string
	TCPAddr    string
	Timeout    time.Duration
}

func NewDaemonSigner(socketPath, tcpAddr string) *DaemonSigner {
	if socketPath == "" {
		socketPath = DefaultSignerSocket
	}
	if tcpAddr == "" {
		tcpAddr = DefaultSignerTCPAddr
	}
	return &DaemonSigner{SocketPath: socketPath, TCPAddr: tcpAddr, Timeout: signerTimeout}
}

func (s *DaemonSigner) Sign(p SignParams) (Signature, error) {
	conn, err := s.dial()
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", domain.ErrSignerUnavailable, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.Timeout))

	req := signerRequest{
		ActionJSON: p.ActionJSON,
		Nonce:      p.NonceMS,
		IsMainnet:  p.IsMainnet,
		PrivateKey: p.PrivateKeyHex,
	}
	if p.ActivePool != "" {
		pool := p.ActivePool
		req.ActivePool = &pool
	}
	req.ExpiresAfter = p.ExpiresAfter

	payload, err := json.Marshal(req)
	if err != nil {
		return Signature{}, err
	}
	if err := writeFrame(conn, payload); err != nil {
		return Signature{}, fmt.Errorf("%w: %v", domain.ErrSignerUnavailable, err)
	}

	resp, err := readFrame(conn)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", domain.ErrSignerUnavailable, err)
	}

	var sig Signature
	if err := json.Unmarshal(resp, &sig); err != nil {
		return Signature{}, fmt.Errorf("%w: bad signer reply: %v", domain.ErrSignerUnavailable, err)
	}
	if sig.R == "" || sig.S == "" {
		return Signature{}, fmt.Errorf("%w: empty signature", domain.ErrSignerUnavailable)
	}
	return sig, nil
}

func (s *DaemonSigner) dial() (stdnet.Conn, error) {
	if conn, err := stdnet.DialTimeout("unix", s.SocketPath, s.Timeout); err == nil {
		return conn, nil
	}
	return stdnet.DialTimeout("tcp", s.TCPAddr, s.Timeout)
}

// writeFrame sends a 4-byte big-endian length prefix followed by the
// payload.
func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > 1<<20 {
		return nil, fmt.Errorf("bad frame length %d", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

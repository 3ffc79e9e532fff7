package bitget

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"time"

	"connector_go/internal/net"
)

// Signer handles Bitget V2 API authentication signatures.
type Signer struct {
	accessKey  string
	secretKey  string
	passphrase string
}

func NewSigner(accessKey, secretKey, passphrase string) *Signer {
	return &Signer{
		accessKey:  accessKey,
		secretKey:  secretKey,
		passphrase: passphrase,
	}
}

// preimage builds the string to sign: timestamp + method + path + body.
// The venue verifies this byte-for-byte.
func (s *Signer) preimage(ts, method, path, body string) string {
	return ts + method + path + body
}

// Headers creates the signed request headers for one call.
func (s *Signer) Headers(ts, method, path, body string) []net.Header {
	sign := computeHmacSha256(s.preimage(ts, method, path, body), s.secretKey)
	return []net.Header{
		{Key: "ACCESS-KEY", Value: s.accessKey},
		{Key: "ACCESS-SIGN", Value: sign},
		{Key: "ACCESS-TIMESTAMP", Value: ts},
		{Key: "ACCESS-PASSPHRASE", Value: s.passphrase},
		{Key: "Content-Type", Value: "application/json"},
		{Key: "locale", Value: "en-US"},
	}
}

// computeHmacSha256 returns base64 of the raw HMAC bytes, as the REST API
// expects.
func computeHmacSha256(message, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// loginPayload builds the private-channel login message. The websocket
// login signs ts + "GET/user/verify" and, unlike REST, sends lowercase hex.
func loginPayload(apiKey, apiSecret, passphrase string, tsMS int64) string {
	ts := strconv.FormatInt(tsMS, 10)
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(ts + "GET/user/verify"))
	sign := hex.EncodeToString(mac.Sum(nil))

	return `{"op":"login","args":[{"apiKey":"` + apiKey +
		`","passphrase":"` + passphrase +
		`","timestamp":"` + ts +
		`","sign":"` + sign + `"}]}`
}

// RestClient signs and dispatches Bitget REST calls over the shared
// transport.
type RestClient struct {
	signer    *Signer
	endpoint  string
	transport Poster
}

// Poster is the transport surface the REST client writes through.
type Poster interface {
	Post(url, body string, headers []net.Header, onSuccess func([]byte), onError func(string))
}

func NewRestClient(apiKey, apiSecret, passphrase, endpoint string, transport Poster) *RestClient {
	return &RestClient{
		signer:    NewSigner(apiKey, apiSecret, passphrase),
		endpoint:  endpoint,
		transport: transport,
	}
}

func (c *RestClient) Post(path, body string, onSuccess func([]byte), onError func(string)) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	headers := c.signer.Headers(ts, "POST", path, body)
	c.transport.Post(c.endpoint+path, body, headers, onSuccess, onError)
}

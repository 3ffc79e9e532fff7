package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"connector_go/internal/net"
)

// Poster is the transport surface the REST client writes through.
// *net.Transport satisfies it.
type Poster interface {
	Post(url, body string, headers []net.Header, onSuccess func([]byte), onError func(string))
}

// RestClient signs Bybit v5 requests. The canonical preimage is
// ts || apiKey || recvWindow || body; the venue rejects any deviation.
type RestClient struct {
	apiKey    string
	apiSecret string
	endpoint  string
	transport Poster
}

func NewRestClient(apiKey, apiSecret, endpoint string, transport Poster) *RestClient {
	return &RestClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		endpoint:  endpoint,
		transport: transport,
	}
}

// Post signs and dispatches one request. Continuations pass through to the
// transport untouched.
func (c *RestClient) Post(path, body string, onSuccess func([]byte), onError func(string)) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sig := c.sign(ts, body)

	headers := []net.Header{
		{Key: "Content-Type", Value: "application/json"},
		{Key: "X-BAPI-API-KEY", Value: c.apiKey},
		{Key: "X-BAPI-SIGN", Value: sig},
		{Key: "X-BAPI-SIGN-TYPE", Value: "2"},
		{Key: "X-BAPI-TIMESTAMP", Value: ts},
		{Key: "X-BAPI-RECV-WINDOW", Value: recvWindow},
	}

	c.transport.Post(c.endpoint+path, body, headers, onSuccess, onError)
}

func (c *RestClient) preimage(ts, body string) string {
	return ts + c.apiKey + recvWindow + body
}

func (c *RestClient) sign(ts, body string) string {
	return hmacHex(c.apiSecret, c.preimage(ts, body))
}

func hmacHex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// wsAuthPayload builds the private-channel auth message. The signed string
// is "GET/realtime" || expires.
func wsAuthPayload(apiKey, apiSecret string, expiresMS int64) string {
	expires := strconv.FormatInt(expiresMS, 10)
	sig := hmacHex(apiSecret, "GET/realtime"+expires)
	return `{"op":"auth","args":["` + apiKey + `",` + expires + `,"` + sig + `"]}`
}

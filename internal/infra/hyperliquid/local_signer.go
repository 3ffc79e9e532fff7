package hyperliquid

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"connector_go/internal/domain"
)

// LocalSigner signs exchange actions in-process with the agent typed-data
// scheme, for deployments without the signer daemon. The daemon remains
// authoritative for the byte-level action hash; the local derivation keys
// the connection id off the serialized action.
type LocalSigner struct{}

func (LocalSigner) Sign(p SignParams) (Signature, error) {
	if p.PrivateKeyHex == "" {
		return Signature{}, fmt.Errorf("%w: no private key", domain.ErrSignerUnavailable)
	}
	key, err := crypto.HexToECDSA(trimHexPrefix(p.PrivateKeyHex))
	if err != nil {
		return Signature{}, fmt.Errorf("%w: bad private key: %v", domain.ErrSignerUnavailable, err)
	}

	connectionID := connectionIDFor(p)

	source := "b"
	if p.IsMainnet {
		source = "a"
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": []apitypes.Type{
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              "Exchange",
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(1337)),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": hexutil.Encode(connectionID),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return Signature{}, err
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return Signature{}, err
	}
	digest := crypto.Keccak256(
		[]byte{0x19, 0x01},
		domainSeparator,
		messageHash,
	)

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return Signature{}, err
	}
	return Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: int(sig[64]) + 27,
	}, nil
}

// connectionIDFor hashes the serialized action, nonce, and vault flag into
// the 32-byte connection id the agent signs over.
func connectionIDFor(p SignParams) []byte {
	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], uint64(p.NonceMS))

	parts := [][]byte{[]byte(p.ActionJSON), nonceBuf[:]}
	if p.ActivePool != "" {
		parts = append(parts, []byte{0x01}, []byte(p.ActivePool))
	} else {
		parts = append(parts, []byte{0x00})
	}
	return crypto.Keccak256(parts...)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

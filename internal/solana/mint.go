package solana

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program IDs.
const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	MetaplexProgramID  = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
)

const (
	mintAccountSize    = 82
	metadataKeyV1      = 4
	maxMetadataNameLen = 100
	maxMetadataSymLen  = 20
)

// ErrInvalidAddress is returned for strings that are not 32-byte base58 keys.
var ErrInvalidAddress = errors.New("invalid solana address")

// Mint is a decoded SPL Token mint account.
type Mint struct {
	Supply          uint64
	Decimals        int
	MintAuthority   string // empty when the authority is revoked
	FreezeAuthority string
	Initialized     bool
}

// FixedSupply reports whether no further tokens can be minted.
func (m Mint) FixedSupply() bool {
	return m.MintAuthority == ""
}

// ParseMint decodes base64 SPL Token mint account data.
// Layout (82 bytes):
//   - mintAuthority: COption<Pubkey> (4 + 32)
//   - supply: u64
//   - decimals: u8
//   - isInitialized: bool
//   - freezeAuthority: COption<Pubkey> (4 + 32)
func ParseMint(data string) (*Mint, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode mint data: %w", err)
	}
	if len(decoded) < mintAccountSize {
		return nil, fmt.Errorf("mint data too short: %d", len(decoded))
	}

	return &Mint{
		MintAuthority:   optionalPubkey(decoded[0:36]),
		Supply:          binary.LittleEndian.Uint64(decoded[36:44]),
		Decimals:        int(decoded[44]),
		Initialized:     decoded[45] == 1,
		FreezeAuthority: optionalPubkey(decoded[46:82]),
	}, nil
}

func optionalPubkey(b []byte) string {
	if binary.LittleEndian.Uint32(b[:4]) == 0 {
		return ""
	}
	return base58.Encode(b[4:36])
}

// TokenMetadata holds the Metaplex name and symbol of a mint.
type TokenMetadata struct {
	Name   string
	Symbol string
}

// ParseMetadata decodes base64 Metaplex Token Metadata account data.
// Layout:
//   - key: u8 (4 for MetadataV1)
//   - updateAuthority: Pubkey
//   - mint: Pubkey
//   - name, symbol, uri: borsh strings (u32 length + bytes)
func ParseMetadata(data string) (*TokenMetadata, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if len(decoded) < 69 {
		return nil, fmt.Errorf("metadata too short: %d", len(decoded))
	}
	if decoded[0] != metadataKeyV1 {
		return nil, fmt.Errorf("unexpected metadata key %d", decoded[0])
	}

	offset := 65
	name, offset, err := borshString(decoded, offset, maxMetadataNameLen)
	if err != nil {
		return nil, fmt.Errorf("metadata name: %w", err)
	}
	symbol, _, err := borshString(decoded, offset, maxMetadataSymLen)
	if err != nil {
		return nil, fmt.Errorf("metadata symbol: %w", err)
	}

	return &TokenMetadata{Name: name, Symbol: symbol}, nil
}

func borshString(b []byte, offset, maxLen int) (string, int, error) {
	if offset+4 > len(b) {
		return "", offset, errors.New("truncated length")
	}
	n := int(binary.LittleEndian.Uint32(b[offset:]))
	offset += 4
	if n > maxLen || offset+n > len(b) {
		return "", offset, fmt.Errorf("bad length %d", n)
	}
	s := strings.TrimRight(string(b[offset:offset+n]), "\x00")
	return strings.TrimSpace(s), offset + n, nil
}

// DecodeAddress decodes a base58 public key.
func DecodeAddress(addr string) ([]byte, error) {
	b, err := base58.Decode(addr)
	if err != nil || len(b) != 32 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return b, nil
}

// IsAddress reports whether s is a 32-byte base58 key.
func IsAddress(s string) bool {
	_, err := DecodeAddress(s)
	return err == nil
}

// MetadataPDA derives the Metaplex metadata account for a mint.
// Seeds: ["metadata", metaplex_program_id, mint].
func MetadataPDA(mint string) (string, error) {
	mintBytes, err := DecodeAddress(mint)
	if err != nil {
		return "", err
	}
	programBytes, err := DecodeAddress(MetaplexProgramID)
	if err != nil {
		return "", err
	}
	return FindProgramAddress([][]byte{[]byte("metadata"), programBytes, mintBytes}, programBytes)
}

// FindProgramAddress searches bump seeds from 255 down for the first hash
// that is off the ed25519 curve.
func FindProgramAddress(seeds [][]byte, programID []byte) (string, error) {
	for bump := 255; bump > 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(programID)
		h.Write([]byte("ProgramDerivedAddress"))
		sum := h.Sum(nil)

		if !isOnCurve(sum) {
			return base58.Encode(sum), nil
		}
	}
	return "", errors.New("no viable bump seed")
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

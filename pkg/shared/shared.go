package shared

import (
	"crypto/ed25519"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of smallest units in one SOL.
const LamportsPerSOL = 1_000_000_000

type Commitment int

const (
	Processed Commitment = iota
	Confirmed
	Finalized
)

func (c Commitment) String() string {
	switch c {
	case Processed:
		return "processed"
	case Confirmed:
		return "confirmed"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// ParseCommitment maps a config value to a Commitment. The empty string
// yields def.
func ParseCommitment(s string, def Commitment) (Commitment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "processed":
		return Processed, nil
	case "confirmed":
		return Confirmed, nil
	case "finalized":
		return Finalized, nil
	default:
		return def, fmt.Errorf("%w: unknown commitment %q", ErrConfig, s)
	}
}

// ChainEvent is one block-metadata notification from the event feed.
type ChainEvent struct {
	BlockHash string
	Slot      uint64
}

// ParseAddress parses a base58 wallet address.
func ParseAddress(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: invalid address %q: %w", ErrParse, s, err)
	}
	return pk, nil
}

// Signer holds an ed25519 keypair owned by the process for one run.
type Signer struct {
	key solana.PrivateKey
}

// ParseSigner decodes a base58 encoded 64 byte secret key.
func ParseSigner(secret string) (Signer, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(secret))
	if err != nil {
		return Signer{}, fmt.Errorf("%w: invalid secret key: %w", ErrParse, err)
	}
	return NewSigner(key)
}

func NewSigner(key solana.PrivateKey) (Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return Signer{}, fmt.Errorf("%w: secret key must be %d bytes, got %d",
			ErrParse, ed25519.PrivateKeySize, len(key))
	}
	cp := make(solana.PrivateKey, len(key))
	copy(cp, key)
	return Signer{key: cp}, nil
}

// Valid reports whether the signer carries usable key material. The zero
// Signer is not valid.
func (s Signer) Valid() bool {
	return len(s.key) == ed25519.PrivateKeySize
}

func (s Signer) PublicKey() solana.PublicKey {
	if !s.Valid() {
		return solana.PublicKey{}
	}
	return s.key.PublicKey()
}

// Key returns a copy of the secret key.
func (s Signer) Key() solana.PrivateKey {
	cp := make(solana.PrivateKey, len(s.key))
	copy(cp, s.key)
	return cp
}

// Transfer is an immutable request to move Amount lamports from the sender to
// the recipient.
type Transfer struct {
	sender    Signer
	recipient solana.PublicKey
	amount    uint64
}

func NewTransfer(sender Signer, recipient solana.PublicKey, amount uint64) Transfer {
	return Transfer{sender: sender, recipient: recipient, amount: amount}
}

func (t Transfer) Sender() Signer              { return t.sender }
func (t Transfer) Recipient() solana.PublicKey { return t.recipient }
func (t Transfer) Amount() uint64              { return t.amount }

func (t Transfer) String() string {
	return fmt.Sprintf("%s SOL from %s to %s", FormatSOL(t.amount), t.sender.PublicKey(), t.recipient)
}

// FormatSOL renders lamports in SOL with at least one fractional digit,
// e.g. 1000000000 -> "1.0", 500000000 -> "0.5".
func FormatSOL(lamports uint64) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// =============================
// File: internal/pumpfun/program.go
// =============================
package pumpfun

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
)

// Known PumpFun protocol addresses
var (
	// Program ID for Pump.fun protocol
	ProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	// Event authority for the Pump.fun protocol
	EventAuthority = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
)

// CreateDiscriminator is the Anchor discriminator of the "create" instruction.
var CreateDiscriminator = []byte{0x18, 0x1e, 0xc8, 0x28, 0x05, 0x1c, 0x07, 0x77}

// Account positions inside a create instruction.
const (
	CreateAccountMint         = 0
	CreateAccountBondingCurve = 2
	CreateAccountUser         = 7
)

// IsCreateInstruction reports whether data starts with the create discriminator.
func IsCreateInstruction(programID string, data []byte) bool {
	return programID == ProgramID.String() && bytes.HasPrefix(data, CreateDiscriminator)
}

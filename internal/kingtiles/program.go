// Package kingtiles provides typed bindings for the on-chain King Tiles program:
// account addresses, instruction builders and board account decoding. The
// orchestrator drives the program exclusively through this package and never
// inspects raw account bytes elsewhere.
package kingtiles

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the King Tiles program on both ledgers.
var ProgramID = solana.MustPublicKeyFromBase58("GAfcEqSSQJm2coiTRf4wL1SDX78jciwE6bN9eHwUaXi9")

// Treasury is the fixed custody address. Every session-lifecycle instruction is
// signed by this key; rewards and fees flow through it.
var Treasury = solana.MustPublicKeyFromBase58("86uKSrcwj3j6gaSkK5Ggvt4ni5rokpBhrk2X2jUjDUoA")

// DelegationProgram owns board accounts on the base ledger while a session is
// delegated to the ephemeral rollup.
var DelegationProgram = solana.MustPublicKeyFromBase58("DELeGGvXpWV2fqJUhqcF5ZSYMS4JTLjteaAMARRSaeSh")

// MagicProgram and MagicContext are the rollup's commit/undelegate entry points.
var (
	MagicProgram = solana.MustPublicKeyFromBase58("Magic11111111111111111111111111111111111111")
	MagicContext = solana.MustPublicKeyFromBase58("MagicContext1111111111111111111111111111111")
)

// VRF oracle accounts for the randomness-request instructions.
var (
	VRFProgram  = solana.MustPublicKeyFromBase58("Vrf1RNUjXmQGjmQrQLvJHs9SNkvDJEsRVFPkfSQUwGz")
	OracleQueue = solana.MustPublicKeyFromBase58("Cuj97ggrhhidhbu39TijNVqE74xvKJ69gDervRUXAxGh")
)

// Board cell markers.
const (
	CellEmpty   = 0
	CellBomb    = 253
	CellPowerup = 254
	CellKing    = 255
)

// MaxBoardCells is the size of the flat cell array in the account layout.
const MaxBoardCells = 144

// BoardAddress derives the board PDA for a game id:
// seeds ["board", treasury, game_id_le].
func BoardAddress(gameID uint64) (solana.PublicKey, error) {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, gameID)
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("board"), Treasury.Bytes(), seed},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive board address for game %d: %w", gameID, err)
	}
	return addr, nil
}

// MustBoardAddress is BoardAddress for callers that treat derivation failure as
// a programming error (the seeds are fixed, so it cannot fail for valid ids).
func MustBoardAddress(gameID uint64) solana.PublicKey {
	addr, err := BoardAddress(gameID)
	if err != nil {
		panic(err)
	}
	return addr
}

// vrfIdentity derives the VRF program identity PDA that co-signs callbacks.
func vrfIdentity() solana.PublicKey {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("identity")}, VRFProgram)
	if err != nil {
		panic(err)
	}
	return addr
}

// delegationBuffer derives the delegation buffer PDA for a board account,
// owned by the game program.
func delegationBuffer(board solana.PublicKey) solana.PublicKey {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("buffer"), board.Bytes()}, ProgramID)
	if err != nil {
		panic(err)
	}
	return addr
}

// delegationRecord and delegationMetadata derive the delegation program's
// bookkeeping PDAs for a board account.
func delegationRecord(board solana.PublicKey) solana.PublicKey {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("delegation"), board.Bytes()}, DelegationProgram)
	if err != nil {
		panic(err)
	}
	return addr
}

func delegationMetadata(board solana.PublicKey) solana.PublicKey {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("delegation-metadata"), board.Bytes()}, DelegationProgram)
	if err != nil {
		panic(err)
	}
	return addr
}

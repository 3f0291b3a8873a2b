package kingtiles

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Anchor instruction discriminators (sha256("global:<name>")[0:8]).
var (
	ixStartGameSession  = [8]byte{0x31, 0x53, 0x32, 0xf2, 0x3f, 0x8d, 0xf4, 0x15}
	ixDelegateBoard     = [8]byte{0x6f, 0xa7, 0x06, 0x98, 0xe6, 0x30, 0x08, 0x5b}
	ixRandomnessKing    = [8]byte{0x60, 0x2a, 0x10, 0x37, 0xe2, 0x68, 0x29, 0x0a}
	ixRandomnessPowerup = [8]byte{0xdd, 0x0b, 0xfc, 0x9b, 0x79, 0xaa, 0x42, 0xa4}
	ixRandomnessBomb    = [8]byte{0x46, 0xfc, 0xbd, 0xe1, 0x8e, 0x8f, 0x03, 0x89}
	ixUpdatePlayerScore = [8]byte{0x3d, 0xa8, 0x6b, 0x96, 0x2e, 0xbd, 0xce, 0xad}
	ixEndGameSession    = [8]byte{0x21, 0xe7, 0x5d, 0x0b, 0xb5, 0xb2, 0x3b, 0xa0}
	ixDistributeRewards = [8]byte{0x61, 0x06, 0xe3, 0xff, 0x7c, 0xa5, 0x03, 0x94}
	ixCloseBoard        = [8]byte{0x75, 0x04, 0x23, 0xa6, 0x50, 0xe9, 0x99, 0x2a}
)

func appendU64(buf []byte, v uint64) []byte {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], v)
	return append(buf, le[:]...)
}

// StartGameSession builds the instruction that initializes a board for gameID
// with the given mode and economics.
func StartGameSession(gameID uint64, boardSideLen, maxPlayers uint8, feeLamports, lamportsPerScore uint64) solana.Instruction {
	data := append([]byte{}, ixStartGameSession[:]...)
	data = appendU64(data, gameID)
	data = append(data, boardSideLen, maxPlayers)
	data = appendU64(data, feeLamports)
	data = appendU64(data, lamportsPerScore)

	board := MustBoardAddress(gameID)
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(Treasury, true, true),
		solana.NewAccountMeta(board, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data)
}

// DelegateBoard builds the instruction that hands the board account over to
// the delegation program so the rollup can execute against it.
func DelegateBoard(gameID uint64) solana.Instruction {
	data := append([]byte{}, ixDelegateBoard[:]...)
	data = appendU64(data, gameID)

	board := MustBoardAddress(gameID)
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(Treasury, true, true),
		solana.NewAccountMeta(board, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(board, true, false),
		solana.NewAccountMeta(delegationBuffer(board), true, false),
		solana.NewAccountMeta(delegationRecord(board), true, false),
		solana.NewAccountMeta(delegationMetadata(board), true, false),
		solana.NewAccountMeta(ProgramID, false, false),
		solana.NewAccountMeta(DelegationProgram, false, false),
	}, data)
}

// randomnessRequest builds one of the three VRF request instructions. The seed
// feeds the oracle's caller seed; the callback mutates the board.
func randomnessRequest(disc [8]byte, clientSeed uint8, gameID uint64) solana.Instruction {
	data := append([]byte{}, disc[:]...)
	data = append(data, clientSeed)
	data = appendU64(data, gameID)

	board := MustBoardAddress(gameID)
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(Treasury, true, true),
		solana.NewAccountMeta(board, true, false),
		solana.NewAccountMeta(OracleQueue, true, false),
		solana.NewAccountMeta(vrfIdentity(), false, false),
		solana.NewAccountMeta(VRFProgram, false, false),
		solana.NewAccountMeta(solana.SysVarSlotHashesPubkey, false, false),
	}, data)
}

// RequestKingMove asks the VRF oracle to relocate the king tile.
func RequestKingMove(clientSeed uint8, gameID uint64) solana.Instruction {
	return randomnessRequest(ixRandomnessKing, clientSeed, gameID)
}

// RequestPowerupSpawn asks the VRF oracle to relocate the powerup tile.
func RequestPowerupSpawn(clientSeed uint8, gameID uint64) solana.Instruction {
	return randomnessRequest(ixRandomnessPowerup, clientSeed, gameID)
}

// RequestBombDrop asks the VRF oracle to relocate the bomb tile.
func RequestBombDrop(clientSeed uint8, gameID uint64) solana.Instruction {
	return randomnessRequest(ixRandomnessBomb, clientSeed, gameID)
}

// UpdatePlayerScore builds the relayer score tick: the program credits one
// point to whichever player currently occupies the king tile.
func UpdatePlayerScore(gameID uint64) solana.Instruction {
	data := append([]byte{}, ixUpdatePlayerScore[:]...)
	data = appendU64(data, gameID)

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(Treasury, true, true),
		solana.NewAccountMeta(MustBoardAddress(gameID), true, false),
	}, data)
}

// EndGameSession builds the commit-and-undelegate instruction that returns the
// board (with final state) to the base ledger.
func EndGameSession(gameID uint64) solana.Instruction {
	data := append([]byte{}, ixEndGameSession[:]...)
	data = appendU64(data, gameID)

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(Treasury, true, true),
		solana.NewAccountMeta(MustBoardAddress(gameID), true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(MagicContext, true, false),
		solana.NewAccountMeta(MagicProgram, false, false),
	}, data)
}

// DistributeRewards builds the payout instruction. Payees must be appended as
// writable remaining accounts in board order; the program pays each one
// score * lamports_per_score from the treasury.
func DistributeRewards(gameID uint64, payees []solana.PublicKey) solana.Instruction {
	data := append([]byte{}, ixDistributeRewards[:]...)
	data = appendU64(data, gameID)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(Treasury, true, true),
		solana.NewAccountMeta(MustBoardAddress(gameID), true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	for _, payee := range payees {
		metas = append(metas, solana.NewAccountMeta(payee, true, false))
	}
	return solana.NewInstruction(ProgramID, metas, data)
}

// CloseBoard builds the instruction that closes the board PDA and reclaims its
// rent to the treasury.
func CloseBoard(gameID uint64) solana.Instruction {
	data := append([]byte{}, ixCloseBoard[:]...)
	data = appendU64(data, gameID)

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(MustBoardAddress(gameID), true, false),
		solana.NewAccountMeta(Treasury, true, true),
	}, data)
}

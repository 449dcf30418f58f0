// Package validator classifies unsigned transactions before they reach the
// approval gate. Validation is pure: it collects every structural problem
// instead of failing fast, and never touches vault or session state.
package validator

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/akarpov/svsim/internal/model"
)

const (
	// BaseFeeLamports and PerInstructionFeeLamports make up the estimated
	// fee heuristic. This is not a network quote.
	BaseFeeLamports           = 5000
	PerInstructionFeeLamports = 1000

	// HighValueLamports is the default transfer amount above which an
	// ordinary transfer still requires explicit user approval (1 SOL).
	HighValueLamports = 1_000_000_000

	// transferLamportsOffset is where the lamport amount sits inside a
	// system-program transfer instruction: 4 bytes of instruction index,
	// then a little-endian u64. The decode reads this offset without
	// checking the instruction index first, so a non-transfer system
	// instruction of the same length can be misread as a transfer.
	transferLamportsOffset = 4
	transferDataLen        = 12
)

// Validate checks tx structurally and classifies it. All problems are
// collected; a missing blockhash is only a warning because the simulator
// never submits to a network.
func Validate(tx *model.Transaction) model.ValidationResult {
	res := model.ValidationResult{Metadata: model.TransactionMetadata{Type: model.TypeUnknown}}

	if tx == nil {
		res.Errors = append(res.Errors, "transaction is nil")
		return res
	}

	if len(tx.Instructions) == 0 {
		res.Errors = append(res.Errors, "transaction has no instructions")
	}
	// The system program cannot sign or pay fees, so a zero fee payer
	// always means the field was never set.
	if tx.FeePayer.IsZero() {
		res.Errors = append(res.Errors, "transaction has no fee payer")
	}
	if tx.RecentBlockhash == "" {
		res.Warnings = append(res.Warnings, "transaction has no recent blockhash")
	}

	accounts := make(map[solana.PublicKey]struct{})
	programs := make(map[solana.PublicKey]struct{})
	for i, inst := range tx.Instructions {
		// The system program id is the all-zero public key, so an unset
		// program id cannot be told apart from a system-program
		// invocation and counts as one.
		programs[inst.ProgramID] = struct{}{}
		for j, acc := range inst.Accounts {
			// A zero account key is treated as an unset field. This
			// misreads instructions that list the system program among
			// their accounts, which none of the builders here produce.
			if acc.PublicKey.IsZero() {
				res.Errors = append(res.Errors, fmt.Sprintf("instruction %d account %d has no public key", i, j))
				continue
			}
			accounts[acc.PublicKey] = struct{}{}
		}
	}

	res.Metadata = buildMetadata(tx, programs, accounts)
	res.IsValid = len(res.Errors) == 0
	return res
}

func buildMetadata(tx *model.Transaction, programs map[solana.PublicKey]struct{}, accounts map[solana.PublicKey]struct{}) model.TransactionMetadata {
	md := model.TransactionMetadata{
		InstructionCount: len(tx.Instructions),
		AccountCount:     len(accounts),
		EstimatedFee:     uint64(BaseFeeLamports + PerInstructionFeeLamports*len(tx.Instructions)),
	}

	for p := range programs {
		md.ProgramIDs = append(md.ProgramIDs, p.String())
		switch p {
		case solana.SystemProgramID:
			md.HasSystemProgram = true
		case solana.TokenProgramID:
			md.HasTokenProgram = true
		}
	}
	sort.Strings(md.ProgramIDs)

	if md.HasSystemProgram {
		if lamports, recipient, ok := decodeNativeTransfer(tx); ok {
			md.TransferLamports = &lamports
			md.TransferRecipient = recipient
		}
	}

	md.Type = classify(md, len(programs))
	return md
}

// classify applies the type decision table over the collected metadata.
func classify(md model.TransactionMetadata, programCount int) model.TransactionType {
	switch {
	case md.HasTokenProgram:
		return model.TypeTokenTransfer
	case programCount == 1 && md.HasSystemProgram && md.TransferLamports != nil:
		return model.TypeTransfer
	case programCount == 1 && md.HasSystemProgram:
		return model.TypeAccountCreation
	case programCount > 1 || (programCount == 1 && !md.HasSystemProgram):
		return model.TypeProgramInteraction
	default:
		return model.TypeUnknown
	}
}

// decodeNativeTransfer best-effort decodes the lamport amount and recipient
// of the first system-program instruction shaped like a transfer. It reads
// the amount at a fixed offset without verifying the instruction index, a
// deliberate heuristic kept from the simulator's inception.
func decodeNativeTransfer(tx *model.Transaction) (uint64, string, bool) {
	for _, inst := range tx.Instructions {
		if inst.ProgramID != solana.SystemProgramID {
			continue
		}
		if len(inst.Data) < transferDataLen || len(inst.Accounts) < 2 {
			continue
		}
		lamports := binary.LittleEndian.Uint64(inst.Data[transferLamportsOffset : transferLamportsOffset+8])
		return lamports, inst.Accounts[1].PublicKey.String(), true
	}
	return 0, "", false
}

// RequiresUserApproval reports whether the risk gate forbids silent
// auto-approval: high-value transfers and everything that is not a plain
// transfer or account creation.
func RequiresUserApproval(md model.TransactionMetadata, highValueLamports uint64) bool {
	if highValueLamports == 0 {
		highValueLamports = HighValueLamports
	}
	if md.TransferLamports != nil && *md.TransferLamports > highValueLamports {
		return true
	}
	switch md.Type {
	case model.TypeProgramInteraction, model.TypeUnknown, model.TypeTokenTransfer:
		return true
	}
	return false
}

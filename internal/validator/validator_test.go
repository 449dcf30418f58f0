package validator

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akarpov/svsim/internal/model"
)

var (
	payer     = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")
	recipient = solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	someProg  = solana.MustPublicKeyFromBase58("Vote111111111111111111111111111111111111111")
)

func validTransfer(t *testing.T, lamports uint64) *model.Transaction {
	t.Helper()
	tx, err := model.NewTransfer(payer, recipient, lamports)
	require.NoError(t, err)
	tx.RecentBlockhash = "9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oAXxU8Fdkm4J6"
	return tx
}

func TestValidateNilTransaction(t *testing.T) {
	res := Validate(nil)
	require.False(t, res.IsValid)
	require.Contains(t, res.Errors, "transaction is nil")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	tx := &model.Transaction{
		Instructions: []model.Instruction{
			{Accounts: []model.AccountMeta{{}}},
		},
	}
	res := Validate(tx)

	require.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "transaction has no fee payer")
	assert.Contains(t, res.Errors, "instruction 0 account 0 has no public key")
	assert.Len(t, res.Errors, 2)
}

func TestValidateTreatsZeroProgramIDAsSystemProgram(t *testing.T) {
	require.True(t, solana.SystemProgramID.IsZero())

	res := Validate(validTransfer(t, 1000))
	require.True(t, res.IsValid, "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.True(t, res.Metadata.HasSystemProgram)
	assert.Equal(t, model.TypeTransfer, res.Metadata.Type)
	assert.Contains(t, res.Metadata.ProgramIDs, solana.SystemProgramID.String())
}

func TestValidateMissingBlockhashIsOnlyWarning(t *testing.T) {
	tx := validTransfer(t, 1000)
	tx.RecentBlockhash = ""

	res := Validate(tx)
	require.True(t, res.IsValid)
	require.Contains(t, res.Warnings, "transaction has no recent blockhash")
}

func TestValidateClassifiesTransfer(t *testing.T) {
	res := Validate(validTransfer(t, 12345))

	require.True(t, res.IsValid)
	assert.Equal(t, model.TypeTransfer, res.Metadata.Type)
	require.NotNil(t, res.Metadata.TransferLamports)
	assert.Equal(t, uint64(12345), *res.Metadata.TransferLamports)
	assert.Equal(t, recipient.String(), res.Metadata.TransferRecipient)
	assert.True(t, res.Metadata.HasSystemProgram)
	assert.Equal(t, uint64(6000), res.Metadata.EstimatedFee)
}

func TestValidateClassifiesTokenTransfer(t *testing.T) {
	tx, err := model.NewTokenTransfer(payer, recipient, payer, 50)
	require.NoError(t, err)

	res := Validate(tx)
	require.True(t, res.IsValid)
	assert.Equal(t, model.TypeTokenTransfer, res.Metadata.Type)
	assert.True(t, res.Metadata.HasTokenProgram)
}

func TestValidateClassifiesAccountCreation(t *testing.T) {
	// A single system-program instruction too short to decode as a
	// transfer classifies as account creation.
	tx := &model.Transaction{
		FeePayer: payer,
		Instructions: []model.Instruction{{
			ProgramID: solana.SystemProgramID,
			Accounts:  []model.AccountMeta{{PublicKey: payer, IsSigner: true, IsWritable: true}},
			Data:      []byte{0, 0, 0, 0},
		}},
	}

	res := Validate(tx)
	require.True(t, res.IsValid)
	assert.Equal(t, model.TypeAccountCreation, res.Metadata.Type)
	assert.Nil(t, res.Metadata.TransferLamports)
}

func TestValidateClassifiesProgramInteraction(t *testing.T) {
	tx := &model.Transaction{
		FeePayer: payer,
		Instructions: []model.Instruction{{
			ProgramID: someProg,
			Accounts:  []model.AccountMeta{{PublicKey: payer}},
		}},
	}

	res := Validate(tx)
	require.True(t, res.IsValid)
	assert.Equal(t, model.TypeProgramInteraction, res.Metadata.Type)
}

func TestValidateMultipleProgramsIsProgramInteraction(t *testing.T) {
	tx := validTransfer(t, 10)
	tx.Instructions = append(tx.Instructions, model.Instruction{
		ProgramID: someProg,
		Accounts:  []model.AccountMeta{{PublicKey: payer}},
	})

	res := Validate(tx)
	require.True(t, res.IsValid)
	assert.Equal(t, model.TypeProgramInteraction, res.Metadata.Type)
	assert.Len(t, res.Metadata.ProgramIDs, 2)
}

func TestRequiresUserApproval(t *testing.T) {
	small := Validate(validTransfer(t, 1000)).Metadata
	assert.False(t, RequiresUserApproval(small, HighValueLamports))

	big := Validate(validTransfer(t, 2_000_000_000)).Metadata
	assert.True(t, RequiresUserApproval(big, HighValueLamports))

	token, err := model.NewTokenTransfer(payer, recipient, payer, 1)
	require.NoError(t, err)
	assert.True(t, RequiresUserApproval(Validate(token).Metadata, HighValueLamports))

	unknown := model.TransactionMetadata{Type: model.TypeUnknown}
	assert.True(t, RequiresUserApproval(unknown, HighValueLamports))
}

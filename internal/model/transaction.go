package model

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// TransactionType classifies a signing request for risk scoring and for the
// activity log.
type TransactionType string

const (
	TypeTransfer           TransactionType = "transfer"
	TypeTokenTransfer      TransactionType = "token_transfer"
	TypeAccountCreation    TransactionType = "account_creation"
	TypeProgramInteraction TransactionType = "program_interaction"
	TypeUnknown            TransactionType = "unknown"
	// TypeMessage marks off-chain message signing entries in the activity
	// log. The validator never produces it.
	TypeMessage TransactionType = "message"
)

// AccountMeta mirrors a Solana account reference inside an instruction.
type AccountMeta struct {
	PublicKey  solana.PublicKey `json:"publicKey"`
	IsSigner   bool             `json:"isSigner"`
	IsWritable bool             `json:"isWritable"`
}

// Instruction is a single program invocation within a transaction.
type Instruction struct {
	ProgramID solana.PublicKey `json:"programId"`
	Accounts  []AccountMeta    `json:"accounts"`
	Data      []byte           `json:"data,omitempty"`
}

// Transaction is the simulator's unsigned transaction shape. It carries the
// structural fields the validator and signer need rather than a fully
// serialized wire message.
type Transaction struct {
	FeePayer        solana.PublicKey `json:"feePayer"`
	RecentBlockhash string           `json:"recentBlockhash,omitempty"`
	Instructions    []Instruction    `json:"instructions"`
}

// SigningPayload returns the canonical byte form of the transaction that
// gets signed. Struct-ordered JSON keeps it deterministic: equal
// transactions always produce equal payloads.
func (t *Transaction) SigningPayload() ([]byte, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return payload, nil
}

// FromSolanaInstruction converts a program-builder instruction into the
// simulator's instruction shape.
func FromSolanaInstruction(inst solana.Instruction) (Instruction, error) {
	data, err := inst.Data()
	if err != nil {
		return Instruction{}, fmt.Errorf("failed to encode instruction data: %w", err)
	}
	out := Instruction{
		ProgramID: inst.ProgramID(),
		Data:      data,
	}
	for _, acc := range inst.Accounts() {
		out.Accounts = append(out.Accounts, AccountMeta{
			PublicKey:  acc.PublicKey,
			IsSigner:   acc.IsSigner,
			IsWritable: acc.IsWritable,
		})
	}
	return out, nil
}

// NewTransfer builds a single-instruction system-program SOL transfer with
// from as the fee payer.
func NewTransfer(from, to solana.PublicKey, lamports uint64) (*Transaction, error) {
	inst, err := FromSolanaInstruction(system.NewTransferInstruction(lamports, from, to).Build())
	if err != nil {
		return nil, err
	}
	return &Transaction{
		FeePayer:     from,
		Instructions: []Instruction{inst},
	}, nil
}

// NewTokenTransfer builds a single-instruction SPL token transfer between
// two token accounts, owner signing and paying the fee.
func NewTokenTransfer(source, destination, owner solana.PublicKey, amount uint64) (*Transaction, error) {
	inst, err := FromSolanaInstruction(token.NewTransferInstruction(amount, source, destination, owner, nil).Build())
	if err != nil {
		return nil, err
	}
	return &Transaction{
		FeePayer:     owner,
		Instructions: []Instruction{inst},
	}, nil
}

// TransactionMetadata is the validator's summary of a transaction.
type TransactionMetadata struct {
	Type              TransactionType `json:"type"`
	InstructionCount  int             `json:"instructionCount"`
	AccountCount      int             `json:"accountCount"`
	EstimatedFee      uint64          `json:"estimatedFee"`
	ProgramIDs        []string        `json:"programIds,omitempty"`
	HasSystemProgram  bool            `json:"hasSystemProgram"`
	HasTokenProgram   bool            `json:"hasTokenProgram"`
	TransferLamports  *uint64         `json:"transferLamports,omitempty"`
	TransferRecipient string          `json:"transferRecipient,omitempty"`
}

// ValidationResult reports structural validity plus advisory warnings.
// Warnings never block signing.
type ValidationResult struct {
	IsValid  bool                `json:"isValid"`
	Errors   []string            `json:"errors,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Metadata TransactionMetadata `json:"metadata"`
}

// internal/blockchain/solbc/normalize.go
package solbc

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rovshanmuradov/pumpwatch/internal/blockchain"
)

// Normalize converts a decoded transaction and its meta into the
// library-independent form. meta may be nil.
func Normalize(signature string, tx *solana.Transaction, meta *rpc.TransactionMeta) *blockchain.Transaction {
	out := &blockchain.Transaction{Signature: signature}
	if tx == nil {
		return out
	}

	keys := make(solana.PublicKeySlice, 0, len(tx.Message.AccountKeys))
	keys = append(keys, tx.Message.AccountKeys...)
	if meta != nil {
		// v0 транзакции подгружают адреса из lookup-таблиц
		keys = append(keys, meta.LoadedAddresses.Writable...)
		keys = append(keys, meta.LoadedAddresses.ReadOnly...)
	}

	out.AccountKeys = make([]string, len(keys))
	for i, k := range keys {
		out.AccountKeys[i] = k.String()
	}

	for _, ci := range tx.Message.Instructions {
		out.Instructions = append(out.Instructions, resolveInstruction(out.AccountKeys, ci.ProgramIDIndex, ci.Accounts, ci.Data, false))
	}

	if meta == nil {
		return out
	}

	out.Failed = meta.Err != nil
	out.LogMessages = meta.LogMessages
	out.PreBalances = meta.PreBalances
	out.PostBalances = meta.PostBalances
	out.PreTokenBalances = convertTokenBalances(meta.PreTokenBalances)
	out.PostTokenBalances = convertTokenBalances(meta.PostTokenBalances)

	for _, set := range meta.InnerInstructions {
		for _, ci := range set.Instructions {
			out.Instructions = append(out.Instructions, resolveInstruction(out.AccountKeys, ci.ProgramIDIndex, ci.Accounts, ci.Data, true))
		}
	}
	return out
}

func resolveInstruction(keys []string, programIdx uint16, accounts []uint16, data []byte, inner bool) blockchain.Instruction {
	ix := blockchain.Instruction{
		ProgramID: keyAt(keys, programIdx),
		Accounts:  make([]string, 0, len(accounts)),
		Data:      data,
		Inner:     inner,
	}
	for _, idx := range accounts {
		ix.Accounts = append(ix.Accounts, keyAt(keys, idx))
	}
	return ix
}

func keyAt(keys []string, idx uint16) string {
	if int(idx) < len(keys) {
		return keys[idx]
	}
	return ""
}

func convertTokenBalances(in []rpc.TokenBalance) []blockchain.TokenBalance {
	if len(in) == 0 {
		return nil
	}
	out := make([]blockchain.TokenBalance, 0, len(in))
	for _, b := range in {
		tb := blockchain.TokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint.String(),
		}
		if b.Owner != nil {
			tb.Owner = b.Owner.String()
		}
		if b.UiTokenAmount != nil {
			tb.Amount = b.UiTokenAmount.Amount
			tb.Decimals = b.UiTokenAmount.Decimals
		}
		out = append(out, tb)
	}
	return out
}

package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransferTopic is topic0 of the ERC-20 Transfer(address,address,uint256) event.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

type TransferLog struct {
	From        common.Address
	To          common.Address
	Amount      *big.Int
	TxHash      common.Hash
	LogIndex    uint
	BlockNumber uint64
}

// DecodeTransfer parses an ERC-20 Transfer log. Indexed from/to sit in
// topics 1 and 2, the amount is the 32-byte data word.
func DecodeTransfer(l types.Log) (*TransferLog, error) {
	if len(l.Topics) != 3 || l.Topics[0] != TransferTopic {
		return nil, fmt.Errorf("log %s/%d is not an ERC-20 Transfer", l.TxHash.Hex(), l.Index)
	}
	if len(l.Data) != 32 {
		return nil, fmt.Errorf("log %s/%d: transfer data is %d bytes", l.TxHash.Hex(), l.Index, len(l.Data))
	}
	return &TransferLog{
		From:        common.BytesToAddress(l.Topics[1].Bytes()),
		To:          common.BytesToAddress(l.Topics[2].Bytes()),
		Amount:      new(big.Int).SetBytes(l.Data),
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
		BlockNumber: l.BlockNumber,
	}, nil
}

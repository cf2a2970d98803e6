package marketplace

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemLedger is an in-memory TokenLedger for tests and local runs.
type MemLedger struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	// FailNext makes the next Transfer fail with this error.
	FailNext error
}

func NewMemLedger() *MemLedger {
	return &MemLedger{balances: make(map[common.Address]*big.Int)}
}

func (l *MemLedger) Mint(account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(account, amount)
}

func (l *MemLedger) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (l *MemLedger) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.FailNext; err != nil {
		l.FailNext = nil
		return err
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount %s: %w", amount, ErrInvalidParameter)
	}
	bal := l.balances[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%s holds less than %s: %w", from.Hex(), amount, ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	l.add(to, amount)
	return nil
}

func (l *MemLedger) add(account common.Address, amount *big.Int) {
	b, ok := l.balances[account]
	if !ok {
		b = new(big.Int)
		l.balances[account] = b
	}
	b.Add(b, amount)
}

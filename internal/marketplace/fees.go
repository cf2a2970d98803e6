package marketplace

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// SetDisabled pauses or resumes campaign creation and participation.
// Claims and refunds keep working while disabled.
func (m *Marketplace) SetDisabled(ctx context.Context, caller common.Address, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if m.market.Disabled == disabled {
		return fmt.Errorf("disabled already %t: %w", disabled, ErrRedundantStateChange)
	}
	market := m.market.Clone()
	market.Disabled = disabled
	return m.commit(ctx, &Changeset{Op: "setDisabled", Caller: caller, Market: market})
}

func (m *Marketplace) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("new owner is the zero address: %w", ErrInvalidParameter)
	}
	if newOwner == m.market.Owner {
		return fmt.Errorf("%s already owns the marketplace: %w", newOwner.Hex(), ErrRedundantStateChange)
	}
	return m.setOwner(ctx, "transferOwnership", caller, newOwner)
}

// RenounceOwnership leaves the marketplace without an owner. Owner-only
// operations fail from then on.
func (m *Marketplace) RenounceOwnership(ctx context.Context, caller common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireOwner(caller); err != nil {
		return err
	}
	return m.setOwner(ctx, "renounceOwnership", caller, common.Address{})
}

func (m *Marketplace) setOwner(ctx context.Context, op string, caller, owner common.Address) error {
	market := m.market.Clone()
	prev := market.Owner
	market.Owner = owner
	cs := &Changeset{Op: op, Caller: caller, Market: market}
	cs.Events = append(cs.Events, m.event(EventOwnershipTransferred, 0, map[string]any{
		"previous_owner": prev.Hex(),
		"new_owner":      owner.Hex(),
	}))
	if err := m.commit(ctx, cs); err != nil {
		return err
	}
	m.log.Warn("marketplace ownership changed",
		zap.String("previous_owner", prev.Hex()),
		zap.String("new_owner", owner.Hex()),
	)
	return nil
}

// UpdatePlatformFee sets the fee taken from each reward of campaigns created
// from now on. It can never exceed the display fee that funds it.
func (m *Marketplace) UpdatePlatformFee(ctx context.Context, caller common.Address, feeBps uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if feeBps > m.cfg.DisplayFeeBps {
		return fmt.Errorf("platform fee %d bps exceeds display fee %d bps: %w", feeBps, m.cfg.DisplayFeeBps, ErrInvalidParameter)
	}
	if feeBps == m.market.PlatformFeeBps {
		return fmt.Errorf("platform fee already %d bps: %w", feeBps, ErrRedundantStateChange)
	}
	market := m.market.Clone()
	prev := market.PlatformFeeBps
	market.PlatformFeeBps = feeBps
	cs := &Changeset{Op: "updatePlatformFee", Caller: caller, Market: market}
	cs.Events = append(cs.Events, m.event(EventPlatformFeeUpdated, 0, map[string]any{
		"old_fee_bps": prev,
		"new_fee_bps": feeBps,
	}))
	return m.commit(ctx, cs)
}

func (m *Marketplace) UpdateFeeCollector(ctx context.Context, caller, collector common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if collector == (common.Address{}) {
		return fmt.Errorf("fee collector is the zero address: %w", ErrInvalidParameter)
	}
	if collector == m.market.FeeCollector {
		return fmt.Errorf("fee collector already %s: %w", collector.Hex(), ErrRedundantStateChange)
	}
	market := m.market.Clone()
	prev := market.FeeCollector
	market.FeeCollector = collector
	cs := &Changeset{Op: "updateFeeCollector", Caller: caller, Market: market}
	cs.Events = append(cs.Events, m.event(EventFeeCollectorUpdated, 0, map[string]any{
		"old_collector": prev.Hex(),
		"new_collector": collector.Hex(),
	}))
	return m.commit(ctx, cs)
}

// CollectFees pushes the pending fees to the fee collector.
func (m *Marketplace) CollectFees(ctx context.Context, caller common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireOwner(caller); err != nil {
		return nil, err
	}
	return m.payFees(ctx, "collectFees", caller)
}

// ClaimCollectedFees lets the fee collector pull the pending fees itself.
func (m *Marketplace) ClaimCollectedFees(ctx context.Context, caller common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller == (common.Address{}) || caller != m.market.FeeCollector {
		return nil, fmt.Errorf("caller %s is not the fee collector: %w", caller.Hex(), ErrInvalidMsgSender)
	}
	return m.payFees(ctx, "claimCollectedFees", caller)
}

func (m *Marketplace) payFees(ctx context.Context, op string, caller common.Address) (*big.Int, error) {
	amount := new(big.Int).Set(m.market.PendingFees)
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("no pending fees: %w", ErrRedundantStateChange)
	}
	market := m.market.Clone()
	market.PendingFees = new(big.Int)

	cs := &Changeset{Op: op, Caller: caller, Market: market}
	cs.transfer(m.cfg.Escrow, market.FeeCollector, amount)
	cs.Events = append(cs.Events, m.event(EventFeesCollected, 0, map[string]any{
		"collector": market.FeeCollector.Hex(),
		"amount":    amount.String(),
	}))
	if err := m.commit(ctx, cs); err != nil {
		return nil, err
	}
	return amount, nil
}

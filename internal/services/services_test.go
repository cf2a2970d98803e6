package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/auth"
	"github.com/ads-marketplace/campaign-backend/internal/events"
	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memReceipts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]models.TxReceipt
}

func newMemReceipts() *memReceipts {
	return &memReceipts{byID: make(map[uuid.UUID]models.TxReceipt)}
}

func (m *memReceipts) Create(_ context.Context, rc *models.TxReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[rc.ID] = *rc
	return nil
}

func (m *memReceipts) Finalize(_ context.Context, rc *models.TxReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[rc.ID]
	if !ok || !models.IsValidTxTransition(cur.Status, rc.Status) {
		return nil
	}
	m.byID[rc.ID] = *rc
	return nil
}

func (m *memReceipts) GetByID(_ context.Context, id uuid.UUID) (*models.TxReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.byID[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return &rc, nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *memPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func startTx(t *testing.T, queue int) (*TxService, *memReceipts, *memPublisher) {
	t.Helper()
	receipts := newMemReceipts()
	pub := &memPublisher{}
	svc := NewTxService(receipts, pub, queue, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.Run(ctx)
	return svc, receipts, pub
}

func TestTxServiceFIFO(t *testing.T) {
	svc, _, pub := startTx(t, 64)
	caller := common.HexToAddress("0x01")

	var mu sync.Mutex
	var order []int
	var last *models.TxReceipt
	for i := 0; i < 20; i++ {
		i := i
		rc, err := svc.Submit(context.Background(), "op", caller, func(context.Context) (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		})
		require.NoError(t, err)
		assert.Equal(t, models.TxStatusPending, rc.Status)
		last = rc
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := svc.Wait(ctx, last.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusConfirmed, final.Status)
	assert.Equal(t, 19, final.Result)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.Len(t, order, 20)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.events, 20)
	assert.Equal(t, events.EventTxConfirmed, pub.events[0].Type)
}

func TestTxServiceFailureCodes(t *testing.T) {
	svc, _, _ := startTx(t, 8)

	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("not seller: %w", marketplace.ErrInvalidMsgSender), CodeInvalidMsgSender},
		{fmt.Errorf("bad slots: %w", marketplace.ErrInvalidParameter), CodeInvalidParameter},
		{marketplace.ErrRedundantStateChange, CodeRedundantStateChange},
		{marketplace.ErrNotFound, CodeNotFound},
		{marketplace.ErrInsufficientBalance, CodeInsufficientBalance},
		{errors.New("db down"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			calls := 0
			rc, err := svc.Submit(context.Background(), "op", common.Address{}, func(context.Context) (any, error) {
				calls++
				return nil, tt.err
			})
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			final, err := svc.Wait(ctx, rc.ID)
			require.NoError(t, err)
			assert.Equal(t, models.TxStatusFailed, final.Status)
			require.NotNil(t, final.ErrorCode)
			assert.Equal(t, tt.code, *final.ErrorCode)
			assert.NotNil(t, final.FinalizedAt)
			// never retried
			assert.Equal(t, 1, calls)
		})
	}
}

func TestTxServiceSurvivesPanic(t *testing.T) {
	svc, _, _ := startTx(t, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc, err := svc.Submit(ctx, "op", common.Address{}, func(context.Context) (any, error) {
		return new(big.Int).Quo(big.NewInt(1), new(big.Int)), nil
	})
	require.NoError(t, err)
	final, err := svc.Wait(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusFailed, final.Status)
	assert.Equal(t, CodeInternal, *final.ErrorCode)

	// the executor keeps running
	rc, err = svc.Submit(ctx, "op", common.Address{}, func(context.Context) (any, error) { return "ok", nil })
	require.NoError(t, err)
	final, err = svc.Wait(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusConfirmed, final.Status)
}

func TestTxServiceHidesInternalErrors(t *testing.T) {
	svc, _, _ := startTx(t, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc, err := svc.Submit(ctx, "op", common.Address{}, func(context.Context) (any, error) {
		return nil, errors.New(`persist: ERROR: relation "campaigns" does not exist (SQLSTATE 42P01)`)
	})
	require.NoError(t, err)
	final, err := svc.Wait(ctx, rc.ID)
	require.NoError(t, err)
	require.NotNil(t, final.Error)
	assert.Equal(t, "internal error", *final.Error)

	rc, err = svc.Submit(ctx, "op", common.Address{}, func(context.Context) (any, error) {
		return nil, fmt.Errorf("campaign 7: %w", marketplace.ErrNotFound)
	})
	require.NoError(t, err)
	final, err = svc.Wait(ctx, rc.ID)
	require.NoError(t, err)
	assert.Contains(t, *final.Error, "campaign 7")
}

func TestTxServiceQueueFull(t *testing.T) {
	receipts := newMemReceipts()
	// no executor running
	svc := NewTxService(receipts, nil, 1, zap.NewNop())
	noop := func(context.Context) (any, error) { return nil, nil }

	_, err := svc.Submit(context.Background(), "op", common.Address{}, noop)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), "op", common.Address{}, noop)
	require.ErrorIs(t, err, ErrQueueFull)

	failed := 0
	for _, rc := range receipts.byID {
		if rc.Status == models.TxStatusFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestErrorCodeNil(t *testing.T) {
	assert.Empty(t, ErrorCode(nil))
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func TestCommandAndQueryServices(t *testing.T) {
	owner := common.HexToAddress("0xa0")
	escrow := common.HexToAddress("0xe0")
	seller := common.HexToAddress("0xb0")
	clock := &fixedClock{now: time.Unix(1_700_000_000, 0)}

	ledger := marketplace.NewMemLedger()
	ledger.Mint(seller, big.NewInt(5_000))

	mp := marketplace.New(marketplace.Config{Owner: owner, Escrow: escrow}, marketplace.Deps{
		Clock:  clock,
		Ledger: ledger,
	}, zap.NewNop())

	tx, _, _ := startTx(t, 16)
	cmd := NewCommandService(mp, tx, nil)
	query := NewQueryService(mp, ledger, nil, nil, "GRASS", 2)

	t0 := clock.now.Unix()
	rc, err := cmd.CreateAdCampaign(context.Background(), seller, marketplace.CreateCampaignParams{
		PostID:              "post-1",
		ActionType:          marketplace.ActionComment,
		AvailableSlots:      10,
		DisplayTime:         marketplace.TimePeriod{StartTime: t0 + 10, EndTime: t0 + 100},
		ContentURI:          "lens://post-1",
		RewardClaimableTime: t0 + 200,
		Pool:                big.NewInt(1000),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := tx.Wait(ctx, rc.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusConfirmed, final.Status, "%v", final.Error)
	assert.Equal(t, map[string]any{"campaign_id": uint64(1)}, final.Result)

	view, err := query.CampaignInfo(1)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusPending, view.EffectiveStatus)
	assert.Equal(t, "90", view.Reward.Raw)
	assert.Equal(t, "0.9", view.Reward.Display)
	assert.Equal(t, "10", view.Pool.Display)
	assert.Equal(t, "1000", view.Escrowed.Raw)
	assert.Equal(t, "90", view.CommentReward.String())

	bal, err := query.Balance(context.Background(), seller)
	require.NoError(t, err)
	assert.Equal(t, "40", bal.Display)

	// a rejected write leaves a failed receipt and no state change
	rc, err = cmd.CancelCampaign(context.Background(), owner, 1)
	require.NoError(t, err)
	final, err = tx.Wait(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusFailed, final.Status)
	assert.Equal(t, CodeInvalidMsgSender, *final.ErrorCode)

	c, err := query.Campaign(1)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusPending, c.Status)
	assert.Equal(t, []uint64{1}, query.SellerCampaigns(seller))
	assert.Equal(t, "GRASS", query.Fees().Total.Symbol)

	// the refund receipt separates the unfilled-slot value from the fee refund
	clock.now = clock.now.Add(101 * time.Second)
	rc, err = cmd.ClaimUnfulfilledSlots(context.Background(), seller, 1)
	require.NoError(t, err)
	final, err = tx.Wait(ctx, rc.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusConfirmed, final.Status, "%v", final.Error)
	assert.Equal(t, map[string]any{
		"refund":             "900",
		"refund_remainder":   "0",
		"display_fee_refund": "100",
		"total":              "1000",
	}, final.Result)
}

type memNonces struct {
	issued map[string]string // nonce -> address
}

func (m *memNonces) Create(_ context.Context, address string, ttl time.Duration) (*models.LoginNonce, error) {
	n := fmt.Sprintf("nonce-%d", len(m.issued)+1)
	m.issued[n] = address
	return &models.LoginNonce{Nonce: n, Address: address, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (m *memNonces) Consume(_ context.Context, nonce, address string) (*models.LoginNonce, error) {
	if m.issued[nonce] != address {
		return nil, errors.New("no rows")
	}
	delete(m.issued, nonce)
	return &models.LoginNonce{Nonce: nonce, Address: address}, nil
}

type memUsers struct{}

func (memUsers) UpsertByAddress(_ context.Context, address string) (*models.User, error) {
	return &models.User{ID: uuid.New(), Address: address}, nil
}

type staticRoles struct{ owner common.Address }

func (r staticRoles) Owner() common.Address        { return r.owner }
func (r staticRoles) FeeCollector() common.Address { return r.owner }
func (r staticRoles) IsRouter(common.Address) bool { return false }

func TestAuthServiceLogin(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	svc := NewAuthService(&memNonces{issued: map[string]string{}}, memUsers{}, nil, staticRoles{owner: addr},
		"secret", time.Hour, time.Minute, zap.NewNop())

	ch, err := svc.Challenge(context.Background(), addr)
	require.NoError(t, err)
	assert.Contains(t, ch.Message, ch.Nonce)

	sig, err := crypto.Sign(accounts.TextHash([]byte(ch.Message)), key)
	require.NoError(t, err)
	sigHex := hexutil.Encode(sig)

	res, err := svc.Login(context.Background(), addr, ch.Nonce, sigHex)
	require.NoError(t, err)
	assert.Contains(t, res.User.Roles, "owner")

	claims, err := auth.ParseJWT("secret", res.Token)
	require.NoError(t, err)
	assert.Equal(t, addr, claims.Wallet())

	// nonce is single-use
	_, err = svc.Login(context.Background(), addr, ch.Nonce, sigHex)
	assert.ErrorIs(t, err, ErrLoginRejected)

	// signature from another key
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	ch, err = svc.Challenge(context.Background(), addr)
	require.NoError(t, err)
	bad, err := crypto.Sign(accounts.TextHash([]byte(ch.Message)), other)
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), addr, ch.Nonce, hexutil.Encode(bad))
	assert.ErrorIs(t, err, ErrLoginRejected)
}

package marketplace

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TokenLedger moves the payment token. Transfer must fail with
// ErrInsufficientBalance (wrapped) when from cannot cover amount.
type TokenLedger interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// FollowerGraph answers the eligibility question for minFollowersRequired.
type FollowerGraph interface {
	FollowerCount(ctx context.Context, account common.Address) (uint64, error)
}

// ActionRouter decides which callers may invoke Execute and Configure.
type ActionRouter interface {
	IsAuthorized(caller common.Address) bool
}

// Store persists one committed operation. Apply must be atomic.
type Store interface {
	Apply(ctx context.Context, cs *Changeset) error
}

// SettlingStore keeps token balances next to marketplace state. Settle
// performs cs.Transfers and persists cs in one atomic write, so the
// TokenLedger is never called on the write path.
type SettlingStore interface {
	Store
	Settle(ctx context.Context, cs *Changeset) error
}

type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// Changeset is everything one operation wrote: full copies of the touched
// records, the token movements and the events to emit.
type Changeset struct {
	Op             string           `json:"op"`
	Caller         common.Address   `json:"caller"`
	Campaigns      []*Campaign      `json:"campaigns,omitempty"`
	Groups         []*CampaignGroup `json:"groups,omitempty"`
	Participations []*Participation `json:"participations,omitempty"`
	Market         *MarketState     `json:"market,omitempty"`
	Transfers      []Transfer       `json:"transfers,omitempty"`
	Events         []Event          `json:"events,omitempty"`
}

func (cs *Changeset) transfer(from, to common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	cs.Transfers = append(cs.Transfers, Transfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
}

// StaticRouter authorizes a fixed set of router addresses.
type StaticRouter struct {
	mu      sync.RWMutex
	routers map[common.Address]struct{}
}

func NewStaticRouter(addrs ...common.Address) *StaticRouter {
	r := &StaticRouter{routers: make(map[common.Address]struct{}, len(addrs))}
	for _, a := range addrs {
		r.routers[a] = struct{}{}
	}
	return r
}

func (r *StaticRouter) IsAuthorized(caller common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routers[caller]
	return ok
}

func (r *StaticRouter) Add(addr common.Address) {
	r.mu.Lock()
	r.routers[addr] = struct{}{}
	r.mu.Unlock()
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) {}

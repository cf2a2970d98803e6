package marketplace

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	DefaultPlatformFeeBps = 500
	DefaultDisplayFeeBps  = 1000
	bpsDenominator        = 10000
)

type Config struct {
	Owner        common.Address
	FeeCollector common.Address
	// Escrow is the ledger account holding every campaign deposit.
	Escrow         common.Address
	PlatformFeeBps uint64
	DisplayFeeBps  uint64
	// ClaimPeriod bounds the claim window after rewardClaimableTime. Zero means unbounded.
	ClaimPeriod time.Duration
}

type Deps struct {
	Clock  Clock
	Ledger TokenLedger
	Graph  FollowerGraph
	Router ActionRouter
	Store  Store
	Sink   EventSink
}

type participationKey struct {
	campaignID uint64
	influencer common.Address
}

// Marketplace owns the campaign registry, the participation ledger and the
// fee ledger. Every write holds the lock for its whole duration, so
// operations apply one at a time in a single total order.
type Marketplace struct {
	mu     sync.RWMutex
	cfg    Config
	clock  Clock
	ledger TokenLedger
	graph  FollowerGraph
	router ActionRouter
	store  Store
	sink   EventSink
	log    *zap.Logger

	campaigns       []*Campaign
	groups          []*CampaignGroup
	participations  map[participationKey]*Participation
	participants    map[uint64][]common.Address
	sellerCampaigns map[common.Address][]uint64
	sellerGroups    map[common.Address][]uint64
	postCampaigns   map[string]uint64
	market          *MarketState
}

func New(cfg Config, deps Deps, log *zap.Logger) *Marketplace {
	if cfg.PlatformFeeBps == 0 {
		cfg.PlatformFeeBps = DefaultPlatformFeeBps
	}
	if cfg.DisplayFeeBps == 0 {
		cfg.DisplayFeeBps = DefaultDisplayFeeBps
	}
	if cfg.FeeCollector == (common.Address{}) {
		cfg.FeeCollector = cfg.Owner
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Sink == nil {
		deps.Sink = nopSink{}
	}
	if deps.Router == nil {
		deps.Router = NewStaticRouter()
	}
	if log == nil {
		log = zap.NewNop()
	}

	m := &Marketplace{
		cfg:    cfg,
		clock:  deps.Clock,
		ledger: deps.Ledger,
		graph:  deps.Graph,
		router: deps.Router,
		store:  deps.Store,
		sink:   deps.Sink,
		log:    log,
	}
	m.reset()
	return m
}

func (m *Marketplace) reset() {
	m.campaigns = nil
	m.groups = nil
	m.participations = make(map[participationKey]*Participation)
	m.participants = make(map[uint64][]common.Address)
	m.sellerCampaigns = make(map[common.Address][]uint64)
	m.sellerGroups = make(map[common.Address][]uint64)
	m.postCampaigns = make(map[string]uint64)
	m.market = &MarketState{
		Owner:              m.cfg.Owner,
		FeeCollector:       m.cfg.FeeCollector,
		PlatformFeeBps:     m.cfg.PlatformFeeBps,
		TotalFeesCollected: new(big.Int),
		PendingFees:        new(big.Int),
	}
}

// Snapshot is the full persisted state, used to rebuild the registry on startup.
type Snapshot struct {
	Campaigns      []*Campaign
	Groups         []*CampaignGroup
	Participations []*Participation
	Market         *MarketState
}

// Restore replaces in-memory state with s. Campaign and group IDs must be
// contiguous from 1, as they are when assigned by this package.
func (m *Marketplace) Restore(s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reset()
	for i, g := range s.Groups {
		if g.ID != uint64(i+1) {
			return fmt.Errorf("restore: group id %d out of order at %d", g.ID, i)
		}
		m.installGroup(g.Clone())
	}
	for i, c := range s.Campaigns {
		if c.ID != uint64(i+1) {
			return fmt.Errorf("restore: campaign id %d out of order at %d", c.ID, i)
		}
		m.installCampaign(c.Clone())
	}
	for _, p := range s.Participations {
		if p.CampaignID == 0 || p.CampaignID > uint64(len(m.campaigns)) {
			return fmt.Errorf("restore: participation references unknown campaign %d", p.CampaignID)
		}
		m.installParticipation(p.Clone())
	}
	if s.Market != nil {
		m.market = s.Market.Clone()
	}
	m.log.Info("marketplace state restored",
		zap.Int("campaigns", len(m.campaigns)),
		zap.Int("groups", len(m.groups)),
		zap.Int("participations", len(m.participations)),
	)
	return nil
}

func (m *Marketplace) now() int64 {
	return m.clock.Now().Unix()
}

// commit moves the tokens of cs and persists it, then installs it in
// memory and emits its events. Nothing is installed unless both succeed.
func (m *Marketplace) commit(ctx context.Context, cs *Changeset) error {
	if s, ok := m.store.(SettlingStore); ok {
		if err := s.Settle(ctx, cs); err != nil {
			return fmt.Errorf("%s: settle: %w", cs.Op, err)
		}
	} else if err := m.transferAndApply(ctx, cs); err != nil {
		return err
	}

	m.install(cs)
	for _, e := range cs.Events {
		m.sink.Emit(ctx, e)
	}
	return nil
}

// transferAndApply runs the transfers through the TokenLedger, then the
// Store. A failure undoes the transfers already made.
func (m *Marketplace) transferAndApply(ctx context.Context, cs *Changeset) error {
	done := make([]Transfer, 0, len(cs.Transfers))
	for _, t := range cs.Transfers {
		if m.ledger == nil {
			return fmt.Errorf("%s: no token ledger configured", cs.Op)
		}
		if err := m.ledger.Transfer(ctx, t.From, t.To, t.Amount); err != nil {
			m.rollback(ctx, cs.Op, done)
			return fmt.Errorf("%s: transfer %s from %s: %w", cs.Op, t.Amount, t.From.Hex(), err)
		}
		done = append(done, t)
	}

	if m.store != nil {
		if err := m.store.Apply(ctx, cs); err != nil {
			m.rollback(ctx, cs.Op, done)
			return fmt.Errorf("%s: persist: %w", cs.Op, err)
		}
	}
	return nil
}

func (m *Marketplace) rollback(ctx context.Context, op string, done []Transfer) {
	for i := len(done) - 1; i >= 0; i-- {
		t := done[i]
		if err := m.ledger.Transfer(ctx, t.To, t.From, t.Amount); err != nil {
			m.log.Error("transfer rollback failed",
				zap.String("op", op),
				zap.String("from", t.To.Hex()),
				zap.String("to", t.From.Hex()),
				zap.String("amount", t.Amount.String()),
				zap.Error(err),
			)
		}
	}
}

func (m *Marketplace) install(cs *Changeset) {
	for _, g := range cs.Groups {
		m.installGroup(g.Clone())
	}
	for _, c := range cs.Campaigns {
		m.installCampaign(c.Clone())
	}
	for _, p := range cs.Participations {
		m.installParticipation(p.Clone())
	}
	if cs.Market != nil {
		m.market = cs.Market.Clone()
	}
}

func (m *Marketplace) installCampaign(c *Campaign) {
	if c.ID <= uint64(len(m.campaigns)) {
		m.campaigns[c.ID-1] = c
		return
	}
	m.campaigns = append(m.campaigns, c)
	m.sellerCampaigns[c.SellerAddress] = append(m.sellerCampaigns[c.SellerAddress], c.ID)
	m.postCampaigns[c.PostID] = c.ID
}

func (m *Marketplace) installGroup(g *CampaignGroup) {
	if g.ID <= uint64(len(m.groups)) {
		m.groups[g.ID-1] = g
		return
	}
	m.groups = append(m.groups, g)
	m.sellerGroups[g.Owner] = append(m.sellerGroups[g.Owner], g.ID)
}

func (m *Marketplace) installParticipation(p *Participation) {
	key := participationKey{campaignID: p.CampaignID, influencer: p.Influencer}
	if _, ok := m.participations[key]; !ok {
		m.participants[p.CampaignID] = append(m.participants[p.CampaignID], p.Influencer)
	}
	m.participations[key] = p
}

func (m *Marketplace) campaign(id uint64) (*Campaign, error) {
	if id == 0 || id > uint64(len(m.campaigns)) {
		return nil, fmt.Errorf("campaign %d: %w", id, ErrNotFound)
	}
	return m.campaigns[id-1], nil
}

func (m *Marketplace) group(id uint64) (*CampaignGroup, error) {
	if id == 0 || id > uint64(len(m.groups)) {
		return nil, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	return m.groups[id-1], nil
}

func (m *Marketplace) requireOwner(caller common.Address) error {
	if caller == (common.Address{}) || caller != m.market.Owner {
		return fmt.Errorf("caller %s is not the owner: %w", caller.Hex(), ErrInvalidMsgSender)
	}
	return nil
}

func (m *Marketplace) requireSeller(c *Campaign, caller common.Address) error {
	if caller == (common.Address{}) || caller != c.SellerAddress {
		return fmt.Errorf("caller %s is not the seller of campaign %d: %w", caller.Hex(), c.ID, ErrInvalidMsgSender)
	}
	return nil
}

// requireMutable rejects updates once a campaign is terminal or its window closed.
func (m *Marketplace) requireMutable(c *Campaign, now int64) error {
	if st := c.EffectiveStatus(now); st.Terminal() {
		return fmt.Errorf("campaign %d is %s: %w", c.ID, st, ErrInvalidParameter)
	}
	return nil
}

func (m *Marketplace) event(name string, campaignID uint64, args map[string]any) Event {
	if args == nil {
		args = map[string]any{}
	}
	return Event{Name: name, CampaignID: campaignID, Args: args, Timestamp: m.now()}
}

func bps(amount *big.Int, bp uint64) *big.Int {
	v := new(big.Int).Mul(amount, new(big.Int).SetUint64(bp))
	return v.Quo(v, big.NewInt(bpsDenominator))
}

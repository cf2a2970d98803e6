package marketplace

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type ActionType uint8

const (
	ActionNone ActionType = iota
	ActionMirror
	ActionComment
	ActionQuote
)

var actionTypeNames = map[ActionType]string{
	ActionNone:    "NONE",
	ActionMirror:  "MIRROR",
	ActionComment: "COMMENT",
	ActionQuote:   "QUOTE",
}

// AllActionTypes lists the action types a campaign can reward.
var AllActionTypes = []ActionType{ActionMirror, ActionComment, ActionQuote}

func (a ActionType) String() string {
	if s, ok := actionTypeNames[a]; ok {
		return s
	}
	return fmt.Sprintf("ActionType(%d)", uint8(a))
}

// Valid reports whether a is a rewardable action. NONE is not.
func (a ActionType) Valid() bool {
	switch a {
	case ActionMirror, ActionComment, ActionQuote:
		return true
	case ActionNone:
		return false
	default:
		return false
	}
}

func ParseActionType(s string) (ActionType, error) {
	for t, name := range actionTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return ActionNone, fmt.Errorf("unknown action type %q: %w", s, ErrInvalidParameter)
}

func (a ActionType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *ActionType) UnmarshalText(b []byte) error {
	t, err := ParseActionType(string(b))
	if err != nil {
		return err
	}
	*a = t
	return nil
}

type CampaignStatus uint8

const (
	StatusPending CampaignStatus = iota
	StatusActive
	StatusCompleted
	StatusCancelled
)

var statusNames = map[CampaignStatus]string{
	StatusPending:   "PENDING",
	StatusActive:    "ACTIVE",
	StatusCompleted: "COMPLETED",
	StatusCancelled: "CANCELLED",
}

func (s CampaignStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("CampaignStatus(%d)", uint8(s))
}

func (s CampaignStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ParseCampaignStatus(s string) (CampaignStatus, error) {
	for st, name := range statusNames {
		if strings.EqualFold(s, name) {
			return st, nil
		}
	}
	return StatusPending, fmt.Errorf("unknown campaign status %q", s)
}

func (s CampaignStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *CampaignStatus) UnmarshalText(b []byte) error {
	st, err := ParseCampaignStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// TimePeriod is a campaign's display window in unix seconds.
type TimePeriod struct {
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`
}

type TargetAudience struct {
	Country   []string `json:"country,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Language  []string `json:"language,omitempty"`
}

type Campaign struct {
	ID                   uint64         `json:"id"`
	GroupID              uint64         `json:"group_id"`
	PostID               string         `json:"post_id"`
	SellerAddress        common.Address `json:"seller_address"`
	ActionType           ActionType     `json:"action_type"`
	AmountPool           *big.Int       `json:"amount_pool"`
	RewardAmount         *big.Int       `json:"reward_amount"`
	MinFollowersRequired uint64         `json:"min_followers_required"`
	AvailableSlots       uint64         `json:"available_slots"`
	ClaimedSlots         uint64         `json:"claimed_slots"`
	PaidSlots            uint64         `json:"paid_slots"`
	AdDisplayTimePeriod  TimePeriod     `json:"ad_display_time_period"`
	RewardClaimableTime  int64          `json:"reward_claimable_time"`
	RewardTimeEnd        int64          `json:"reward_time_end"`
	ContentURI           string         `json:"content_uri"`
	ContentHash          common.Hash    `json:"content_hash"`
	Version              uint64         `json:"version"`
	Status               CampaignStatus `json:"status"`
	TargetAudience       TargetAudience `json:"target_audience"`

	// Escrow bookkeeping. RewardPool still sits in escrow; ReservedRewards
	// of it is owed to participants who have not claimed yet.
	RewardPool       *big.Int `json:"reward_pool"`
	ReservedRewards  *big.Int `json:"reserved_rewards"`
	DisplayFee       *big.Int `json:"display_fee"`
	ReservedFees     *big.Int `json:"reserved_fees"`
	PlatformFeeBps   uint64   `json:"platform_fee_bps"`
	ActionConfigured bool     `json:"action_configured"`
	CreatedAt        int64    `json:"created_at"`
}

// Clone returns a deep copy so callers never alias registry state.
func (c *Campaign) Clone() *Campaign {
	cp := *c
	cp.AmountPool = cloneInt(c.AmountPool)
	cp.RewardAmount = cloneInt(c.RewardAmount)
	cp.RewardPool = cloneInt(c.RewardPool)
	cp.ReservedRewards = cloneInt(c.ReservedRewards)
	cp.DisplayFee = cloneInt(c.DisplayFee)
	cp.ReservedFees = cloneInt(c.ReservedFees)
	cp.TargetAudience = TargetAudience{
		Country:   append([]string(nil), c.TargetAudience.Country...),
		Interests: append([]string(nil), c.TargetAudience.Interests...),
		Language:  append([]string(nil), c.TargetAudience.Language...),
	}
	return &cp
}

// EffectiveStatus folds the time-driven transitions into the stored status.
func (c *Campaign) EffectiveStatus(now int64) CampaignStatus {
	if c.Status.Terminal() {
		return c.Status
	}
	switch {
	case now < c.AdDisplayTimePeriod.StartTime:
		return StatusPending
	case now <= c.AdDisplayTimePeriod.EndTime:
		return StatusActive
	default:
		return StatusCompleted
	}
}

// RemainingSlots is the number of slots still open for participation.
func (c *Campaign) RemainingSlots() uint64 {
	if c.ClaimedSlots >= c.AvailableSlots {
		return 0
	}
	return c.AvailableSlots - c.ClaimedSlots
}

func (c *Campaign) unreservedRewards() *big.Int {
	return new(big.Int).Sub(c.RewardPool, c.ReservedRewards)
}

type CampaignGroup struct {
	ID              uint64         `json:"id"`
	GroupURI        string         `json:"group_uri"`
	Owner           common.Address `json:"owner"`
	PostCampaignIDs []uint64       `json:"post_campaign_ids"`
	CreatedAt       int64          `json:"created_at"`
}

func (g *CampaignGroup) Clone() *CampaignGroup {
	cp := *g
	cp.PostCampaignIDs = append([]uint64(nil), g.PostCampaignIDs...)
	return &cp
}

// Participation is the per (campaign, influencer) record. Reward and Fee are
// fixed when the action is recorded.
type Participation struct {
	CampaignID       uint64         `json:"campaign_id"`
	Influencer       common.Address `json:"influencer"`
	ActionType       ActionType     `json:"action_type"`
	HasParticipated  bool           `json:"has_participated"`
	HasClaimedReward bool           `json:"has_claimed_reward"`
	Reward           *big.Int       `json:"reward"`
	Fee              *big.Int       `json:"fee"`
	Feed             common.Address `json:"feed"`
	ParticipatedAt   int64          `json:"participated_at"`
	ClaimedAt        int64          `json:"claimed_at,omitempty"`
}

func (p *Participation) Clone() *Participation {
	cp := *p
	cp.Reward = cloneInt(p.Reward)
	cp.Fee = cloneInt(p.Fee)
	return &cp
}

func (p *Participation) HasPerformedAction(t ActionType) bool {
	return p.HasParticipated && t.Valid() && p.ActionType == t
}

// MarketState is the process-wide fee ledger and admin state.
type MarketState struct {
	Owner              common.Address `json:"owner"`
	FeeCollector       common.Address `json:"fee_collector"`
	PlatformFeeBps     uint64         `json:"platform_fee_bps"`
	TotalFeesCollected *big.Int       `json:"total_fees_collected"`
	PendingFees        *big.Int       `json:"pending_fees"`
	Disabled           bool           `json:"disabled"`
}

func (s *MarketState) Clone() *MarketState {
	cp := *s
	cp.TotalFeesCollected = cloneInt(s.TotalFeesCollected)
	cp.PendingFees = cloneInt(s.PendingFees)
	return &cp
}

// KeyValue is one entry of the params list an action router forwards.
type KeyValue struct {
	Key   common.Hash `json:"key"`
	Value []byte      `json:"value"`
}

// Transfer is one token movement requested by an operation.
type Transfer struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

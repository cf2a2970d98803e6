package marketplace

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CampaignInfo is the flattened read model of getCampaignInfo. Only the
// reward field of the campaign's own action type is non-zero.
type CampaignInfo struct {
	Campaign
	EffectiveStatus CampaignStatus `json:"effective_status"`
	RemainingSlots  uint64         `json:"remaining_slots"`
	LikeReward      *big.Int       `json:"like_reward"`
	CommentReward   *big.Int       `json:"comment_reward"`
	QuoteReward     *big.Int       `json:"quote_reward"`
}

type RewardTimeStatus struct {
	RewardClaimableTime int64 `json:"reward_claimable_time"`
	RewardTimeEnd       int64 `json:"reward_time_end"`
	Now                 int64 `json:"now"`
	Claimable           bool  `json:"claimable"`
	Expired             bool  `json:"expired"`
}

type FeeState struct {
	Owner              common.Address `json:"owner"`
	FeeCollector       common.Address `json:"fee_collector"`
	PlatformFeeBps     uint64         `json:"platform_fee_bps"`
	DisplayFeeBps      uint64         `json:"display_fee_bps"`
	TotalFeesCollected *big.Int       `json:"total_fees_collected"`
	PendingFees        *big.Int       `json:"pending_fees"`
	Disabled           bool           `json:"disabled"`
}

func (m *Marketplace) Campaigns(id uint64) (*Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.campaign(id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

func (m *Marketplace) CampaignGroups(id uint64) (*CampaignGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, err := m.group(id)
	if err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

// CampaignByPost returns the latest campaign created for postID.
func (m *Marketplace) CampaignByPost(postID string) (*Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.postCampaigns[postID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.campaigns[id-1].Clone(), nil
}

// CampaignInfluencerActions returns the participation record, or an empty
// record when the influencer never took part.
func (m *Marketplace) CampaignInfluencerActions(id uint64, influencer common.Address) (*Participation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.campaign(id); err != nil {
		return nil, err
	}
	if p, ok := m.participations[participationKey{campaignID: id, influencer: influencer}]; ok {
		return p.Clone(), nil
	}
	return &Participation{CampaignID: id, Influencer: influencer, Reward: new(big.Int), Fee: new(big.Int)}, nil
}

func (m *Marketplace) participation(id uint64, influencer common.Address) *Participation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.participations[participationKey{campaignID: id, influencer: influencer}]
}

func (m *Marketplace) HasParticipated(id uint64, influencer common.Address) bool {
	p := m.participation(id, influencer)
	return p != nil && p.HasParticipated
}

func (m *Marketplace) HasClaimedReward(id uint64, influencer common.Address) bool {
	p := m.participation(id, influencer)
	return p != nil && p.HasClaimedReward
}

func (m *Marketplace) HasPerformedAction(id uint64, influencer common.Address, t ActionType) bool {
	p := m.participation(id, influencer)
	return p != nil && p.HasPerformedAction(t)
}

// Participants lists influencers of a campaign in participation order.
func (m *Marketplace) Participants(id uint64) []common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]common.Address(nil), m.participants[id]...)
}

// UnclaimedParticipations returns the participations of a campaign whose
// reward is still owed, in participation order.
func (m *Marketplace) UnclaimedParticipations(id uint64) []*Participation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Participation
	for _, inf := range m.participants[id] {
		p := m.participations[participationKey{campaignID: id, influencer: inf}]
		if p != nil && !p.HasClaimedReward {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (m *Marketplace) GetCampaignInfo(id uint64) (*CampaignInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.campaign(id)
	if err != nil {
		return nil, err
	}
	info := &CampaignInfo{
		Campaign:        *c.Clone(),
		EffectiveStatus: c.EffectiveStatus(m.now()),
		RemainingSlots:  c.RemainingSlots(),
		LikeReward:      new(big.Int),
		CommentReward:   new(big.Int),
		QuoteReward:     new(big.Int),
	}
	switch c.ActionType {
	case ActionMirror:
		info.LikeReward.Set(c.RewardAmount)
	case ActionComment:
		info.CommentReward.Set(c.RewardAmount)
	case ActionQuote:
		info.QuoteReward.Set(c.RewardAmount)
	case ActionNone:
	}
	return info, nil
}

func (m *Marketplace) GetGroupPosts(groupID uint64) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, err := m.group(groupID)
	if err != nil {
		return nil, err
	}
	return append([]uint64(nil), g.PostCampaignIDs...), nil
}

func (m *Marketplace) GetSellerCampaigns(seller common.Address) []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uint64(nil), m.sellerCampaigns[seller]...)
}

func (m *Marketplace) GetSellerGroups(seller common.Address) []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uint64(nil), m.sellerGroups[seller]...)
}

func (m *Marketplace) GetRewardTimeStatus(id uint64) (*RewardTimeStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.campaign(id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	expired := c.RewardTimeEnd != 0 && now > c.RewardTimeEnd
	return &RewardTimeStatus{
		RewardClaimableTime: c.RewardClaimableTime,
		RewardTimeEnd:       c.RewardTimeEnd,
		Now:                 now,
		Claimable:           now >= c.RewardClaimableTime && !expired,
		Expired:             expired,
	}, nil
}

// CampaignCount is the number of campaigns ever created. IDs run 1..count.
func (m *Marketplace) CampaignCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.campaigns))
}

func (m *Marketplace) PlatformFeePercentage() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.market.PlatformFeeBps
}

func (m *Marketplace) TotalFeesCollected() *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.market.TotalFeesCollected)
}

func (m *Marketplace) Owner() common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.market.Owner
}

func (m *Marketplace) FeeCollector() common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.market.FeeCollector
}

// IsRouter reports whether caller may invoke Execute and Configure.
func (m *Marketplace) IsRouter(caller common.Address) bool {
	return m.router.IsAuthorized(caller)
}

func (m *Marketplace) Fees() FeeState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return FeeState{
		Owner:              m.market.Owner,
		FeeCollector:       m.market.FeeCollector,
		PlatformFeeBps:     m.market.PlatformFeeBps,
		DisplayFeeBps:      m.cfg.DisplayFeeBps,
		TotalFeesCollected: new(big.Int).Set(m.market.TotalFeesCollected),
		PendingFees:        new(big.Int).Set(m.market.PendingFees),
		Disabled:           m.market.Disabled,
	}
}

// ActiveCampaigns returns campaigns whose display window contains now.
func (m *Marketplace) ActiveCampaigns() []*Campaign {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	var out []*Campaign
	for _, c := range m.campaigns {
		if c.EffectiveStatus(now) == StatusActive {
			out = append(out, c.Clone())
		}
	}
	return out
}

// ClaimWindowOpenedBetween returns campaigns whose rewardClaimableTime falls in (from, to].
func (m *Marketplace) ClaimWindowOpenedBetween(from, to int64) []*Campaign {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Campaign
	for _, c := range m.campaigns {
		if c.RewardClaimableTime > from && c.RewardClaimableTime <= to && c.ReservedRewards.Sign() > 0 {
			out = append(out, c.Clone())
		}
	}
	return out
}

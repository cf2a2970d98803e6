package marketplace

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ActionRequest is what an action router forwards on behalf of an influencer.
type ActionRequest struct {
	OriginalMsgSender common.Address
	Feed              common.Address
	PostID            string
	Params            []KeyValue
}

func (m *Marketplace) routedCampaign(caller common.Address, req ActionRequest) (*Campaign, ActionType, error) {
	if !m.router.IsAuthorized(caller) {
		return nil, ActionNone, fmt.Errorf("caller %s is not an authorized router: %w", caller.Hex(), ErrInvalidMsgSender)
	}
	if m.market.Disabled {
		return nil, ActionNone, fmt.Errorf("marketplace is disabled: %w", ErrInvalidParameter)
	}
	if req.OriginalMsgSender == (common.Address{}) {
		return nil, ActionNone, fmt.Errorf("zero original sender: %w", ErrInvalidParameter)
	}
	actionType, err := DecodeActionType(req.Params)
	if err != nil {
		return nil, ActionNone, err
	}
	id, ok := m.postCampaigns[req.PostID]
	if !ok {
		return nil, ActionNone, fmt.Errorf("no campaign for post %s: %w", req.PostID, ErrInvalidParameter)
	}
	return m.campaigns[id-1], actionType, nil
}

// Configure is called by the router when the seller attaches the action to
// their post. It returns the ABI-encoded campaign id.
func (m *Marketplace) Configure(ctx context.Context, caller common.Address, req ActionRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, actionType, err := m.routedCampaign(caller, req)
	if err != nil {
		return nil, err
	}
	if req.OriginalMsgSender != c.SellerAddress {
		return nil, fmt.Errorf("%s is not the seller of campaign %d: %w", req.OriginalMsgSender.Hex(), c.ID, ErrInvalidMsgSender)
	}
	if actionType != c.ActionType {
		return nil, fmt.Errorf("campaign %d rewards %s, not %s: %w", c.ID, c.ActionType, actionType, ErrInvalidParameter)
	}
	if err := m.requireMutable(c, m.now()); err != nil {
		return nil, err
	}
	if c.ActionConfigured {
		return nil, fmt.Errorf("campaign %d action already configured: %w", c.ID, ErrRedundantStateChange)
	}

	next := c.Clone()
	next.ActionConfigured = true
	cs := &Changeset{Op: "configure", Caller: caller, Campaigns: []*Campaign{next}}
	cs.Events = append(cs.Events, m.event(EventCampaignUpdated, c.ID, map[string]any{
		"campaign_id":       c.ID,
		"action_configured": true,
		"feed":              req.Feed.Hex(),
	}))
	if err := m.commit(ctx, cs); err != nil {
		return nil, err
	}
	return encodeCampaignID(c.ID), nil
}

// Execute records an influencer's action on the campaign's post. The reward
// is reserved now and paid by ClaimReward once the claim window opens.
func (m *Marketplace) Execute(ctx context.Context, caller common.Address, req ActionRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, actionType, err := m.routedCampaign(caller, req)
	if err != nil {
		return nil, err
	}
	now := m.now()
	influencer := req.OriginalMsgSender

	switch st := c.EffectiveStatus(now); st {
	case StatusActive:
	case StatusPending, StatusCompleted, StatusCancelled:
		return nil, fmt.Errorf("campaign %d is %s: %w", c.ID, st, ErrInvalidParameter)
	default:
		return nil, fmt.Errorf("campaign %d has unknown status %s: %w", c.ID, st, ErrInvalidParameter)
	}
	if actionType != c.ActionType {
		return nil, fmt.Errorf("campaign %d rewards %s, not %s: %w", c.ID, c.ActionType, actionType, ErrInvalidParameter)
	}
	if c.RemainingSlots() == 0 {
		return nil, fmt.Errorf("campaign %d has no open slots: %w", c.ID, ErrInvalidParameter)
	}
	key := participationKey{campaignID: c.ID, influencer: influencer}
	if p, ok := m.participations[key]; ok && p.HasParticipated {
		return nil, fmt.Errorf("%s already participated in campaign %d: %w", influencer.Hex(), c.ID, ErrInvalidParameter)
	}
	if c.MinFollowersRequired > 0 {
		if m.graph == nil {
			return nil, fmt.Errorf("campaign %d requires followers but no graph is configured", c.ID)
		}
		followers, err := m.graph.FollowerCount(ctx, influencer)
		if err != nil {
			return nil, fmt.Errorf("follower count for %s: %w", influencer.Hex(), err)
		}
		if followers < c.MinFollowersRequired {
			return nil, fmt.Errorf("%s has %d followers, campaign %d requires %d: %w",
				influencer.Hex(), followers, c.ID, c.MinFollowersRequired, ErrInvalidParameter)
		}
	}

	reward := new(big.Int).Set(c.RewardAmount)
	if reward.Cmp(c.unreservedRewards()) > 0 {
		return nil, fmt.Errorf("campaign %d budget exhausted: %w", c.ID, ErrInvalidParameter)
	}
	fee := bps(reward, c.PlatformFeeBps)
	if avail := new(big.Int).Sub(c.DisplayFee, c.ReservedFees); fee.Cmp(avail) > 0 {
		fee = avail
	}

	next := c.Clone()
	next.ClaimedSlots++
	next.ReservedRewards.Add(next.ReservedRewards, reward)
	next.ReservedFees.Add(next.ReservedFees, fee)

	p := &Participation{
		CampaignID:      c.ID,
		Influencer:      influencer,
		ActionType:      actionType,
		HasParticipated: true,
		Reward:          reward,
		Fee:             fee,
		Feed:            req.Feed,
		ParticipatedAt:  now,
	}

	cs := &Changeset{
		Op:             "execute",
		Caller:         caller,
		Campaigns:      []*Campaign{next},
		Participations: []*Participation{p},
	}
	cs.Events = append(cs.Events, m.event(EventInfluencerParticipated, c.ID, map[string]any{
		"campaign_id":   c.ID,
		"influencer":    influencer.Hex(),
		"action_type":   actionType.String(),
		"post_id":       c.PostID,
		"feed":          req.Feed.Hex(),
		"reward":        reward.String(),
		"claimed_slots": next.ClaimedSlots,
	}))
	if err := m.commit(ctx, cs); err != nil {
		return nil, err
	}
	return encodeCampaignID(c.ID), nil
}

// ClaimReward pays the caller's reserved reward once rewardClaimableTime has
// passed. A second claim fails and pays nothing.
func (m *Marketplace) ClaimReward(ctx context.Context, caller common.Address, id uint64, actionType ActionType, feed common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.campaign(id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if now < c.RewardClaimableTime {
		return nil, fmt.Errorf("campaign %d rewards claimable from %d: %w", id, c.RewardClaimableTime, ErrInvalidParameter)
	}
	if c.RewardTimeEnd != 0 && now > c.RewardTimeEnd {
		return nil, fmt.Errorf("campaign %d claim window closed at %d: %w", id, c.RewardTimeEnd, ErrInvalidParameter)
	}
	if !actionType.Valid() {
		return nil, fmt.Errorf("action type %s is not rewardable: %w", actionType, ErrInvalidParameter)
	}

	p, ok := m.participations[participationKey{campaignID: id, influencer: caller}]
	if !ok || !p.HasParticipated {
		return nil, fmt.Errorf("%s did not participate in campaign %d: %w", caller.Hex(), id, ErrInvalidParameter)
	}
	if p.HasClaimedReward {
		return nil, fmt.Errorf("%s already claimed campaign %d: %w", caller.Hex(), id, ErrRedundantStateChange)
	}
	if p.ActionType != actionType {
		return nil, fmt.Errorf("participation was %s, not %s: %w", p.ActionType, actionType, ErrInvalidParameter)
	}

	nextP := p.Clone()
	nextP.HasClaimedReward = true
	nextP.ClaimedAt = now

	next := c.Clone()
	next.PaidSlots++
	next.RewardPool.Sub(next.RewardPool, p.Reward)
	next.ReservedRewards.Sub(next.ReservedRewards, p.Reward)
	next.DisplayFee.Sub(next.DisplayFee, p.Fee)
	next.ReservedFees.Sub(next.ReservedFees, p.Fee)

	market := m.market.Clone()
	market.PendingFees.Add(market.PendingFees, p.Fee)
	market.TotalFeesCollected.Add(market.TotalFeesCollected, p.Fee)

	cs := &Changeset{
		Op:             "claimReward",
		Caller:         caller,
		Campaigns:      []*Campaign{next},
		Participations: []*Participation{nextP},
		Market:         market,
	}
	cs.transfer(m.cfg.Escrow, caller, p.Reward)
	cs.Events = append(cs.Events, m.event(EventRewardPaid, id, map[string]any{
		"campaign_id": id,
		"influencer":  caller.Hex(),
		"action_type": actionType.String(),
		"amount":      p.Reward.String(),
		"fee":         p.Fee.String(),
		"feed":        feed.Hex(),
	}))
	if err := m.commit(ctx, cs); err != nil {
		return nil, err
	}
	m.log.Info("reward paid",
		zap.Uint64("campaign_id", id),
		zap.String("influencer", caller.Hex()),
		zap.String("amount", p.Reward.String()),
	)
	return new(big.Int).Set(p.Reward), nil
}

// UnfulfilledRefund itemizes what ClaimUnfulfilledSlots paid back to the seller.
type UnfulfilledRefund struct {
	// Slots is (availableSlots - claimedSlots) x rewardAmount.
	Slots *big.Int
	// Remainder is the reward budget left beyond Slots: division dust, plus
	// unclaimed rewards once rewardTimeEnd has passed.
	Remainder  *big.Int
	DisplayFee *big.Int
}

func (r *UnfulfilledRefund) Total() *big.Int {
	t := new(big.Int).Add(r.Slots, r.Remainder)
	return t.Add(t, r.DisplayFee)
}

// ClaimUnfulfilledSlots returns the budget of slots nobody filled once the
// display window is over. After rewardTimeEnd it also releases rewards that
// participants never claimed.
func (m *Marketplace) ClaimUnfulfilledSlots(ctx context.Context, caller common.Address, id uint64) (*UnfulfilledRefund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.campaign(id)
	if err != nil {
		return nil, err
	}
	if err := m.requireSeller(c, caller); err != nil {
		return nil, err
	}
	now := m.now()
	if now <= c.AdDisplayTimePeriod.EndTime && !c.Status.Terminal() {
		return nil, fmt.Errorf("campaign %d is still running until %d: %w", id, c.AdDisplayTimePeriod.EndTime, ErrInvalidParameter)
	}
	expired := c.RewardTimeEnd != 0 && now > c.RewardTimeEnd

	refund := c.unreservedRewards()
	fee := new(big.Int).Sub(c.DisplayFee, c.ReservedFees)
	if expired {
		refund = new(big.Int).Set(c.RewardPool)
		fee = new(big.Int).Set(c.DisplayFee)
	}
	if refund.Sign() == 0 && fee.Sign() == 0 {
		return nil, fmt.Errorf("campaign %d has nothing left to refund: %w", id, ErrRedundantStateChange)
	}

	slots := new(big.Int).Mul(new(big.Int).SetUint64(c.RemainingSlots()), c.RewardAmount)
	if slots.Cmp(refund) > 0 {
		slots.Set(refund)
	}
	out := &UnfulfilledRefund{
		Slots:      slots,
		Remainder:  new(big.Int).Sub(refund, slots),
		DisplayFee: fee,
	}

	status := c.Status
	if !status.Terminal() {
		status = StatusCompleted
	}
	if err := m.finish(ctx, "claimUnfulfilledSlots", caller, c, status, expired); err != nil {
		return nil, err
	}
	return out, nil
}

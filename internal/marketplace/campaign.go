package marketplace

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MaxSlots bounds availableSlots so slot counts fit a signed 64-bit column.
const MaxSlots = math.MaxInt64

type CreateCampaignParams struct {
	GroupID              uint64
	PostID               string
	ActionType           ActionType
	AvailableSlots       uint64
	DisplayTime          TimePeriod
	ContentURI           string
	ContentHash          common.Hash
	RewardClaimableTime  int64
	MinFollowersRequired uint64
	TargetAudience       TargetAudience
	// Pool is the full deposit pulled from the seller's balance.
	Pool *big.Int
}

// CreateCampaignGroup opens a new group owned by caller and returns its id.
func (m *Marketplace) CreateCampaignGroup(ctx context.Context, caller common.Address, groupURI string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller == (common.Address{}) {
		return 0, fmt.Errorf("zero caller: %w", ErrInvalidMsgSender)
	}
	if m.market.Disabled {
		return 0, fmt.Errorf("marketplace is disabled: %w", ErrInvalidParameter)
	}
	groupURI = strings.TrimSpace(groupURI)
	if groupURI == "" {
		return 0, fmt.Errorf("group uri is required: %w", ErrInvalidParameter)
	}

	g := &CampaignGroup{
		ID:        uint64(len(m.groups)) + 1,
		GroupURI:  groupURI,
		Owner:     caller,
		CreatedAt: m.now(),
	}
	cs := &Changeset{Op: "createCampaignGroup", Caller: caller, Groups: []*CampaignGroup{g}}
	cs.Events = append(cs.Events, Event{
		Name:      EventCampaignGroupCreated,
		GroupID:   g.ID,
		Args:      map[string]any{"group_id": g.ID, "owner": caller.Hex(), "group_uri": groupURI},
		Timestamp: g.CreatedAt,
	})
	if err := m.commit(ctx, cs); err != nil {
		return 0, err
	}
	return g.ID, nil
}

func (m *Marketplace) CreateAdCampaign(ctx context.Context, caller common.Address, p CreateCampaignParams) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if caller == (common.Address{}) {
		return 0, fmt.Errorf("zero caller: %w", ErrInvalidMsgSender)
	}
	if m.market.Disabled {
		return 0, fmt.Errorf("marketplace is disabled: %w", ErrInvalidParameter)
	}
	if err := validateCreate(p, now); err != nil {
		return 0, err
	}
	if prev, ok := m.postCampaigns[p.PostID]; ok {
		if c := m.campaigns[prev-1]; !c.EffectiveStatus(now).Terminal() {
			return 0, fmt.Errorf("post %s already has open campaign %d: %w", p.PostID, prev, ErrInvalidParameter)
		}
	}

	var grp *CampaignGroup
	if p.GroupID != 0 {
		g, err := m.group(p.GroupID)
		if err != nil {
			return 0, fmt.Errorf("group %d does not exist: %w", p.GroupID, ErrInvalidParameter)
		}
		if g.Owner != caller {
			return 0, fmt.Errorf("group %d is not owned by %s: %w", p.GroupID, caller.Hex(), ErrInvalidMsgSender)
		}
		grp = g.Clone()
	}

	displayFee := bps(p.Pool, m.cfg.DisplayFeeBps)
	budget := new(big.Int).Sub(p.Pool, displayFee)
	reward := new(big.Int).Quo(budget, new(big.Int).SetUint64(p.AvailableSlots))
	if reward.Sign() <= 0 {
		return 0, fmt.Errorf("pool %s too small for %d slots: %w", p.Pool, p.AvailableSlots, ErrInvalidParameter)
	}

	var rewardTimeEnd int64
	if m.cfg.ClaimPeriod > 0 {
		rewardTimeEnd = p.RewardClaimableTime + int64(m.cfg.ClaimPeriod.Seconds())
	}

	c := &Campaign{
		ID:                   uint64(len(m.campaigns)) + 1,
		GroupID:              p.GroupID,
		PostID:               p.PostID,
		SellerAddress:        caller,
		ActionType:           p.ActionType,
		AmountPool:           new(big.Int).Set(p.Pool),
		RewardAmount:         reward,
		MinFollowersRequired: p.MinFollowersRequired,
		AvailableSlots:       p.AvailableSlots,
		AdDisplayTimePeriod:  p.DisplayTime,
		RewardClaimableTime:  p.RewardClaimableTime,
		RewardTimeEnd:        rewardTimeEnd,
		ContentURI:           p.ContentURI,
		ContentHash:          p.ContentHash,
		Version:              1,
		Status:               StatusPending,
		TargetAudience:       p.TargetAudience,
		RewardPool:           budget,
		ReservedRewards:      new(big.Int),
		DisplayFee:           displayFee,
		ReservedFees:         new(big.Int),
		PlatformFeeBps:       m.market.PlatformFeeBps,
		CreatedAt:            now,
	}

	cs := &Changeset{Op: "createAdCampaign", Caller: caller, Campaigns: []*Campaign{c}}
	if grp != nil {
		grp.PostCampaignIDs = append(grp.PostCampaignIDs, c.ID)
		cs.Groups = []*CampaignGroup{grp}
	}
	cs.transfer(caller, m.cfg.Escrow, p.Pool)
	cs.Events = append(cs.Events, m.event(EventCampaignCreated, c.ID, map[string]any{
		"campaign_id":           c.ID,
		"group_id":              c.GroupID,
		"post_id":               c.PostID,
		"seller":                caller.Hex(),
		"action_type":           c.ActionType.String(),
		"amount_pool":           c.AmountPool.String(),
		"reward_amount":         reward.String(),
		"display_fee":           displayFee.String(),
		"available_slots":       c.AvailableSlots,
		"start_time":            c.AdDisplayTimePeriod.StartTime,
		"end_time":              c.AdDisplayTimePeriod.EndTime,
		"reward_claimable_time": c.RewardClaimableTime,
		"content_uri":           c.ContentURI,
	}))

	if err := m.commit(ctx, cs); err != nil {
		return 0, err
	}
	m.log.Info("campaign created",
		zap.Uint64("campaign_id", c.ID),
		zap.String("seller", caller.Hex()),
		zap.String("post_id", c.PostID),
		zap.String("reward_amount", reward.String()),
	)
	return c.ID, nil
}

func validateCreate(p CreateCampaignParams, now int64) error {
	switch {
	case strings.TrimSpace(p.PostID) == "":
		return fmt.Errorf("post id is required: %w", ErrInvalidParameter)
	case !p.ActionType.Valid():
		return fmt.Errorf("action type %s is not rewardable: %w", p.ActionType, ErrInvalidParameter)
	case p.AvailableSlots == 0:
		return fmt.Errorf("available slots must be positive: %w", ErrInvalidParameter)
	case p.AvailableSlots > MaxSlots:
		return fmt.Errorf("available slots %d exceed %d: %w", p.AvailableSlots, uint64(MaxSlots), ErrInvalidParameter)
	case p.DisplayTime.StartTime <= now:
		return fmt.Errorf("start time %d is not in the future: %w", p.DisplayTime.StartTime, ErrInvalidParameter)
	case p.DisplayTime.EndTime <= p.DisplayTime.StartTime:
		return fmt.Errorf("end time must be after start time: %w", ErrInvalidParameter)
	case p.RewardClaimableTime <= p.DisplayTime.EndTime:
		return fmt.Errorf("reward claimable time must be after end time: %w", ErrInvalidParameter)
	case p.Pool == nil || p.Pool.Sign() <= 0:
		return fmt.Errorf("pool amount must be positive: %w", ErrInvalidParameter)
	case strings.TrimSpace(p.ContentURI) == "":
		return fmt.Errorf("content uri is required: %w", ErrInvalidParameter)
	}
	return nil
}

// UpdateCampaignSlots opens additionalSlots more slots and spreads the
// unreserved reward budget across every open slot.
func (m *Marketplace) UpdateCampaignSlots(ctx context.Context, caller common.Address, id, additionalSlots uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.mutableCampaign(caller, id)
	if err != nil {
		return err
	}
	if additionalSlots == 0 {
		return fmt.Errorf("adding zero slots to campaign %d: %w", id, ErrRedundantStateChange)
	}
	if c.AvailableSlots > MaxSlots || additionalSlots > MaxSlots-c.AvailableSlots {
		return fmt.Errorf("adding %d slots to %d exceeds %d: %w", additionalSlots, c.AvailableSlots, uint64(MaxSlots), ErrInvalidParameter)
	}

	next := c.Clone()
	next.AvailableSlots += additionalSlots
	open := new(big.Int).SetUint64(next.RemainingSlots())
	reward := new(big.Int).Quo(next.unreservedRewards(), open)
	if reward.Sign() <= 0 {
		return fmt.Errorf("remaining budget cannot fund %d open slots: %w", next.RemainingSlots(), ErrInvalidParameter)
	}
	next.RewardAmount = reward

	cs := &Changeset{Op: "updateCampaignSlots", Caller: caller, Campaigns: []*Campaign{next}}
	cs.Events = append(cs.Events, m.event(EventCampaignSlotsUpdated, id, map[string]any{
		"campaign_id":     id,
		"available_slots": next.AvailableSlots,
		"reward_amount":   reward.String(),
	}))
	return m.commit(ctx, cs)
}

// UpdateCampaignPrice rewrites the reward paid per future participation.
func (m *Marketplace) UpdateCampaignPrice(ctx context.Context, caller common.Address, id uint64, newReward *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.mutableCampaign(caller, id)
	if err != nil {
		return err
	}
	if newReward == nil || newReward.Sign() <= 0 {
		return fmt.Errorf("reward must be positive: %w", ErrInvalidParameter)
	}
	if newReward.Cmp(c.RewardAmount) == 0 {
		return fmt.Errorf("campaign %d reward already %s: %w", id, newReward, ErrRedundantStateChange)
	}
	need := new(big.Int).Mul(newReward, new(big.Int).SetUint64(c.RemainingSlots()))
	if need.Cmp(c.unreservedRewards()) > 0 {
		return fmt.Errorf("reward %s for %d open slots exceeds budget %s: %w",
			newReward, c.RemainingSlots(), c.unreservedRewards(), ErrInvalidParameter)
	}

	next := c.Clone()
	next.RewardAmount = new(big.Int).Set(newReward)

	args := rewardsByType(next)
	args["campaign_id"] = id
	cs := &Changeset{Op: "updateCampaignPrice", Caller: caller, Campaigns: []*Campaign{next}}
	cs.Events = append(cs.Events, m.event(EventCampaignPricesUpdated, id, args))
	return m.commit(ctx, cs)
}

// UpdateCampaignContent points the campaign at new metadata and bumps its version.
func (m *Marketplace) UpdateCampaignContent(ctx context.Context, caller common.Address, id uint64, uri string, hash common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.mutableCampaign(caller, id)
	if err != nil {
		return err
	}
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return fmt.Errorf("content uri is required: %w", ErrInvalidParameter)
	}
	if uri == c.ContentURI && hash == c.ContentHash {
		return fmt.Errorf("campaign %d content unchanged: %w", id, ErrRedundantStateChange)
	}

	next := c.Clone()
	next.ContentURI = uri
	next.ContentHash = hash
	next.Version++

	cs := &Changeset{Op: "updateCampaignContent", Caller: caller, Campaigns: []*Campaign{next}}
	cs.Events = append(cs.Events, m.event(EventCampaignContentUpdated, id, map[string]any{
		"campaign_id":  id,
		"content_uri":  uri,
		"content_hash": hash.Hex(),
		"version":      next.Version,
	}))
	return m.commit(ctx, cs)
}

// ExtendCampaignTime pushes the display window end and the claim time later.
func (m *Marketplace) ExtendCampaignTime(ctx context.Context, caller common.Address, id uint64, newEndTime, newClaimableTime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.mutableCampaign(caller, id)
	if err != nil {
		return err
	}
	if newEndTime == c.AdDisplayTimePeriod.EndTime && newClaimableTime == c.RewardClaimableTime {
		return fmt.Errorf("campaign %d times unchanged: %w", id, ErrRedundantStateChange)
	}
	if newEndTime < c.AdDisplayTimePeriod.EndTime {
		return fmt.Errorf("end time can only be extended: %w", ErrInvalidParameter)
	}
	if newClaimableTime <= newEndTime {
		return fmt.Errorf("reward claimable time must be after end time: %w", ErrInvalidParameter)
	}

	next := c.Clone()
	next.AdDisplayTimePeriod.EndTime = newEndTime
	next.RewardClaimableTime = newClaimableTime
	if c.RewardTimeEnd != 0 {
		next.RewardTimeEnd = newClaimableTime + (c.RewardTimeEnd - c.RewardClaimableTime)
	}

	cs := &Changeset{Op: "extendCampaignTime", Caller: caller, Campaigns: []*Campaign{next}}
	cs.Events = append(cs.Events, m.event(EventCampaignTimeExtended, id, map[string]any{
		"campaign_id":           id,
		"end_time":              newEndTime,
		"reward_claimable_time": newClaimableTime,
		"reward_time_end":       next.RewardTimeEnd,
	}))
	return m.commit(ctx, cs)
}

// CancelCampaign stops a campaign before its window closes and refunds
// everything not owed to participants. The owner may cancel as an emergency.
func (m *Marketplace) CancelCampaign(ctx context.Context, caller common.Address, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.campaign(id)
	if err != nil {
		return err
	}
	if caller != c.SellerAddress {
		if err := m.requireOwner(caller); err != nil {
			return fmt.Errorf("caller %s cannot cancel campaign %d: %w", caller.Hex(), id, ErrInvalidMsgSender)
		}
	}
	if c.Status == StatusCancelled {
		return fmt.Errorf("campaign %d already cancelled: %w", id, ErrRedundantStateChange)
	}
	if err := m.requireMutable(c, m.now()); err != nil {
		return err
	}
	return m.finish(ctx, "cancelCampaign", caller, c, StatusCancelled, false)
}

// CompleteCampaign closes a campaign early or formalizes its natural expiry.
func (m *Marketplace) CompleteCampaign(ctx context.Context, caller common.Address, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.campaign(id)
	if err != nil {
		return err
	}
	if caller != c.SellerAddress {
		if err := m.requireOwner(caller); err != nil {
			return fmt.Errorf("caller %s cannot complete campaign %d: %w", caller.Hex(), id, ErrInvalidMsgSender)
		}
	}
	switch c.Status {
	case StatusCompleted:
		return fmt.Errorf("campaign %d already completed: %w", id, ErrRedundantStateChange)
	case StatusCancelled:
		return fmt.Errorf("campaign %d is cancelled: %w", id, ErrInvalidParameter)
	}
	return m.finish(ctx, "completeCampaign", caller, c, StatusCompleted, false)
}

// finish moves c to a terminal status and refunds the seller. With
// releaseReserved the unpaid participant reservations are refunded too.
func (m *Marketplace) finish(ctx context.Context, op string, caller common.Address, c *Campaign, status CampaignStatus, releaseReserved bool) error {
	next := c.Clone()
	cs := &Changeset{Op: op, Caller: caller, Campaigns: []*Campaign{next}}

	if next.Status != status {
		prev := next.Status
		next.Status = status
		cs.Events = append(cs.Events, m.event(EventCampaignUpdated, c.ID, map[string]any{
			"campaign_id": c.ID,
			"old_status":  prev.String(),
			"new_status":  status.String(),
		}))
	}

	m.settle(cs, next, releaseReserved)
	if err := m.commit(ctx, cs); err != nil {
		return err
	}
	m.log.Info("campaign settled",
		zap.Uint64("campaign_id", c.ID),
		zap.String("op", op),
		zap.String("status", next.Status.String()),
	)
	return nil
}

// settle refunds the seller everything in escrow that no participant is owed.
func (m *Marketplace) settle(cs *Changeset, c *Campaign, releaseReserved bool) {
	if releaseReserved {
		c.ReservedRewards = new(big.Int)
		c.ReservedFees = new(big.Int)
	}

	deposits := c.unreservedRewards()
	if deposits.Sign() > 0 {
		c.RewardPool = new(big.Int).Set(c.ReservedRewards)
		cs.transfer(m.cfg.Escrow, c.SellerAddress, deposits)
		cs.Events = append(cs.Events, m.event(EventDepositsRefunded, c.ID, map[string]any{
			"campaign_id": c.ID,
			"seller":      c.SellerAddress.Hex(),
			"amount":      deposits.String(),
		}))
	}

	fee := new(big.Int).Sub(c.DisplayFee, c.ReservedFees)
	if fee.Sign() > 0 {
		c.DisplayFee = new(big.Int).Set(c.ReservedFees)
		cs.transfer(m.cfg.Escrow, c.SellerAddress, fee)
		cs.Events = append(cs.Events, m.event(EventDisplayFeeRefunded, c.ID, map[string]any{
			"campaign_id": c.ID,
			"seller":      c.SellerAddress.Hex(),
			"amount":      fee.String(),
		}))
	}
}

func (m *Marketplace) mutableCampaign(caller common.Address, id uint64) (*Campaign, error) {
	c, err := m.campaign(id)
	if err != nil {
		return nil, err
	}
	if err := m.requireSeller(c, caller); err != nil {
		return nil, err
	}
	if err := m.requireMutable(c, m.now()); err != nil {
		return nil, err
	}
	return c, nil
}

// rewardsByType renders the per-type reward fields of the read model. Only
// the campaign's own action type carries a value.
func rewardsByType(c *Campaign) map[string]any {
	out := map[string]any{"like_reward": "0", "comment_reward": "0", "quote_reward": "0"}
	switch c.ActionType {
	case ActionMirror:
		out["like_reward"] = c.RewardAmount.String()
	case ActionComment:
		out["comment_reward"] = c.RewardAmount.String()
	case ActionQuote:
		out["quote_reward"] = c.RewardAmount.String()
	case ActionNone:
	}
	return out
}

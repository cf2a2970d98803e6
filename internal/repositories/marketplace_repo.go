package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MarketplaceRepo persists marketplace changesets. Ledger balances live in
// the same database, so it settles transfers in the transaction that
// records the changeset.
type MarketplaceRepo struct {
	pool *pgxpool.Pool
}

func NewMarketplaceRepo(pool *pgxpool.Pool) *MarketplaceRepo {
	return &MarketplaceRepo{pool: pool}
}

var _ marketplace.SettlingStore = (*MarketplaceRepo)(nil)

// Apply writes every record of cs plus its audit entry in one transaction.
// It does not touch ledger balances.
func (r *MarketplaceRepo) Apply(ctx context.Context, cs *marketplace.Changeset) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return writeChangeset(ctx, tx, cs)
	})
}

// Settle performs the transfers of cs and writes its records in one
// transaction. Either all of it commits or none of it does.
func (r *MarketplaceRepo) Settle(ctx context.Context, cs *marketplace.Changeset) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, t := range cs.Transfers {
			if err := transfer(ctx, tx, t.From, t.To, t.Amount); err != nil {
				return fmt.Errorf("transfer %s from %s: %w", t.Amount, t.From.Hex(), err)
			}
		}
		return writeChangeset(ctx, tx, cs)
	})
}

func (r *MarketplaceRepo) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func writeChangeset(ctx context.Context, tx pgx.Tx, cs *marketplace.Changeset) error {
	for _, g := range cs.Groups {
		if err := upsertGroup(ctx, tx, g); err != nil {
			return fmt.Errorf("upsert group %d: %w", g.ID, err)
		}
	}
	for _, c := range cs.Campaigns {
		if err := upsertCampaign(ctx, tx, c); err != nil {
			return fmt.Errorf("upsert campaign %d: %w", c.ID, err)
		}
	}
	for _, p := range cs.Participations {
		if err := upsertParticipation(ctx, tx, p); err != nil {
			return fmt.Errorf("upsert participation %d/%s: %w", p.CampaignID, p.Influencer.Hex(), err)
		}
	}
	if cs.Market != nil {
		if err := upsertMarket(ctx, tx, cs.Market); err != nil {
			return fmt.Errorf("upsert market state: %w", err)
		}
	}
	if err := insertAudit(ctx, tx, cs); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}

func upsertGroup(ctx context.Context, tx pgx.Tx, g *marketplace.CampaignGroup) error {
	ids := make([]int64, len(g.PostCampaignIDs))
	for i, id := range g.PostCampaignIDs {
		ids[i] = int64(id)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO campaign_groups (id, group_uri, owner, post_campaign_ids, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET post_campaign_ids = EXCLUDED.post_campaign_ids
	`, int64(g.ID), g.GroupURI, g.Owner.Hex(), ids, g.CreatedAt)
	return err
}

func upsertCampaign(ctx context.Context, tx pgx.Tx, c *marketplace.Campaign) error {
	audience, err := json.Marshal(c.TargetAudience)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO campaigns (
			id, group_id, post_id, seller_address, action_type, amount_pool, reward_amount,
			min_followers_required, available_slots, claimed_slots, paid_slots,
			start_time, end_time, reward_claimable_time, reward_time_end,
			content_uri, content_hash, version, status, target_audience,
			reward_pool, reserved_rewards, display_fee, reserved_fees,
			platform_fee_bps, action_configured, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6::numeric, $7::numeric,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18, $19, $20,
			$21::numeric, $22::numeric, $23::numeric, $24::numeric,
			$25, $26, $27
		)
		ON CONFLICT (id) DO UPDATE SET
			reward_amount = EXCLUDED.reward_amount,
			available_slots = EXCLUDED.available_slots,
			claimed_slots = EXCLUDED.claimed_slots,
			paid_slots = EXCLUDED.paid_slots,
			end_time = EXCLUDED.end_time,
			reward_claimable_time = EXCLUDED.reward_claimable_time,
			reward_time_end = EXCLUDED.reward_time_end,
			content_uri = EXCLUDED.content_uri,
			content_hash = EXCLUDED.content_hash,
			version = EXCLUDED.version,
			status = EXCLUDED.status,
			reward_pool = EXCLUDED.reward_pool,
			reserved_rewards = EXCLUDED.reserved_rewards,
			display_fee = EXCLUDED.display_fee,
			reserved_fees = EXCLUDED.reserved_fees,
			action_configured = EXCLUDED.action_configured
	`, int64(c.ID), int64(c.GroupID), c.PostID, c.SellerAddress.Hex(), int16(c.ActionType),
		c.AmountPool.String(), c.RewardAmount.String(),
		int64(c.MinFollowersRequired), int64(c.AvailableSlots), int64(c.ClaimedSlots), int64(c.PaidSlots),
		c.AdDisplayTimePeriod.StartTime, c.AdDisplayTimePeriod.EndTime, c.RewardClaimableTime, c.RewardTimeEnd,
		c.ContentURI, c.ContentHash.Hex(), int64(c.Version), int16(c.Status), audience,
		c.RewardPool.String(), c.ReservedRewards.String(), c.DisplayFee.String(), c.ReservedFees.String(),
		int64(c.PlatformFeeBps), c.ActionConfigured, c.CreatedAt,
	)
	return err
}

func upsertParticipation(ctx context.Context, tx pgx.Tx, p *marketplace.Participation) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO participations (
			campaign_id, influencer, action_type, has_participated, has_claimed_reward,
			reward, fee, feed, participated_at, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10)
		ON CONFLICT (campaign_id, influencer) DO UPDATE SET
			has_claimed_reward = EXCLUDED.has_claimed_reward,
			claimed_at = EXCLUDED.claimed_at
	`, int64(p.CampaignID), p.Influencer.Hex(), int16(p.ActionType), p.HasParticipated, p.HasClaimedReward,
		p.Reward.String(), p.Fee.String(), p.Feed.Hex(), p.ParticipatedAt, p.ClaimedAt)
	return err
}

func upsertMarket(ctx context.Context, tx pgx.Tx, s *marketplace.MarketState) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO market_state (id, owner, fee_collector, platform_fee_bps, total_fees_collected, pending_fees, disabled)
		VALUES (1, $1, $2, $3, $4::numeric, $5::numeric, $6)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			fee_collector = EXCLUDED.fee_collector,
			platform_fee_bps = EXCLUDED.platform_fee_bps,
			total_fees_collected = EXCLUDED.total_fees_collected,
			pending_fees = EXCLUDED.pending_fees,
			disabled = EXCLUDED.disabled,
			updated_at = now()
	`, s.Owner.Hex(), s.FeeCollector.Hex(), int64(s.PlatformFeeBps),
		s.TotalFeesCollected.String(), s.PendingFees.String(), s.Disabled)
	return err
}

func insertAudit(ctx context.Context, tx pgx.Tx, cs *marketplace.Changeset) error {
	entityType, entityID := "market", (*int64)(nil)
	switch {
	case len(cs.Campaigns) > 0:
		id := int64(cs.Campaigns[0].ID)
		entityType, entityID = "campaign", &id
	case len(cs.Groups) > 0:
		id := int64(cs.Groups[0].ID)
		entityType, entityID = "group", &id
	}
	meta, err := json.Marshal(map[string]any{
		"events":    cs.Events,
		"transfers": cs.Transfers,
	})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO audit_log (actor_address, actor_type, action, entity_type, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cs.Caller.Hex(), "user", cs.Op, entityType, entityID, meta)
	return err
}

// Load reads the full persisted state in id order.
func (r *MarketplaceRepo) Load(ctx context.Context) (*marketplace.Snapshot, error) {
	snap := &marketplace.Snapshot{}

	groups, err := r.loadGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	snap.Groups = groups

	campaigns, err := r.loadCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load campaigns: %w", err)
	}
	snap.Campaigns = campaigns

	parts, err := r.loadParticipations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load participations: %w", err)
	}
	snap.Participations = parts

	market, err := r.loadMarket(ctx)
	if err != nil {
		return nil, fmt.Errorf("load market state: %w", err)
	}
	snap.Market = market

	return snap, nil
}

func (r *MarketplaceRepo) loadGroups(ctx context.Context) ([]*marketplace.CampaignGroup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, group_uri, owner, post_campaign_ids, created_at
		FROM campaign_groups ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*marketplace.CampaignGroup
	for rows.Next() {
		var (
			g     marketplace.CampaignGroup
			id    int64
			owner string
			ids   []int64
		)
		if err := rows.Scan(&id, &g.GroupURI, &owner, &ids, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.ID = uint64(id)
		g.Owner = common.HexToAddress(owner)
		for _, cid := range ids {
			g.PostCampaignIDs = append(g.PostCampaignIDs, uint64(cid))
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

func (r *MarketplaceRepo) loadCampaigns(ctx context.Context) ([]*marketplace.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, group_id, post_id, seller_address, action_type, amount_pool::text, reward_amount::text,
		       min_followers_required, available_slots, claimed_slots, paid_slots,
		       start_time, end_time, reward_claimable_time, reward_time_end,
		       content_uri, content_hash, version, status, target_audience,
		       reward_pool::text, reserved_rewards::text, display_fee::text, reserved_fees::text,
		       platform_fee_bps, action_configured, created_at
		FROM campaigns ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*marketplace.Campaign
	for rows.Next() {
		var (
			c                                                                marketplace.Campaign
			id, groupID, minFollowers, slots, claimed, paid, version, feeBps int64
			seller, contentHash                                              string
			actionType, status                                               int16
			audience                                                         []byte
			pool, reward, rewardPool, reservedRewards, displayFee, reserved  string
		)
		if err := rows.Scan(&id, &groupID, &c.PostID, &seller, &actionType, &pool, &reward,
			&minFollowers, &slots, &claimed, &paid,
			&c.AdDisplayTimePeriod.StartTime, &c.AdDisplayTimePeriod.EndTime, &c.RewardClaimableTime, &c.RewardTimeEnd,
			&c.ContentURI, &contentHash, &version, &status, &audience,
			&rewardPool, &reservedRewards, &displayFee, &reserved,
			&feeBps, &c.ActionConfigured, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ID = uint64(id)
		c.GroupID = uint64(groupID)
		c.SellerAddress = common.HexToAddress(seller)
		c.ActionType = marketplace.ActionType(actionType)
		c.MinFollowersRequired = uint64(minFollowers)
		c.AvailableSlots = uint64(slots)
		c.ClaimedSlots = uint64(claimed)
		c.PaidSlots = uint64(paid)
		c.ContentHash = common.HexToHash(contentHash)
		c.Version = uint64(version)
		c.Status = marketplace.CampaignStatus(status)
		c.PlatformFeeBps = uint64(feeBps)
		if len(audience) > 0 {
			if err := json.Unmarshal(audience, &c.TargetAudience); err != nil {
				return nil, fmt.Errorf("campaign %d target audience: %w", id, err)
			}
		}
		for dst, src := range map[**big.Int]string{
			&c.AmountPool:      pool,
			&c.RewardAmount:    reward,
			&c.RewardPool:      rewardPool,
			&c.ReservedRewards: reservedRewards,
			&c.DisplayFee:      displayFee,
			&c.ReservedFees:    reserved,
		} {
			v, err := parseNumeric(src)
			if err != nil {
				return nil, fmt.Errorf("campaign %d: %w", id, err)
			}
			*dst = v
		}
		campaigns = append(campaigns, &c)
	}
	return campaigns, rows.Err()
}

func (r *MarketplaceRepo) loadParticipations(ctx context.Context) ([]*marketplace.Participation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT campaign_id, influencer, action_type, has_participated, has_claimed_reward,
		       reward::text, fee::text, feed, participated_at, claimed_at
		FROM participations ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []*marketplace.Participation
	for rows.Next() {
		var (
			p                marketplace.Participation
			campaignID       int64
			influencer, feed string
			actionType       int16
			reward, fee      string
		)
		if err := rows.Scan(&campaignID, &influencer, &actionType, &p.HasParticipated, &p.HasClaimedReward,
			&reward, &fee, &feed, &p.ParticipatedAt, &p.ClaimedAt); err != nil {
			return nil, err
		}
		p.CampaignID = uint64(campaignID)
		p.Influencer = common.HexToAddress(influencer)
		p.Feed = common.HexToAddress(feed)
		p.ActionType = marketplace.ActionType(actionType)
		if p.Reward, err = parseNumeric(reward); err != nil {
			return nil, err
		}
		if p.Fee, err = parseNumeric(fee); err != nil {
			return nil, err
		}
		parts = append(parts, &p)
	}
	return parts, rows.Err()
}

// loadMarket returns nil when the market row was never written.
func (r *MarketplaceRepo) loadMarket(ctx context.Context) (*marketplace.MarketState, error) {
	var (
		s                marketplace.MarketState
		owner, collector string
		feeBps           int64
		total, pending   string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT owner, fee_collector, platform_fee_bps, total_fees_collected::text, pending_fees::text, disabled
		FROM market_state WHERE id = 1
	`).Scan(&owner, &collector, &feeBps, &total, &pending, &s.Disabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Owner = common.HexToAddress(owner)
	s.FeeCollector = common.HexToAddress(collector)
	s.PlatformFeeBps = uint64(feeBps)
	if s.TotalFeesCollected, err = parseNumeric(total); err != nil {
		return nil, err
	}
	if s.PendingFees, err = parseNumeric(pending); err != nil {
		return nil, err
	}
	return &s, nil
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric %q", s)
	}
	return v, nil
}

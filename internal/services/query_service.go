package services

import (
	"context"
	"math/big"

	"github.com/ads-marketplace/campaign-backend/internal/chain"
	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ads-marketplace/campaign-backend/internal/metadata"
	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// Amount is a token amount in base units plus its human-readable form.
type Amount struct {
	Raw     string `json:"raw"`
	Display string `json:"display"`
	Symbol  string `json:"symbol"`
}

type CampaignView struct {
	*marketplace.CampaignInfo
	Pool     Amount `json:"pool"`
	Reward   Amount `json:"reward"`
	Escrowed Amount `json:"escrowed"`
}

type GroupView struct {
	*marketplace.CampaignGroup
	Metadata *metadata.Metadata `json:"metadata,omitempty"`
}

type FeesView struct {
	marketplace.FeeState
	Total   Amount `json:"total"`
	Pending Amount `json:"pending"`
}

type AuditLister interface {
	GetByEntity(ctx context.Context, entityType string, entityID int64, limit, offset int) ([]models.AuditLog, error)
}

// QueryService answers reads. Statuses are evaluated at the current clock.
type QueryService struct {
	mp       *marketplace.Marketplace
	ledger   marketplace.TokenLedger
	resolver *metadata.Resolver // optional
	audit    AuditLister        // optional
	symbol   string
	decimals int
}

func NewQueryService(
	mp *marketplace.Marketplace,
	ledger marketplace.TokenLedger,
	resolver *metadata.Resolver,
	audit AuditLister,
	symbol string,
	decimals int,
) *QueryService {
	return &QueryService{
		mp:       mp,
		ledger:   ledger,
		resolver: resolver,
		audit:    audit,
		symbol:   symbol,
		decimals: decimals,
	}
}

func (s *QueryService) amount(v *big.Int) Amount {
	if v == nil {
		v = new(big.Int)
	}
	return Amount{Raw: v.String(), Display: chain.FormatUnits(v, s.decimals), Symbol: s.symbol}
}

func (s *QueryService) Campaign(id uint64) (*marketplace.Campaign, error) {
	return s.mp.Campaigns(id)
}

func (s *QueryService) CampaignInfo(id uint64) (*CampaignView, error) {
	info, err := s.mp.GetCampaignInfo(id)
	if err != nil {
		return nil, err
	}
	escrowed := new(big.Int).Add(info.RewardPool, info.DisplayFee)
	return &CampaignView{
		CampaignInfo: info,
		Pool:         s.amount(info.AmountPool),
		Reward:       s.amount(info.RewardAmount),
		Escrowed:     s.amount(escrowed),
	}, nil
}

// CampaignByPost returns the latest campaign created for postID.
func (s *QueryService) CampaignByPost(postID string) (*CampaignView, error) {
	c, err := s.mp.CampaignByPost(postID)
	if err != nil {
		return nil, err
	}
	return s.CampaignInfo(c.ID)
}

func (s *QueryService) CampaignMetadata(ctx context.Context, id uint64) (*metadata.Metadata, error) {
	c, err := s.mp.Campaigns(id)
	if err != nil {
		return nil, err
	}
	if s.resolver == nil {
		return &metadata.Metadata{Placeholder: true}, nil
	}
	return s.resolver.Campaign(ctx, c), nil
}

func (s *QueryService) RewardTimeStatus(id uint64) (*marketplace.RewardTimeStatus, error) {
	return s.mp.GetRewardTimeStatus(id)
}

func (s *QueryService) InfluencerActions(id uint64, influencer common.Address) (*marketplace.Participation, error) {
	return s.mp.CampaignInfluencerActions(id, influencer)
}

func (s *QueryService) Participants(id uint64) ([]common.Address, error) {
	if _, err := s.mp.Campaigns(id); err != nil {
		return nil, err
	}
	return s.mp.Participants(id), nil
}

func (s *QueryService) Group(ctx context.Context, id uint64) (*GroupView, error) {
	g, err := s.mp.CampaignGroups(id)
	if err != nil {
		return nil, err
	}
	v := &GroupView{CampaignGroup: g}
	if s.resolver != nil && g.GroupURI != "" {
		v.Metadata = s.resolver.Group(ctx, g)
	}
	return v, nil
}

func (s *QueryService) GroupPosts(id uint64) ([]uint64, error) {
	return s.mp.GetGroupPosts(id)
}

func (s *QueryService) SellerCampaigns(seller common.Address) []uint64 {
	return s.mp.GetSellerCampaigns(seller)
}

func (s *QueryService) SellerGroups(seller common.Address) []uint64 {
	return s.mp.GetSellerGroups(seller)
}

func (s *QueryService) Fees() *FeesView {
	f := s.mp.Fees()
	return &FeesView{
		FeeState: f,
		Total:    s.amount(f.TotalFeesCollected),
		Pending:  s.amount(f.PendingFees),
	}
}

func (s *QueryService) Balance(ctx context.Context, account common.Address) (Amount, error) {
	v, err := s.ledger.BalanceOf(ctx, account)
	if err != nil {
		return Amount{}, err
	}
	return s.amount(v), nil
}

// CampaignEvents lists the audit trail of a campaign, newest first.
func (s *QueryService) CampaignEvents(ctx context.Context, id uint64, limit, offset int) ([]models.AuditLog, error) {
	if _, err := s.mp.Campaigns(id); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.GetByEntity(ctx, "campaign", int64(id), limit, offset)
}

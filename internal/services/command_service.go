package services

import (
	"context"
	"math/big"

	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ads-marketplace/campaign-backend/internal/metadata"
	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Operation names used on receipts and metrics.
const (
	OpCreateCampaignGroup   = "createCampaignGroup"
	OpCreateAdCampaign      = "createAdCampaign"
	OpUpdateCampaignSlots   = "updateCampaignSlots"
	OpUpdateCampaignPrice   = "updateCampaignPrice"
	OpUpdateCampaignContent = "updateCampaignContent"
	OpExtendCampaignTime    = "extendCampaignTime"
	OpCancelCampaign        = "cancelCampaign"
	OpCompleteCampaign      = "completeCampaign"
	OpClaimUnfulfilledSlots = "claimUnfulfilledSlots"
	OpExecute               = "execute"
	OpConfigure             = "configure"
	OpClaimReward           = "claimReward"
	OpSetDisabled           = "setDisabled"
	OpUpdatePlatformFee     = "updatePlatformFee"
	OpUpdateFeeCollector    = "updateFeeCollector"
	OpCollectFees           = "collectFees"
	OpClaimCollectedFees    = "claimCollectedFees"
	OpTransferOwnership     = "transferOwnership"
	OpRenounceOwnership     = "renounceOwnership"
)

// CommandService turns marketplace writes into queued transactions.
type CommandService struct {
	mp       *marketplace.Marketplace
	tx       *TxService
	resolver *metadata.Resolver // optional
}

func NewCommandService(mp *marketplace.Marketplace, tx *TxService, resolver *metadata.Resolver) *CommandService {
	return &CommandService{mp: mp, tx: tx, resolver: resolver}
}

func (s *CommandService) CreateCampaignGroup(ctx context.Context, caller common.Address, groupURI string) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpCreateCampaignGroup, caller, func(ctx context.Context) (any, error) {
		id, err := s.mp.CreateCampaignGroup(ctx, caller, groupURI)
		if err != nil {
			return nil, err
		}
		return map[string]any{"group_id": id}, nil
	})
}

func (s *CommandService) CreateAdCampaign(ctx context.Context, caller common.Address, p marketplace.CreateCampaignParams) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpCreateAdCampaign, caller, func(ctx context.Context) (any, error) {
		id, err := s.mp.CreateAdCampaign(ctx, caller, p)
		if err != nil {
			return nil, err
		}
		return map[string]any{"campaign_id": id}, nil
	})
}

func (s *CommandService) UpdateCampaignSlots(ctx context.Context, caller common.Address, id, additional uint64) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpUpdateCampaignSlots, caller, func(ctx context.Context) (any, error) {
		return nil, s.mp.UpdateCampaignSlots(ctx, caller, id, additional)
	})
}

func (s *CommandService) UpdateCampaignPrice(ctx context.Context, caller common.Address, id uint64, reward *big.Int) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpUpdateCampaignPrice, caller, func(ctx context.Context) (any, error) {
		return nil, s.mp.UpdateCampaignPrice(ctx, caller, id, reward)
	})
}

func (s *CommandService) UpdateCampaignContent(ctx context.Context, caller common.Address, id uint64, uri string, hash common.Hash) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpUpdateCampaignContent, caller, func(ctx context.Context) (any, error) {
		old, err := s.mp.Campaigns(id)
		if err != nil {
			return nil, err
		}
		if err := s.mp.UpdateCampaignContent(ctx, caller, id, uri, hash); err != nil {
			return nil, err
		}
		if s.resolver != nil {
			s.resolver.Invalidate(ctx, metadata.EntityCampaign, id, old.ContentURI)
		}
		return nil, nil
	})
}

func (s *CommandService) ExtendCampaignTime(ctx context.Context, caller common.Address, id uint64, newEnd, newClaimable int64) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpExtendCampaignTime, caller, func(ctx context.Context) (any, error) {
		return nil, s.mp.ExtendCampaignTime(ctx, caller, id, newEnd, newClaimable)
	})
}

func (s *CommandService) CancelCampaign(ctx context.Context, caller common.Address, id uint64) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpCancelCampaign, caller, func(ctx context.Context) (any, error) {
		return nil, s.mp.CancelCampaign(ctx, caller, id)
	})
}

func (s *CommandService) CompleteCampaign(ctx context.Context, caller common.Address, id uint64) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpCompleteCampaign, caller, func(ctx context.Context) (any, error) {
		return nil, s.mp.CompleteCampaign(ctx, caller, id)
	})
}

func (s *CommandService) ClaimUnfulfilledSlots(ctx context.Context, caller common.Address, id uint64) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpClaimUnfulfilledSlots, caller, func(ctx context.Context) (any, error) {
		refund, err := s.mp.ClaimUnfulfilledSlots(ctx, caller, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"refund":             refund.Slots.String(),
			"refund_remainder":   refund.Remainder.String(),
			"display_fee_refund": refund.DisplayFee.String(),
			"total":              refund.Total().String(),
		}, nil
	})
}

func (s *CommandService) Execute(ctx context.Context, caller common.Address, req marketplace.ActionRequest) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpExecute, caller, func(ctx context.Context) (any, error) {
		out, err := s.mp.Execute(ctx, caller, req)
		if err != nil {
			return nil, err
		}
		return actionResult(out)
	})
}

func (s *CommandService) Configure(ctx context.Context, caller common.Address, req marketplace.ActionRequest) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpConfigure, caller, func(ctx context.Context) (any, error) {
		out, err := s.mp.Configure(ctx, caller, req)
		if err != nil {
			return nil, err
		}
		return actionResult(out)
	})
}

func (s *CommandService) ClaimReward(ctx context.Context, caller common.Address, id uint64, t marketplace.ActionType, feed common.Address) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpClaimReward, caller, func(ctx context.Context) (any, error) {
		paid, err := s.mp.ClaimReward(ctx, caller, id, t, feed)
		if err != nil {
			return nil, err
		}
		return map[string]any{"reward": paid.String()}, nil
	})
}

func (s *CommandService) SetDisabled(ctx context.Context, caller common.Address, disabled bool) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpSetDisabled, caller, func(ctx context.Context) (any, error) {
		return nil, s.mp.SetDisabled(ctx, caller, disabled)
	})
}

func (s *CommandService) UpdatePlatformFee(ctx context.Context, caller common.Address, feeBps uint64) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpUpdatePlatformFee, caller, func(ctx context.Context) (any, error) {
		return nil, s.mp.UpdatePlatformFee(ctx, caller, feeBps)
	})
}

func (s *CommandService) UpdateFeeCollector(ctx context.Context, caller, collector common.Address) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpUpdateFeeCollector, caller, func(ctx context.Context) (any, error) {
		return nil, s.mp.UpdateFeeCollector(ctx, caller, collector)
	})
}

func (s *CommandService) CollectFees(ctx context.Context, caller common.Address) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpCollectFees, caller, func(ctx context.Context) (any, error) {
		amount, err := s.mp.CollectFees(ctx, caller)
		if err != nil {
			return nil, err
		}
		return map[string]any{"amount": amount.String()}, nil
	})
}

func (s *CommandService) ClaimCollectedFees(ctx context.Context, caller common.Address) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpClaimCollectedFees, caller, func(ctx context.Context) (any, error) {
		amount, err := s.mp.ClaimCollectedFees(ctx, caller)
		if err != nil {
			return nil, err
		}
		return map[string]any{"amount": amount.String()}, nil
	})
}

func (s *CommandService) TransferOwnership(ctx context.Context, caller, newOwner common.Address) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpTransferOwnership, caller, func(ctx context.Context) (any, error) {
		return nil, s.mp.TransferOwnership(ctx, caller, newOwner)
	})
}

func (s *CommandService) RenounceOwnership(ctx context.Context, caller common.Address) (*models.TxReceipt, error) {
	return s.tx.Submit(ctx, OpRenounceOwnership, caller, func(ctx context.Context) (any, error) {
		return nil, s.mp.RenounceOwnership(ctx, caller)
	})
}

func actionResult(out []byte) (any, error) {
	id, err := marketplace.DecodeCampaignID(out)
	if err != nil {
		return nil, err
	}
	return map[string]any{"campaign_id": id, "data": hexutil.Encode(out)}, nil
}

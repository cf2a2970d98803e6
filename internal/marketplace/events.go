package marketplace

// Event names mirror the contract events consumed by off-chain indexers.
const (
	EventCampaignCreated        = "CampaignCreated"
	EventCampaignGroupCreated   = "CampaignGroupCreated"
	EventCampaignContentUpdated = "CampaignContentUpdated"
	EventCampaignPricesUpdated  = "CampaignPricesUpdated"
	EventCampaignSlotsUpdated   = "CampaignSlotsUpdated"
	EventCampaignTimeExtended   = "CampaignTimeExtended"
	EventCampaignUpdated        = "CampaignUpdated"
	EventDepositsRefunded       = "DepositsRefunded"
	EventDisplayFeeRefunded     = "DisplayFeeRefunded"
	EventFeeCollectorUpdated    = "FeeCollectorUpdated"
	EventFeesCollected          = "FeesCollected"
	EventInfluencerParticipated = "InfluencerParticipated"
	EventOwnershipTransferred   = "OwnershipTransferred"
	EventPlatformFeeUpdated     = "PlatformFeeUpdated"
	EventRewardPaid             = "RewardPaid"
)

// Event is emitted once per committed state change. Args hold JSON-friendly
// values: addresses and amounts are rendered as strings.
type Event struct {
	Name       string         `json:"name"`
	CampaignID uint64         `json:"campaign_id,omitempty"`
	GroupID    uint64         `json:"group_id,omitempty"`
	Args       map[string]any `json:"args"`
	Timestamp  int64          `json:"timestamp"`
}

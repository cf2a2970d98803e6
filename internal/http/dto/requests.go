package dto

// Amounts are decimal token strings ("12.5"); addresses are 0x-prefixed hex.

type NonceRequest struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

type WalletLoginRequest struct {
	Address   string `json:"address" validate:"required,eth_addr"`
	Nonce     string `json:"nonce" validate:"required,max=128"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

type CreateGroupRequest struct {
	GroupURI string `json:"group_uri" validate:"required,max=2048"`
}

type TargetAudience struct {
	Country   []string `json:"country,omitempty" validate:"dive,len=2"`
	Interests []string `json:"interests,omitempty" validate:"dive,max=64"`
	Language  []string `json:"language,omitempty" validate:"dive,min=2,max=8"`
}

type CreateCampaignRequest struct {
	GroupID              uint64         `json:"group_id"`
	PostID               string         `json:"post_id" validate:"required,max=256"`
	ActionType           string         `json:"action_type" validate:"required,oneof=MIRROR COMMENT QUOTE"`
	AvailableSlots       uint64         `json:"available_slots" validate:"required,gt=0,lte=9223372036854775807"`
	StartTime            int64          `json:"start_time" validate:"required"`
	EndTime              int64          `json:"end_time" validate:"required,gtfield=StartTime"`
	RewardClaimableTime  int64          `json:"reward_claimable_time" validate:"required,gtfield=EndTime"`
	ContentURI           string         `json:"content_uri" validate:"required,max=2048"`
	ContentHash          string         `json:"content_hash,omitempty" validate:"omitempty,hexadecimal,len=66"`
	MinFollowersRequired uint64         `json:"min_followers_required"`
	TargetAudience       TargetAudience `json:"target_audience"`
	Pool                 string         `json:"pool" validate:"required,numeric"`
}

type UpdateSlotsRequest struct {
	AdditionalSlots uint64 `json:"additional_slots" validate:"required,gt=0,lte=9223372036854775807"`
}

type UpdatePriceRequest struct {
	RewardAmount string `json:"reward_amount" validate:"required,numeric"`
}

type UpdateContentRequest struct {
	ContentURI  string `json:"content_uri" validate:"required,max=2048"`
	ContentHash string `json:"content_hash,omitempty" validate:"omitempty,hexadecimal,len=66"`
}

type ExtendTimeRequest struct {
	EndTime             int64 `json:"end_time" validate:"required"`
	RewardClaimableTime int64 `json:"reward_claimable_time" validate:"required,gtfield=EndTime"`
}

type ClaimRewardRequest struct {
	ActionType string `json:"action_type" validate:"required,oneof=MIRROR COMMENT QUOTE"`
	Feed       string `json:"feed,omitempty" validate:"omitempty,eth_addr"`
}

type ActionParam struct {
	Key   string `json:"key" validate:"required,hexadecimal,len=66"`
	Value string `json:"value" validate:"omitempty,hexadecimal"`
}

// ActionRequest is forwarded by an action router. When ActionType is set
// the server adds the encoded action type param itself.
type ActionRequest struct {
	OriginalMsgSender string        `json:"original_msg_sender" validate:"required,eth_addr"`
	Feed              string        `json:"feed,omitempty" validate:"omitempty,eth_addr"`
	PostID            string        `json:"post_id" validate:"required,max=256"`
	ActionType        string        `json:"action_type,omitempty" validate:"omitempty,oneof=MIRROR COMMENT QUOTE"`
	Params            []ActionParam `json:"params,omitempty" validate:"dive"`
}

type SetDisabledRequest struct {
	Disabled *bool `json:"disabled" validate:"required"`
}

type PlatformFeeRequest struct {
	FeeBps *uint64 `json:"fee_bps" validate:"required,lte=10000"`
}

type AddressRequest struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

package events

import "context"

// Streams
const (
	StreamMarketplace   = "events:marketplace"
	StreamNotifications = "events:notifications"
)

// Event types
const (
	EventMarketplace     = "marketplace_event"
	EventRewardClaimable = "reward_claimable"
	EventDepositCredited = "deposit_credited"
	EventTxConfirmed     = "tx_confirmed"
	EventTxFailed        = "tx_failed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// Recipient returns the wallet a notification is addressed to, if any.
func Recipient(e Event) string {
	for _, key := range []string{"recipient", "caller", "from"} {
		if s, ok := e.Payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

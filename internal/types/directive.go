package types

// DeliveryMode tells the transport layer what to do with a directive.
type DeliveryMode string

const (
	DeliveryReply        DeliveryMode = "reply"
	DeliveryBroadcast    DeliveryMode = "broadcast"
	DeliveryDeleteOrigin DeliveryMode = "delete-origin"
	DeliveryNone         DeliveryMode = "none"
)

// Reason codes carried on directives. The transport renders TemplateKey
// through its own templating; Reason is the machine-readable outcome.
const (
	ReasonInvalidMessage    = "invalid-message"
	ReasonInvalidPrice      = "invalid-price"
	ReasonPriceOutsideBand  = "price-outside-band"
	ReasonTimingInvalid     = "timing-invalid"
	ReasonCapacityExhausted = "capacity-exhausted"
	ReasonOrderNotFound     = "order-not-found"
	ReasonOrderExpired      = "order-expired"
	ReasonOrderFilled       = "order-filled"
	ReasonOrderCancelled    = "order-cancelled"
	ReasonVolumeOverflow    = "volume-overflow"
	ReasonSameTrader        = "same-trader"
	ReasonNotOwner          = "not-owner"
	ReasonOrderDeleted      = "order-deleted"
	ReasonOrdersDeleted     = "orders-deleted"
	ReasonPositionCreated   = "position-created"
	ReasonOrderPlaced       = "order-placed"
	ReasonInternalError     = "internal-error"
)

// Template keys the transport layer knows how to render.
const (
	TemplateDeleteOrder     = "delete-order"
	TemplateDeleteOrders    = "delete-orders"
	TemplateOrderCancelled  = "order-cancelled"
	TemplateOrderExpired    = "order-expired"
	TemplateOrderFilled     = "order-filled"
	TemplateVolumeOverflow  = "volume-overflow"
	TemplateCapacityIssue   = "capacity-issue"
	TemplateSimplePosition  = "simple-position-created"
	TemplateAdvancePosition = "advance-position-created"
)

// Directive is the single outbound unit returned to the transport layer.
type Directive struct {
	Success      bool              `json:"success"`
	Reason       string            `json:"reason"`
	TemplateKey  string            `json:"template_key,omitempty"`
	TemplateArgs map[string]string `json:"template_args,omitempty"`
	Delivery     DeliveryMode      `json:"delivery"`
}

// NewDirective builds a directive with an initialized args map.
func NewDirective(success bool, reason, templateKey string, delivery DeliveryMode) Directive {
	return Directive{
		Success:      success,
		Reason:       reason,
		TemplateKey:  templateKey,
		TemplateArgs: make(map[string]string),
		Delivery:     delivery,
	}
}

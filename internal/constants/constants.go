package constants

// 合作伙伴佣金类型常量
const (
	CommissionTypePercentage = "percentage"
	CommissionTypeFixed      = "fixed"
)

// 转化事件类型常量
const (
	EventTypeSignup          = "signup"
	EventTypePurchase        = "purchase"
	EventTypeSubscription    = "subscription"
	EventTypeTrialStart      = "trial_start"
	EventTypeTrialConversion = "trial_conversion"
	EventTypeRenewal         = "renewal"
)

// 佣金状态常量
const (
	CommissionStatusPending   = "pending"
	CommissionStatusConfirmed = "confirmed"
	CommissionStatusDisputed  = "disputed"
	CommissionStatusPaid      = "paid"
)

// 结算单状态常量
const (
	PayoutStatusPending  = "pending"
	PayoutStatusPaid     = "paid"
	PayoutStatusDisputed = "disputed"
)

// 归因置信度常量
const (
	AttributionConfidenceUserKey       = "user_key"
	AttributionConfidencePartnerRecent = "partner_recent"
	AttributionConfidenceNone          = "none"
)

// 队列与任务常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"

	TaskWebhookProcess     = "webhook:process"
	TaskSettlementMonthly  = "settlement:monthly"
	TaskAttributionCleanup = "attribution:cleanup"
)

// 默认归因窗口（天）
const DefaultAttributionWindowDays = 30

// 默认推荐参数名
const DefaultReferralParam = "via"

// CommissionableEventTypes 产生佣金的事件类型
var CommissionableEventTypes = []string{
	EventTypeSignup,
	EventTypePurchase,
	EventTypeSubscription,
	EventTypeTrialConversion,
	EventTypeRenewal,
}

// DefaultSettlementEventTypes 默认参与结算的事件类型
var DefaultSettlementEventTypes = []string{
	EventTypePurchase,
	EventTypeSubscription,
	EventTypeRenewal,
}

// IsValidEventType 判断事件类型是否合法
func IsValidEventType(eventType string) bool {
	switch eventType {
	case EventTypeSignup, EventTypePurchase, EventTypeSubscription,
		EventTypeTrialStart, EventTypeTrialConversion, EventTypeRenewal:
		return true
	}
	return false
}

// IsCommissionableEventType 判断事件类型是否产生佣金
func IsCommissionableEventType(eventType string) bool {
	for _, item := range CommissionableEventTypes {
		if item == eventType {
			return true
		}
	}
	return false
}

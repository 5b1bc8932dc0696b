package types

type MembershipStatus string

const (
	MembershipStatusInactive MembershipStatus = "inactive"
	MembershipStatusActive   MembershipStatus = "active"
	// MembershipStatusSettled marks a membership closed out by an upgrade.
	MembershipStatusSettled MembershipStatus = "settled"
)

// MembershipSourceType tells which table a membership's SourceID points at.
type MembershipSourceType string

const (
	MembershipSourceRedemptionCode    MembershipSourceType = "redemption_code"
	MembershipSourceDirectPurchase    MembershipSourceType = "direct_purchase"
	MembershipSourceAdminGift         MembershipSourceType = "admin_gift"
	MembershipSourceCampaign          MembershipSourceType = "campaign"
	MembershipSourceTrial             MembershipSourceType = "trial"
	MembershipSourceRegistrationAward MembershipSourceType = "registration_award"
	MembershipSourceInvitationAward   MembershipSourceType = "invitation_award"
	MembershipSourceUpgrade           MembershipSourceType = "upgrade"
	MembershipSourceOther             MembershipSourceType = "other"
)

type MembershipLevelStatus string

const (
	MembershipLevelStatusActive   MembershipLevelStatus = "active"
	MembershipLevelStatusInactive MembershipLevelStatus = "inactive"
)

type MembershipChangeReason string

const (
	MembershipChangeReasonPurchase       MembershipChangeReason = "purchase"
	MembershipChangeReasonGift           MembershipChangeReason = "gift"
	MembershipChangeReasonUpgrade        MembershipChangeReason = "upgrade"
	MembershipChangeReasonUpgradeSettled MembershipChangeReason = "upgrade_settled"
	MembershipChangeReasonExpired        MembershipChangeReason = "expired"
)

type ProductType string

const (
	ProductTypeMembership ProductType = "membership"
	ProductTypePoints     ProductType = "points"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

type OrderType string

const (
	OrderTypePurchase OrderType = "purchase"
	OrderTypeUpgrade  OrderType = "upgrade"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

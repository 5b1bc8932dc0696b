package types

// BenefitConsumptionMode decides how concurrent grants of one benefit combine.
type BenefitConsumptionMode string

const (
	BenefitConsumptionModeSum BenefitConsumptionMode = "sum"
	BenefitConsumptionModeMax BenefitConsumptionMode = "max"
)

type BenefitUnitType string

const (
	BenefitUnitTypeBytes BenefitUnitType = "bytes"
	BenefitUnitTypeCount BenefitUnitType = "count"
)

type UserBenefitStatus string

const (
	UserBenefitStatusActive   UserBenefitStatus = "active"
	UserBenefitStatusInactive UserBenefitStatus = "inactive"
)

type UserBenefitSourceType string

const (
	UserBenefitSourceMembershipGift UserBenefitSourceType = "membership_gift"
	UserBenefitSourceCampaign       UserBenefitSourceType = "campaign"
	UserBenefitSourceAdmin          UserBenefitSourceType = "admin"
)

// BenefitIDStorageQuota is the byte quota benefit; its usage comes from storage accounting.
const BenefitIDStorageQuota = "storage_quota"

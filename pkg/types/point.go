package types

type PointRecordStatus string

const (
	PointRecordStatusValid     PointRecordStatus = "valid"
	PointRecordStatusCancelled PointRecordStatus = "cancelled"
	// PointRecordStatusUpgradeSettled marks a lot whose balance moved to a transfer record.
	PointRecordStatusUpgradeSettled PointRecordStatus = "membership_upgrade_settlement"
)

type PointSourceType string

const (
	PointSourcePurchaseGift        PointSourceType = "purchase_gift"
	PointSourceDirectPurchase      PointSourceType = "direct_purchase"
	PointSourceRedemption          PointSourceType = "redemption"
	PointSourceCampaign            PointSourceType = "campaign"
	PointSourceAdminGift           PointSourceType = "admin_gift"
	PointSourceUpgradeTransfer     PointSourceType = "upgrade_transfer"
	PointSourceUpgradeCompensation PointSourceType = "upgrade_compensation"
)

// PurchasePointSources are the sources counted as purchase-sourced balance.
var PurchasePointSources = []PointSourceType{
	PointSourceDirectPurchase,
	PointSourcePurchaseGift,
}

package models

// All lists every table owned by this service, in migration order.
func All() []any {
	return []any{
		&MembershipLevel{},
		&Product{},
		&Order{},
		&UserMembership{},
		&PointRecord{},
		&PointConsumption{},
		&UpgradeRecord{},
		&Benefit{},
		&LevelBenefit{},
		&UserBenefit{},
		&MembershipLog{},
		&UserStorageUsage{},
	}
}

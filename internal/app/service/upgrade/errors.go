package upgrade

import "errors"

// Rejections. Their messages are returned to callers verbatim.
var (
	ErrInvalidRequest       = errors.New("user_id, target_level_id and order_id are required")
	ErrNoActiveMembership   = errors.New("no active membership")
	ErrTargetLevelNotFound  = errors.New("target tier not found")
	ErrTargetLevelNotHigher = errors.New("target tier must be higher than current tier")
	ErrTargetLevelNoProduct = errors.New("target tier has no available product")
	ErrOrderAlreadyUsed     = errors.New("order has already been used for an upgrade")
	ErrConcurrentUpgrade    = errors.New("another upgrade for this user is in progress")
)

// ErrUpgradeChainTooDeep guards paid amount resolution against corrupted audit data.
var ErrUpgradeChainTooDeep = errors.New("upgrade chain exceeds maximum depth")

var rejections = []error{
	ErrInvalidRequest,
	ErrNoActiveMembership,
	ErrTargetLevelNotFound,
	ErrTargetLevelNotHigher,
	ErrTargetLevelNoProduct,
	ErrOrderAlreadyUsed,
	ErrConcurrentUpgrade,
}

// IsRejection reports whether err is a precondition failure rather than a failed transaction.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

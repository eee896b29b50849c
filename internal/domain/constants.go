package domain

import "time"

const (
	RoleEmployer  = "employer"
	RoleJobSeeker = "job_seeker"
	RoleAdmin     = "admin"
)

const (
	OrderKindVerification = "verification"
	OrderKindBoost        = "boost"
)

// Payment order statuses. IPN_RECEIVED is still pending: the IPN alone never
// decides the outcome.
const (
	OrderStatusPending     = "PENDING"
	OrderStatusIPNReceived = "IPN_RECEIVED"
	OrderStatusCompleted   = "COMPLETED"
	OrderStatusFailed      = "FAILED"
)

// OpenOrderStatuses are the statuses a finalize transition may start from.
var OpenOrderStatuses = []string{OrderStatusPending, OrderStatusIPNReceived}

const (
	PostTypeJob          = "job"
	PostTypeAvailability = "availability"
)

const (
	BoostStandard = "standard"
	BoostPremium  = "premium"
	BoostUltra    = "ultra"
)

var boostDurationDays = map[string]int{
	BoostStandard: 7,
	BoostPremium:  14,
	BoostUltra:    30,
}

// BoostDurationDays returns the boost length; unknown types get the standard 7 days.
func BoostDurationDays(boostType string) int {
	if d, ok := boostDurationDays[boostType]; ok {
		return d
	}
	return boostDurationDays[BoostStandard]
}

func BoostDuration(boostType string) time.Duration {
	return time.Duration(BoostDurationDays(boostType)) * 24 * time.Hour
}

func ValidPostType(t string) bool {
	return t == PostTypeJob || t == PostTypeAvailability
}

func ValidOrderKind(k string) bool {
	return k == OrderKindVerification || k == OrderKindBoost
}

// Credit history reasons.
const (
	CreditReasonFreeAllotment = "FREE_ALLOTMENT"
	CreditReasonPurchase      = "PURCHASE"
	CreditReasonBoost         = "BOOST"
)

// Redirect failure reasons for the browser callback.
const (
	ReasonMissingParams      = "missing_params"
	ReasonOrderNotFound      = "order_not_found"
	ReasonVerificationFailed = "verification_failed"
	ReasonServerError        = "server_error"
)

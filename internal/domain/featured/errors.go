package featured

import "errors"

var (
	// ErrAdNotFound is returned when the ad doesn't exist
	ErrAdNotFound = errors.New("featured ad not found")

	// ErrAdNotEligible is returned for impressions/clicks on an ad that
	// fails the eligibility predicate
	ErrAdNotEligible = errors.New("featured ad not eligible")

	// ErrInvalidStateTransition is returned for lifecycle operations from
	// an invalid state (e.g. rejecting an already-rejected ad)
	ErrInvalidStateTransition = errors.New("invalid ad state transition")

	// ErrReasonRequired is returned when rejecting without a reason
	ErrReasonRequired = errors.New("rejection reason is required")

	// ErrInvalidAd is returned for malformed submission parameters
	ErrInvalidAd = errors.New("invalid ad parameters")
)

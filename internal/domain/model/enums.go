package model

// Tier is a subscription plan label attached to an identity.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// DefaultTier is used when an identity has no entitlement record.
const DefaultTier = TierFree

// Role is the database role embedded in access tokens.
type Role string

const (
	RoleAuthenticated Role = "authenticated"
)

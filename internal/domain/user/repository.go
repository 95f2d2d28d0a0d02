package user

import "context"

// Repository defines the downstream admin-store operations the billing
// service needs. The store is pure external state owned by the admin API.
type Repository interface {
	// Upsert finds or creates a user by email and returns its record
	Upsert(ctx context.Context, email string) (*User, error)

	// Patch replaces the tracked entitlement fields of a user record
	Patch(ctx context.Context, userID int64, patch *EntitlementPatch) error

	// List returns all user records, used for aggregate stats
	List(ctx context.Context) ([]*User, error)

	// CreateToken mints a new API token for the user
	CreateToken(ctx context.Context, userID int64) (string, error)
}

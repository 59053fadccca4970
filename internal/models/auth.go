package models

type Role string

const (
	RoleAdmin          Role = "Admin"
	RoleEventOrganizer Role = "EventOrganizer"
	RoleCustomer       Role = "Customer"
)

// AuthContext is the request-scoped identity resolved by the HTTP boundary.
type AuthContext struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

func (a AuthContext) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// CanAccessBooking allows the booking owner and administrators.
func (a AuthContext) CanAccessBooking(customerID int64) bool {
	return a.Role == RoleAdmin || (a.UserID > 0 && a.UserID == customerID)
}

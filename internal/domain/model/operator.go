package model

// RoleManager is the role assigned to operators that toggle themselves available.
const RoleManager = "manager"

// Operator is a human agent relaying and confirming payment codes.
type Operator struct {
	ID        int64  `db:"id"`
	Role      string `db:"role"`
	Available bool   `db:"available"`
}

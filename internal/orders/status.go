package orders

import "github.com/ariefcatur/go-shop-orders/internal/principal"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusCancelled: true, StatusShipped: true},
	StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true, StatusShipped: true},
	StatusProcessing: {StatusShipped: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {StatusRefunded: true},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// IsTerminal reports whether no further transition exists.
func (s Status) IsTerminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

func (s Status) String() string { return string(s) }

// actor relation to an order, resolved before the table lookup
type relation int

const (
	relNone relation = iota
	relOwner
	relMerchant
	relAdmin
	relSystem
)

// allowedActors lists who may drive an order into a target status.
var allowedActors = map[Status][]relation{
	StatusConfirmed:  {relOwner, relAdmin},
	StatusProcessing: {relMerchant, relAdmin},
	StatusShipped:    {relMerchant, relAdmin},
	StatusDelivered:  {relOwner, relAdmin, relSystem},
	StatusCancelled:  {relOwner, relAdmin},
	StatusRefunded:   {relAdmin},
}

func actorAllowed(to Status, rel relation) bool {
	for _, r := range allowedActors[to] {
		if r == rel {
			return true
		}
	}
	return false
}

func relationOf(p principal.Principal, customerID string, merchantOwnsItem bool) relation {
	switch {
	case p.Role == principal.RoleAdmin:
		return relAdmin
	case p.Role == principal.RoleSystem:
		return relSystem
	case p.Role == principal.RoleCustomer && p.ID == customerID:
		return relOwner
	case p.Role == principal.RoleMerchant && merchantOwnsItem:
		return relMerchant
	}
	return relNone
}

// Display is presentation metadata derived from the status, never stored.
type Display struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

func DisplayFor(s Status) Display {
	switch s {
	case StatusPending:
		return Display{"Pending", "warning"}
	case StatusConfirmed:
		return Display{"Confirmed", "info"}
	case StatusProcessing:
		return Display{"Processing", "primary"}
	case StatusShipped:
		return Display{"Shipped", "secondary"}
	case StatusDelivered:
		return Display{"Delivered", "success"}
	case StatusCancelled:
		return Display{"Cancelled", "danger"}
	case StatusRefunded:
		return Display{"Refunded", "dark"}
	}
	return Display{string(s), "light"}
}

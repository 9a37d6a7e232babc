package domain

// Category groups support services.
type Category struct {
	ID          string
	Name        string
	Description string
}

// SupportService is a concrete service tickets are filed against.
type SupportService struct {
	ID         string
	CategoryID string
	Name       string
}

// Account is a directory entry for a registered user or staff member.
type Account struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	Role       Role
	FiscalCode string
	Phone      string
}

// FullName joins the account's name parts for display.
func (a Account) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	default:
		return a.FirstName + " " + a.LastName
	}
}

// TicketPage is one page of a ticket listing.
type TicketPage struct {
	Items      []Ticket
	Page       int
	Size       int
	TotalItems int64
	TotalPages int
}

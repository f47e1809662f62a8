package models

// All lists every table, in migration order.
func All() []any {
	return []any{
		&User{},
		&Scout{},
		&Event{},
		&Badge{},
		&Offering{},
		&OfferingSeat{},
		&Registration{},
		&Preference{},
		&Assignment{},
		&AssignmentHistory{},
		&Purchasable{},
		&Purchase{},
	}
}

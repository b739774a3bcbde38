package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific month.
type MonthOverview struct {
	Month      Month
	Total      Money
	Paid       Money
	Projected  Money
	ByCategory []CategoryAmount
	ByKind     map[ObligationKind]Money
}

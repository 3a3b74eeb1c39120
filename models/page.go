package models

// SearchPage is one decoded response from the search endpoint.
type SearchPage struct {
	Listings []Listing `json:"listings"`
	Pulse    *Pulse    `json:"pulse,omitempty"`
}

// Pulse is the analytics summary the API attaches to (usually) the first page.
type Pulse struct {
	Object struct {
		NumItems *int `json:"numItems"`
	} `json:"object"`
}

// DeclaredTotal reports the item count under pulse.object.numItems, if present.
func (p *SearchPage) DeclaredTotal() (int, bool) {
	if p == nil || p.Pulse == nil || p.Pulse.Object.NumItems == nil {
		return 0, false
	}
	return *p.Pulse.Object.NumItems, true
}

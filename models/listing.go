package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Listing is one vehicle record returned by the search API.
// The raw JSON is kept untouched and written back verbatim; only a handful
// of fields are decoded for aggregation and reporting.
type Listing struct {
	raw  json.RawMessage
	view listingView
}

type displayProperty struct {
	DisplayTextShort string `json:"displayTextShort"`
}

type listingView struct {
	Make    string `json:"make"`
	Model   string `json:"model"`
	Variant string `json:"variant"`
	Title   string `json:"title"`
	URI     string `json:"uri"`
	Price   struct {
		Price float64 `json:"price"`
	} `json:"price"`
	Location *struct {
		City string `json:"city"`
	} `json:"location"`
	Properties struct {
		FirstRegistrationDate displayProperty `json:"firstregistrationdate"`
		Mileage               displayProperty `json:"mileage"`
	} `json:"properties"`
}

// NewListing wraps a raw JSON object. It fails only when data is not valid JSON
// or not an object.
func NewListing(data []byte) (Listing, error) {
	var l Listing
	if err := l.UnmarshalJSON(data); err != nil {
		return Listing{}, err
	}
	return l, nil
}

// UnmarshalJSON keeps a copy of data and decodes the projected fields.
// Fields with an unexpected type are left at their zero value.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("listing: %w", err)
	}
	if probe == nil {
		return errors.New("listing: not a JSON object")
	}

	var view listingView
	if err := json.Unmarshal(data, &view); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return fmt.Errorf("listing: %w", err)
		}
	}

	l.raw = append(json.RawMessage(nil), data...)
	l.view = view
	return nil
}

// MarshalJSON returns the record exactly as the API sent it.
func (l Listing) MarshalJSON() ([]byte, error) {
	if len(l.raw) == 0 {
		return []byte("{}"), nil
	}
	return l.raw, nil
}

// Raw returns the original JSON bytes.
func (l Listing) Raw() json.RawMessage { return l.raw }

func (l Listing) Make() string    { return l.view.Make }
func (l Listing) Model() string   { return l.view.Model }
func (l Listing) Variant() string { return l.view.Variant }
func (l Listing) URI() string     { return l.view.URI }

// Title falls back to the make when the API omits a title.
func (l Listing) Title() string {
	if l.view.Title != "" {
		return l.view.Title
	}
	return l.view.Make
}

// Price is price.price, zero when absent.
func (l Listing) Price() float64 { return l.view.Price.Price }

// City is location.city, empty when absent.
func (l Listing) City() string {
	if l.view.Location == nil {
		return ""
	}
	return l.view.Location.City
}

// FirstRegistration is the short display text, e.g. "3/2024".
func (l Listing) FirstRegistration() string {
	return l.view.Properties.FirstRegistrationDate.DisplayTextShort
}

// Mileage is the short display text, e.g. "12.000 km".
func (l Listing) Mileage() string {
	return l.view.Properties.Mileage.DisplayTextShort
}

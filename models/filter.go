package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Filter keys understood by the search endpoint.
const (
	FilterOwnership         = "Ownership"
	FilterCategory          = "Category"
	FilterPriceRange        = "PriceRange"
	FilterFirstRegistration = "FirstRegistration"
	FilterFuelType          = "FuelType"
	FilterMake              = "Make"
	FilterModel             = "Model"
)

// FilterPayload is the fixed search criteria sent with every page request.
// Zero values mean "not filtered".
type FilterPayload struct {
	PageSize              int                 `yaml:"page_size"`
	Ownership             string              `yaml:"ownership"`
	Category              string              `yaml:"category"`
	PriceRange            PriceRange          `yaml:"price_range"`
	FirstRegistrationFrom *int                `yaml:"first_registration_from"`
	FuelTypes             []string            `yaml:"fuel_types"`
	Makes                 []string            `yaml:"makes"`
	Models                []ModelConstraint   `yaml:"models"`
	MultiValue            map[string][]string `yaml:"multi_value"`
}

// PriceRange bounds are in kr. Either side may be open.
type PriceRange struct {
	From *int `yaml:"from"`
	To   *int `yaml:"to"`
}

// ModelConstraint restricts a make to the given model keys (e.g. "ms-EQB-Klasse").
type ModelConstraint struct {
	Make   string   `yaml:"make"`
	Values []string `yaml:"values"`
}

// Validate checks the payload before any request is built.
func (f FilterPayload) Validate() error {
	if f.PageSize < 1 {
		return fmt.Errorf("filters: page size must be positive, got %d", f.PageSize)
	}
	if from := f.PriceRange.From; from != nil && *from < 0 {
		return fmt.Errorf("filters: negative price floor %d", *from)
	}
	if to := f.PriceRange.To; to != nil && *to < 0 {
		return fmt.Errorf("filters: negative price ceiling %d", *to)
	}
	if f.PriceRange.From != nil && f.PriceRange.To != nil && *f.PriceRange.From > *f.PriceRange.To {
		return fmt.Errorf("filters: price floor %d above ceiling %d", *f.PriceRange.From, *f.PriceRange.To)
	}
	for i, m := range f.Models {
		if strings.TrimSpace(m.Make) == "" {
			return fmt.Errorf("filters: model constraint %d has no make", i)
		}
		if len(m.Values) == 0 {
			return fmt.Errorf("filters: model constraint for %s has no models", m.Make)
		}
	}
	for key, values := range f.MultiValue {
		switch key {
		case FilterOwnership, FilterCategory, FilterPriceRange, FilterFirstRegistration,
			FilterFuelType, FilterMake, FilterModel:
			return fmt.Errorf("filters: %s must be set through its own field", key)
		}
		if len(values) == 0 {
			return fmt.Errorf("filters: %s has no values", key)
		}
	}
	return nil
}

type wireValue struct {
	Value string `json:"value"`
}

type wireSingle struct {
	Value wireValue `json:"value"`
}

type wireBounds struct {
	FromValue *int `json:"fromValue,omitempty"`
	ToValue   *int `json:"toValue,omitempty"`
}

type wireRange struct {
	Value wireBounds `json:"value"`
}

type wireMulti struct {
	Values []wireValue `json:"values"`
}

type wireParent struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wireModel struct {
	Parent wireParent `json:"parent"`
	Values []string   `json:"values"`
}

type wireModels struct {
	Values []wireModel `json:"values"`
}

type wireRequest struct {
	PageSize        int            `json:"pageSize"`
	SelectedFilters map[string]any `json:"selectedFilters"`
	Page            int            `json:"page"`
}

func multi(values []string) wireMulti {
	out := wireMulti{Values: make([]wireValue, 0, len(values))}
	for _, v := range values {
		out.Values = append(out.Values, wireValue{Value: v})
	}
	return out
}

// SelectedFilters returns the wire shape of the filter block.
func (f FilterPayload) SelectedFilters() map[string]any {
	sel := make(map[string]any)
	if f.Ownership != "" {
		sel[FilterOwnership] = wireSingle{Value: wireValue{Value: f.Ownership}}
	}
	if f.Category != "" {
		sel[FilterCategory] = wireSingle{Value: wireValue{Value: f.Category}}
	}
	if f.PriceRange.From != nil || f.PriceRange.To != nil {
		sel[FilterPriceRange] = wireRange{Value: wireBounds{FromValue: f.PriceRange.From, ToValue: f.PriceRange.To}}
	}
	if f.FirstRegistrationFrom != nil {
		sel[FilterFirstRegistration] = wireRange{Value: wireBounds{FromValue: f.FirstRegistrationFrom}}
	}
	if len(f.FuelTypes) > 0 {
		sel[FilterFuelType] = multi(f.FuelTypes)
	}
	if len(f.Makes) > 0 {
		sel[FilterMake] = multi(f.Makes)
	}
	if len(f.Models) > 0 {
		models := wireModels{Values: make([]wireModel, 0, len(f.Models))}
		for _, m := range f.Models {
			models.Values = append(models.Values, wireModel{
				Parent: wireParent{Key: FilterMake, Value: m.Make},
				Values: m.Values,
			})
		}
		sel[FilterModel] = models
	}
	for key, values := range f.MultiValue {
		sel[key] = multi(values)
	}
	return sel
}

// RequestBody encodes the payload for the given page. Bodies for the same
// payload differ only in the page field.
func (f FilterPayload) RequestBody(page int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("filters: page must be positive, got %d", page)
	}
	return json.Marshal(wireRequest{
		PageSize:        f.PageSize,
		SelectedFilters: f.SelectedFilters(),
		Page:            page,
	})
}

// FilterDescription is the human-readable filter block stored in snapshots.
type FilterDescription struct {
	PriceRange        string `json:"price_range"`
	FuelType          string `json:"fuel_type"`
	FirstRegistration string `json:"first_registration"`
	Ownership         string `json:"ownership"`
	Category          string `json:"category"`
}

const anyValue = "Any"

// Describe renders the payload the way the report pages show it.
func (f FilterPayload) Describe() FilterDescription {
	d := FilterDescription{
		PriceRange:        anyValue,
		FuelType:          anyValue,
		FirstRegistration: anyValue,
		Ownership:         orAny(f.Ownership),
		Category:          orAny(f.Category),
	}

	from, to := f.PriceRange.From, f.PriceRange.To
	switch {
	case from != nil && to != nil:
		d.PriceRange = fmt.Sprintf("%s - %s kr", GroupThousands(*from), GroupThousands(*to))
	case from != nil:
		d.PriceRange = fmt.Sprintf("%s+ kr", GroupThousands(*from))
	case to != nil:
		d.PriceRange = fmt.Sprintf("up to %s kr", GroupThousands(*to))
	}

	if len(f.FuelTypes) > 0 {
		d.FuelType = strings.Join(f.FuelTypes, ", ")
	}
	if f.FirstRegistrationFrom != nil {
		d.FirstRegistration = strconv.Itoa(*f.FirstRegistrationFrom) + "+"
	}
	return d
}

// String is a one-line summary for logs.
func (d FilterDescription) String() string {
	return fmt.Sprintf("price %s | fuel %s | registered %s | %s %s",
		d.PriceRange, d.FuelType, d.FirstRegistration, d.Ownership, d.Category)
}

func orAny(s string) string {
	if s == "" {
		return anyValue
	}
	return s
}

// GroupThousands formats n with comma separators: 250000 -> "250,000".
func GroupThousands(n int) string {
	if n < 0 {
		return "-" + GroupThousands(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

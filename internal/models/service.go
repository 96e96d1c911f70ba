package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServiceTag is a bitset of independent classification tags on a service.
type ServiceTag uint8

const (
	// TagPreviousOwner marks work done before the current ownership.
	TagPreviousOwner ServiceTag = 1 << iota
	// TagOffroad marks off-road or modification expenses.
	TagOffroad
	// TagSmallService marks routine oil-and-filter class services.
	TagSmallService
)

var tagNames = []struct {
	tag  ServiceTag
	name string
}{
	{TagPreviousOwner, "previous_owner"},
	{TagOffroad, "offroad"},
	{TagSmallService, "small_service"},
}

// TagsOf builds a tag set from the three boolean flags used by the API.
func TagsOf(previousOwner, offroad, smallService bool) ServiceTag {
	var t ServiceTag
	if previousOwner {
		t |= TagPreviousOwner
	}
	if offroad {
		t |= TagOffroad
	}
	if smallService {
		t |= TagSmallService
	}
	return t
}

// Has reports whether every tag in other is set.
func (t ServiceTag) Has(other ServiceTag) bool { return t&other == other }

// HasAny reports whether at least one tag in other is set.
func (t ServiceTag) HasAny(other ServiceTag) bool { return t&other != 0 }

func (t ServiceTag) With(other ServiceTag) ServiceTag    { return t | other }
func (t ServiceTag) Without(other ServiceTag) ServiceTag { return t &^ other }

// Names returns the tag names in a fixed order.
func (t ServiceTag) Names() []string {
	names := make([]string, 0, len(tagNames))
	for _, tn := range tagNames {
		if t.Has(tn.tag) {
			names = append(names, tn.name)
		}
	}
	return names
}

// MarshalJSON encodes the set as a list of tag names.
func (t ServiceTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Names())
}

// UnmarshalJSON decodes a list of tag names.
func (t *ServiceTag) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var out ServiceTag
	for _, name := range names {
		found := false
		for _, tn := range tagNames {
			if tn.name == name {
				out |= tn.tag
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown service tag %q", name)
		}
	}
	*t = out
	return nil
}

// ServiceItem is a named cost line attached to a service.
type ServiceItem struct {
	Description string  `bson:"description" json:"description"`
	Cost        float64 `bson:"cost" json:"cost"` // in EUR
}

// Service represents one maintenance event for a vehicle.
type Service struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID   string             `bson:"vehicle_id" json:"vehicle_id"`
	Date        time.Time          `bson:"date" json:"date"`
	Mileage     int                `bson:"mileage" json:"mileage"` // odometer, in kilometers
	Description string             `bson:"description" json:"description"`
	Cost        float64            `bson:"cost" json:"cost"` // base cost, items excluded
	Notes       string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Tags        ServiceTag         `bson:"tags" json:"tags"`
	Items       []ServiceItem      `bson:"items" json:"items"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

func (s Service) IsPreviousOwner() bool { return s.Tags.Has(TagPreviousOwner) }
func (s Service) IsOffroad() bool       { return s.Tags.Has(TagOffroad) }
func (s Service) IsSmallService() bool  { return s.Tags.Has(TagSmallService) }

// TotalCost is the base cost plus the cost of every item.
func (s Service) TotalCost() float64 {
	total := s.Cost
	for _, item := range s.Items {
		total += item.Cost
	}
	return total
}

// Number accepts either a JSON number or a numeric string. Values that do not
// parse, and non-finite values such as "NaN" or "Inf", decode as zero rather
// than failing the request.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = 0
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = finite(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		var parsed float64
		if _, err := fmt.Sscanf(s, "%g", &parsed); err == nil {
			*n = finite(parsed)
		}
	}
	return nil
}

func finite(f float64) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Number(f)
}

// NonNegative returns the value clamped at zero. NaN counts as zero.
func (n Number) NonNegative() float64 {
	f := float64(n)
	if !(f > 0) || math.IsInf(f, 1) {
		return 0
	}
	return f
}

// MaxMileage is the largest odometer reading accepted, in kilometers.
const MaxMileage = 10_000_000

// ServiceItemRequest is a cost line as submitted by clients.
type ServiceItemRequest struct {
	Description string `json:"description"`
	Cost        Number `json:"cost"`
}

// ServiceRequest is the create/update payload for a service.
type ServiceRequest struct {
	VehicleID       string               `json:"vehicle_id"`
	Date            string               `json:"date"`
	Mileage         *Number              `json:"mileage"`
	Description     string               `json:"description"`
	Cost            Number               `json:"cost"`
	Notes           string               `json:"notes"`
	IsPreviousOwner bool                 `json:"is_previous_owner"`
	IsOffroad       bool                 `json:"is_offroad"`
	IsSmallService  bool                 `json:"is_small_service"`
	Items           []ServiceItemRequest `json:"items"`
}

var (
	ErrMissingServiceFields = errors.New("vehicle_id, date, mileage, and description are required")
	ErrInvalidServiceDate   = errors.New("date must be RFC3339 or YYYY-MM-DD")
	ErrMileageOutOfRange    = fmt.Errorf("mileage must not exceed %d", MaxMileage)
	ErrVehicleChanged       = errors.New("vehicle_id cannot be changed")
)

var serviceDateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

// ParseServiceDate parses the accepted date layouts into UTC.
func ParseServiceDate(value string) (time.Time, error) {
	for _, layout := range serviceDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidServiceDate
}

// ToService validates the request and converts it into a Service. Costs are
// coerced to be non-negative.
func (r ServiceRequest) ToService() (Service, error) {
	if r.VehicleID == "" || r.Date == "" || r.Mileage == nil || r.Description == "" {
		return Service{}, ErrMissingServiceFields
	}
	date, err := ParseServiceDate(r.Date)
	if err != nil {
		return Service{}, err
	}
	km := r.Mileage.NonNegative()
	if km > MaxMileage {
		return Service{}, ErrMileageOutOfRange
	}
	mileage := int(km)

	items := make([]ServiceItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, ServiceItem{Description: it.Description, Cost: it.Cost.NonNegative()})
	}

	return Service{
		VehicleID:   r.VehicleID,
		Date:        date,
		Mileage:     mileage,
		Description: r.Description,
		Cost:        r.Cost.NonNegative(),
		Notes:       r.Notes,
		Tags:        TagsOf(r.IsPreviousOwner, r.IsOffroad, r.IsSmallService),
		Items:       items,
	}, nil
}

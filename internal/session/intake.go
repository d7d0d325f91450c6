// ABOUTME: Typed collected-data record for an intake conversation
// ABOUTME: One optional field per known key, rendered in a fixed order for summaries

package session

import (
	"errors"
	"fmt"
	"strings"
)

// Field names a piece of collected data.
type Field int

const (
	FieldServiceType Field = iota
	FieldVehicleModel
	FieldVehicleYear
	FieldPartName
	FieldTieRodType
	FieldSize
	FieldLocation
	FieldQuantity
	FieldDescription
	FieldHasPhoto

	numFields
)

var fieldKeys = [numFields]string{
	FieldServiceType:  "serviceType",
	FieldVehicleModel: "vehicleModel",
	FieldVehicleYear:  "vehicleYear",
	FieldPartName:     "partName",
	FieldTieRodType:   "tieRodType",
	FieldSize:         "size",
	FieldLocation:     "location",
	FieldQuantity:     "quantity",
	FieldDescription:  "description",
	FieldHasPhoto:     "hasPhoto",
}

// Key returns the field's wire name.
func (f Field) Key() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldKeys[f]
}

func (f Field) String() string { return f.Key() }

// ErrEmptyValue is returned when a text field is set to blank input.
var ErrEmptyValue = errors.New("empty value")

// MediaRef is an opaque pointer to media the customer attached.
type MediaRef struct {
	URI       string `json:"uri,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// Intake holds the data collected during a conversation. Nil fields were not
// collected on this branch.
type Intake struct {
	ServiceType  *string   `json:"serviceType,omitempty"`
	VehicleModel *string   `json:"vehicleModel,omitempty"`
	VehicleYear  *string   `json:"vehicleYear,omitempty"`
	PartName     *string   `json:"partName,omitempty"`
	TieRodType   *string   `json:"tieRodType,omitempty"`
	Size         *string   `json:"size,omitempty"`
	Location     *string   `json:"location,omitempty"`
	Quantity     *string   `json:"quantity,omitempty"`
	Description  *string   `json:"description,omitempty"`
	HasPhoto     *bool     `json:"hasPhoto,omitempty"`
	Photo        *MediaRef `json:"photo,omitempty"`
}

// textSlot returns the storage for a text field, or nil for non-text fields.
func (in *Intake) textSlot(f Field) **string {
	switch f {
	case FieldServiceType:
		return &in.ServiceType
	case FieldVehicleModel:
		return &in.VehicleModel
	case FieldVehicleYear:
		return &in.VehicleYear
	case FieldPartName:
		return &in.PartName
	case FieldTieRodType:
		return &in.TieRodType
	case FieldSize:
		return &in.Size
	case FieldLocation:
		return &in.Location
	case FieldQuantity:
		return &in.Quantity
	case FieldDescription:
		return &in.Description
	}
	return nil
}

// SetText stores trimmed text in a text field.
func (in *Intake) SetText(f Field, value string) error {
	slot := in.textSlot(f)
	if slot == nil {
		return fmt.Errorf("%s is not a text field", f)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s: %w", f, ErrEmptyValue)
	}
	*slot = &value
	return nil
}

// Text returns a text field's value and whether it was collected.
func (in Intake) Text(f Field) (string, bool) {
	slot := in.textSlot(f)
	if slot == nil || *slot == nil {
		return "", false
	}
	return **slot, true
}

// SetPhoto records an attached photo.
func (in *Intake) SetPhoto(ref MediaRef) {
	yes := true
	in.HasPhoto = &yes
	in.Photo = &ref
}

// SkipPhoto records that the customer chose not to send a photo.
func (in *Intake) SkipPhoto() {
	no := false
	in.HasPhoto = &no
	in.Photo = nil
}

// Entry is one present field with its value (string or bool).
type Entry struct {
	Field Field
	Value any
}

// Entries returns the collected fields in summary order.
func (in Intake) Entries() []Entry {
	var out []Entry
	for f := Field(0); f < numFields; f++ {
		if f == FieldHasPhoto {
			if in.HasPhoto != nil {
				out = append(out, Entry{Field: f, Value: *in.HasPhoto})
			}
			continue
		}
		if v, ok := in.Text(f); ok {
			out = append(out, Entry{Field: f, Value: v})
		}
	}
	return out
}

// Map returns the collected fields keyed by wire name.
func (in Intake) Map() map[string]any {
	m := make(map[string]any)
	for _, e := range in.Entries() {
		m[e.Field.Key()] = e.Value
	}
	return m
}

// Empty reports whether nothing has been collected.
func (in Intake) Empty() bool { return len(in.Entries()) == 0 }

// Clone returns a deep copy.
func (in Intake) Clone() Intake {
	out := Intake{}
	for f := Field(0); f < numFields; f++ {
		if v, ok := in.Text(f); ok {
			v := v
			*out.textSlot(f) = &v
		}
	}
	if in.HasPhoto != nil {
		b := *in.HasPhoto
		out.HasPhoto = &b
	}
	if in.Photo != nil {
		p := *in.Photo
		out.Photo = &p
	}
	return out
}

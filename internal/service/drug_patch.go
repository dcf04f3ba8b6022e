package service

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	apperrors "pharmcatalog/internal/errors"
	"pharmcatalog/internal/model"
)

const (
	maxShortText   = 255
	maxDescription = 10000
	// price column is decimal(12,2)
	priceScale = 2
)

var maxPrice = decimal.New(1, 10)

// Field is one member of a partial update. Set=false leaves the stored
// value untouched.
type Field[T any] struct {
	Set   bool
	Value T
}

// Set returns a Field that overwrites with v.
func Set[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// DrugPatch is a partial drug record. For optional columns a set field
// holding nil (or an invalid NullDecimal) clears the column.
type DrugPatch struct {
	Name         Field[string]
	Description  Field[*string]
	Price        Field[decimal.NullDecimal]
	Type         Field[*string]
	Genus        Field[*string]
	Dosage       Field[*string]
	Manufacturer Field[*string]
	Images       Field[[]string]
}

// Form field names accepted by ParseDrugPatch.
const (
	FieldName         = "name"
	FieldDescription  = "description"
	FieldPrice        = "price"
	FieldType         = "type"
	FieldGenus        = "genus"
	FieldDosage       = "dosage"
	FieldManufacturer = "manufacturer"
	FieldImages       = "images"
)

// ParseDrugPatch builds a patch from raw field values. Only keys present in
// values are applied. Empty strings clear optional fields; an empty name is
// rejected. imagesSet reports whether images should replace the stored list.
func ParseDrugPatch(values map[string]string, images []string, imagesSet bool) (DrugPatch, error) {
	var patch DrugPatch
	verr := &apperrors.ValidationError{}

	if raw, ok := values[FieldName]; ok {
		name := strings.TrimSpace(raw)
		switch {
		case name == "":
			verr.Add(FieldName, "is required")
		case utf8.RuneCountInString(name) > maxShortText:
			verr.Add(FieldName, "must be at most 255 characters")
		default:
			patch.Name = Set(name)
		}
	}

	if raw, ok := values[FieldPrice]; ok {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			patch.Price = Set(decimal.NullDecimal{})
		} else if price, err := decimal.NewFromString(raw); err != nil {
			verr.Add(FieldPrice, "must be a number")
		} else if price.IsNegative() {
			verr.Add(FieldPrice, "must not be negative")
		} else if !price.Equal(price.Truncate(priceScale)) {
			verr.Add(FieldPrice, "must have at most 2 decimal places")
		} else if price.GreaterThanOrEqual(maxPrice) {
			verr.Add(FieldPrice, "must be less than 10000000000")
		} else {
			patch.Price = Set(decimal.NewNullDecimal(price))
		}
	}

	patch.Description = optionalText(values, FieldDescription, maxDescription, verr)
	patch.Type = optionalText(values, FieldType, maxShortText, verr)
	patch.Genus = optionalText(values, FieldGenus, maxShortText, verr)
	patch.Dosage = optionalText(values, FieldDosage, maxShortText, verr)
	patch.Manufacturer = optionalText(values, FieldManufacturer, maxShortText, verr)

	if imagesSet {
		list := make([]string, 0, len(images))
		for _, img := range images {
			if img = strings.TrimSpace(img); img != "" {
				list = append(list, img)
			}
		}
		patch.Images = Set(list)
	}

	if err := verr.OrNil(); err != nil {
		return DrugPatch{}, err
	}
	return patch, nil
}

func optionalText(values map[string]string, field string, limit int, verr *apperrors.ValidationError) Field[*string] {
	raw, ok := values[field]
	if !ok {
		return Field[*string]{}
	}
	v := strings.TrimSpace(raw)
	if utf8.RuneCountInString(v) > limit {
		verr.Add(field, "is too long")
		return Field[*string]{}
	}
	if v == "" {
		return Set[*string](nil)
	}
	return Set(&v)
}

// Apply writes the set fields of the patch onto drug.
func (p DrugPatch) Apply(drug *model.Drug) {
	if p.Name.Set {
		drug.Name = p.Name.Value
	}
	if p.Description.Set {
		drug.Description = p.Description.Value
	}
	if p.Price.Set {
		drug.Price = p.Price.Value
	}
	if p.Type.Set {
		drug.Type = p.Type.Value
	}
	if p.Genus.Set {
		drug.Genus = p.Genus.Value
	}
	if p.Dosage.Set {
		drug.Dosage = p.Dosage.Value
	}
	if p.Manufacturer.Set {
		drug.Manufacturer = p.Manufacturer.Value
	}
	if p.Images.Set {
		drug.Images = append([]string{}, p.Images.Value...)
	}
}

// WithImages appends uploaded references to the patch. Uploads always
// replace the stored list, after any explicitly supplied references.
func (p DrugPatch) WithImages(uploaded []string) DrugPatch {
	if len(uploaded) == 0 {
		return p
	}
	list := append([]string{}, p.Images.Value...)
	p.Images = Set(append(list, uploaded...))
	return p
}

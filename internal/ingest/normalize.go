package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"forma/pkg/models"
)

// PlaceholderName marks a record that carried no usable name. Such records
// are counted as invalid and never committed.
const PlaceholderName = "Unknown Food"

const (
	defaultCategory     = "OTHER"
	defaultServingSizeG = 100
	defaultMarket       = "Egyptian Markets"
)

// SourceOptions carries the per-source knobs of normalization.
type SourceOptions struct {
	// Namespace prefixes synthesized external ids, e.g. "food" or "supp".
	Namespace string
	// IsEgyptian is the default for records without an explicit flag.
	// Geography-scoped sources default true, generic ones false.
	IsEgyptian bool
	// ArrayKey names the array property when a file is a JSON object.
	ArrayKey string
}

type field int

const (
	fieldExternalID field = iota
	fieldNameEn
	fieldNameAr
	fieldBrandEn
	fieldBrandAr
	fieldCategory
	fieldSubcategory
	fieldServingSizeG
	fieldCalories
	fieldProteinG
	fieldCarbsG
	fieldFatG
	fieldFiberG
	fieldSugarG
	fieldSodiumMg
	fieldIsEgyptian
	fieldBarcode
	fieldAvailableAt
	fieldTags
)

// fieldKeys lists, per canonical field, the raw keys consulted in order:
// snake_case first, camelCase second, then looser alternates.
var fieldKeys = map[field][]string{
	fieldExternalID:   {"external_id", "externalId", "id"},
	fieldNameEn:       {"name_en", "nameEn", "name"},
	fieldNameAr:       {"name_ar", "nameAr"},
	fieldBrandEn:      {"brand_en", "brandEn", "brand"},
	fieldBrandAr:      {"brand_ar", "brandAr"},
	fieldCategory:     {"category"},
	fieldSubcategory:  {"sub_category", "subCategory", "subcategory"},
	fieldServingSizeG: {"serving_size_g", "servingSizeG", "serving_size", "servingSize"},
	fieldCalories:     {"calories", "kcal"},
	fieldProteinG:     {"protein_g", "proteinG", "protein"},
	fieldCarbsG:       {"carbs_g", "carbsG", "carbs"},
	fieldFatG:         {"fat_g", "fatG", "fat"},
	fieldFiberG:       {"fiber_g", "fiberG", "fiber"},
	fieldSugarG:       {"sugar_g", "sugarG", "sugar"},
	fieldSodiumMg:     {"sodium_mg", "sodiumMg", "sodium"},
	fieldIsEgyptian:   {"is_egyptian", "isEgyptian"},
	fieldBarcode:      {"barcode"},
	fieldAvailableAt:  {"available_at", "availableAt"},
	fieldTags:         {"tags"},
}

// Normalize maps a raw record into the canonical shape. It is a pure
// function of its arguments; seq is only used when no better external id
// can be derived.
func Normalize(raw models.RawFoodRecord, seq int, src SourceOptions) models.CanonicalFoodRecord {
	nameEn, ok := lookupString(raw, fieldNameEn)
	if !ok {
		// An Arabic-only record keeps its name; its id falls back to seq.
		nameEn, ok = lookupString(raw, fieldNameAr)
	}
	if !ok {
		nameEn = PlaceholderName
	}

	nameAr, ok := lookupString(raw, fieldNameAr)
	if !ok {
		nameAr = nameEn
	}

	category := defaultCategory
	if c, ok := lookupString(raw, fieldCategory); ok {
		category = strings.ToUpper(c)
	}

	rec := models.CanonicalFoodRecord{
		ExternalID:   resolveExternalID(raw, nameEn, seq, src.Namespace),
		NameEn:       nameEn,
		NameAr:       nameAr,
		BrandEn:      lookupStringPtr(raw, fieldBrandEn),
		BrandAr:      lookupStringPtr(raw, fieldBrandAr),
		Category:     category,
		Subcategory:  lookupStringPtr(raw, fieldSubcategory),
		ServingSizeG: lookupFloatOr(raw, fieldServingSizeG, defaultServingSizeG),
		Calories:     lookupFloatOr(raw, fieldCalories, 0),
		ProteinG:     lookupFloatOr(raw, fieldProteinG, 0),
		CarbsG:       lookupFloatOr(raw, fieldCarbsG, 0),
		FatG:         lookupFloatOr(raw, fieldFatG, 0),
		FiberG:       lookupFloatOr(raw, fieldFiberG, 0),
		SugarG:       lookupFloatPtr(raw, fieldSugarG),
		SodiumMg:     lookupFloatPtr(raw, fieldSodiumMg),
		IsEgyptian:   src.IsEgyptian,
		Barcode:      lookupStringPtr(raw, fieldBarcode),
	}

	if b, ok := lookupBool(raw, fieldIsEgyptian); ok {
		rec.IsEgyptian = b
	}

	rec.AvailableAt, ok = lookupStrings(raw, fieldAvailableAt)
	if !ok {
		rec.AvailableAt = []string{defaultMarket}
	}
	rec.Tags, ok = lookupStrings(raw, fieldTags)
	if !ok {
		rec.Tags = []string{strings.ToLower(category)}
	}
	return rec
}

func resolveExternalID(raw models.RawFoodRecord, nameEn string, seq int, namespace string) string {
	if id, ok := lookupString(raw, fieldExternalID); ok {
		return id
	}
	if nameEn != PlaceholderName {
		if slug := slugify(nameEn); slug != "" {
			return namespace + "-" + slug
		}
	}
	return fmt.Sprintf("%s-%05d", namespace, seq)
}

// slugify lower-cases s and replaces every rune outside [a-z0-9] with a single '-'.
// It returns "" when nothing alphanumeric is left.
func slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	alnum := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			alnum = true
			continue
		}
		b.WriteByte('-')
	}
	if !alnum {
		return ""
	}
	return b.String()
}

func lookupString(raw models.RawFoodRecord, f field) (string, bool) {
	for _, k := range fieldKeys[f] {
		if s, ok := asString(raw[k]); ok {
			return s, true
		}
	}
	return "", false
}

func lookupStringPtr(raw models.RawFoodRecord, f field) *string {
	if s, ok := lookupString(raw, f); ok {
		return &s
	}
	return nil
}

func lookupFloat(raw models.RawFoodRecord, f field) (float64, bool) {
	for _, k := range fieldKeys[f] {
		if v, ok := asFloat(raw[k]); ok {
			return v, true
		}
	}
	return 0, false
}

func lookupFloatOr(raw models.RawFoodRecord, f field, def float64) float64 {
	if v, ok := lookupFloat(raw, f); ok {
		return v
	}
	return def
}

func lookupFloatPtr(raw models.RawFoodRecord, f field) *float64 {
	if v, ok := lookupFloat(raw, f); ok {
		return &v
	}
	return nil
}

func lookupBool(raw models.RawFoodRecord, f field) (bool, bool) {
	for _, k := range fieldKeys[f] {
		if b, ok := asBool(raw[k]); ok {
			return b, true
		}
	}
	return false, false
}

func lookupStrings(raw models.RawFoodRecord, f field) ([]string, bool) {
	for _, k := range fieldKeys[f] {
		if l, ok := asStrings(raw[k]); ok {
			return l, true
		}
	}
	return nil, false
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return "", false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	case json.Number:
		f, err := x.Float64()
		return f != 0, err == nil
	case float64:
		return x != 0, true
	}
	return false, false
}

func asStrings(v any) ([]string, bool) {
	var out []string
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if s, ok := asString(item); ok {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range x {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(x, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out, len(out) > 0
}

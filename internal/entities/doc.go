// Package entities holds the typed record of poultry facts extracted from a
// conversation turn, together with the rules that keep it trustworthy.
//
// # Overview
//
// An EntitySet is a partially populated record: every scalar field is a
// pointer and nil means "absent". Fields that come out of extraction with an
// uncertainty (breed, sex, age, weight, mortality) carry a paired confidence
// in [0,1].
//
// Three operations operate on it:
//   - Coercion (CoerceInt, CoerceFloat, FromRaw) turns loosely typed
//     extraction output into native numeric values, returning "absent"
//     instead of failing.
//   - Validation (Validate) corrects implausible values: unit mistakes on
//     weight, Fahrenheit temperatures, out-of-range percentages and
//     inconsistent day/week ages.
//   - Fusion (Merge) combines two sets into a new one, keeping the more
//     confident value per field.
//
// # Merge ordering
//
// Merge prefers the incoming value when confidences tie, so it is not
// commutative. Conversations must merge in arrival order:
//
//	consolidated = entities.Merge(consolidated, extracted)
//
// # Failure model
//
// No operation in this package returns an error. Problems are reported as
// Issue values (coercion failure, validation warning, serialization failure)
// and never stop the processing of sibling fields.
package entities

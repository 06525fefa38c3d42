package units

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

type Unit interface {
	Name() string
	Fractional() bool
	ValidateQuantity(q decimal.Decimal) error
}

type wholeUnit struct{ name string }

func (u wholeUnit) Name() string     { return u.name }
func (u wholeUnit) Fractional() bool { return false }

func (u wholeUnit) ValidateQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return apperr.Validation("quantity must be positive, got %s", q)
	}
	if !q.IsInteger() {
		return apperr.Validation("unit %q only takes whole quantities, got %s", u.name, q)
	}
	return nil
}

type measuredUnit struct{ name string }

func (u measuredUnit) Name() string     { return u.name }
func (u measuredUnit) Fractional() bool { return true }

func (u measuredUnit) ValidateQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return apperr.Validation("quantity must be positive, got %s", q)
	}
	return models.CheckQuantity("quantity", q)
}

// Measured units accept decimal quantities; every other unit counts pieces.
var measured = []string{"kg", "gram", "liter", "ml", "meter", "cm", "inch"}

type Registry interface {
	Get(name string) Unit
	ValidateQuantity(unit string, q decimal.Decimal) error
	ListFractional() []string
}

type registry struct {
	units map[string]Unit
}

func NewRegistry() Registry {
	r := &registry{units: make(map[string]Unit, len(measured))}
	for _, name := range measured {
		r.units[name] = measuredUnit{name: name}
	}
	return r
}

// Get never fails: unknown units are treated as whole pieces.
func (r *registry) Get(name string) Unit {
	key := strings.ToLower(strings.TrimSpace(name))
	if u, ok := r.units[key]; ok {
		return u
	}
	return wholeUnit{name: name}
}

func (r *registry) ValidateQuantity(unit string, q decimal.Decimal) error {
	return r.Get(unit).ValidateQuantity(q)
}

func (r *registry) ListFractional() []string {
	list := make([]string, 0, len(r.units))
	for k := range r.units {
		list = append(list, k)
	}
	sort.Strings(list)
	return list
}

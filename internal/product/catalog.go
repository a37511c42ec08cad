// Package product defines the unlockable entitlement products: their candy
// cost and the entitlement extension they grant.
package product

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrUnknownProduct = errors.New("unknown product")

// Product is a purchasable entitlement extension. ExtendTime is a comma
// separated list of signed unit:value deltas, e.g. "days:30,hours:12",
// applied sequentially in listed order.
type Product struct {
	ID         string `json:"id"`
	Cost       int    `json:"cost"`
	ExtendTime string `json:"extend_time"`
}

// Catalog resolves product ids to definitions.
type Catalog struct {
	products map[string]Product
}

func NewCatalog(products ...Product) *Catalog {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &Catalog{products: m}
}

// DefaultCatalog returns the built-in product set.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Product{ID: "unlock-week", Cost: 5, ExtendTime: "days:7"},
		Product{ID: "unlock-month", Cost: 10, ExtendTime: "days:30"},
		Product{ID: "unlock-quarter", Cost: 25, ExtendTime: "months:3"},
	)
}

// Get resolves a product by id.
func (c *Catalog) Get(id string) (Product, error) {
	p, ok := c.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return p, nil
}

// Extend applies the product's time deltas to base, in listed order.
func (p Product) Extend(base time.Time) (time.Time, error) {
	return ApplyExtendTime(base, p.ExtendTime)
}

// ApplyExtendTime folds a "unit:value,unit:value" spec over base.
// Supported units: years, months, weeks, days, hours, minutes, seconds.
// Values may be negative.
func ApplyExtendTime(base time.Time, spec string) (time.Time, error) {
	if spec == "" {
		return base, nil
	}

	result := base
	for _, part := range strings.Split(spec, ",") {
		unit, raw, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found {
			return time.Time{}, fmt.Errorf("malformed extend_time segment %q", part)
		}

		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return time.Time{}, fmt.Errorf("malformed extend_time value %q: %w", raw, err)
		}

		switch strings.TrimSpace(unit) {
		case "years", "year", "y":
			result = result.AddDate(value, 0, 0)
		case "months", "month", "M":
			result = result.AddDate(0, value, 0)
		case "weeks", "week", "w":
			result = result.AddDate(0, 0, 7*value)
		case "days", "day", "d":
			result = result.AddDate(0, 0, value)
		case "hours", "hour", "h":
			result = result.Add(time.Duration(value) * time.Hour)
		case "minutes", "minute", "m":
			result = result.Add(time.Duration(value) * time.Minute)
		case "seconds", "second", "s":
			result = result.Add(time.Duration(value) * time.Second)
		default:
			return time.Time{}, fmt.Errorf("unsupported extend_time unit %q", unit)
		}
	}
	return result, nil
}

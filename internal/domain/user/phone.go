package user

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// CanonicalPhone parses raw as a number of region (ISO 3166, e.g. "PE") and
// returns it in E.164 form, at most 16 characters. Extensions are dropped.
func CanonicalPhone(raw, region string) (string, bool) {
	region = strings.ToUpper(region)

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsValidNumberForRegion(num, region) {
		return "", false
	}

	return phonenumbers.Format(num, phonenumbers.E164), true
}

// CanonicalizePhone rewrites a validated phone into E.164.
func (r *CreateUserRequest) CanonicalizePhone(region string) {
	if p, ok := CanonicalPhone(r.Phone, region); ok {
		r.Phone = p
	}
}

func (r *UpdateUserRequest) CanonicalizePhone(region string) {
	if r.Phone == nil {
		return
	}
	if p, ok := CanonicalPhone(*r.Phone, region); ok {
		r.Phone = &p
	}
}

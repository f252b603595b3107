package auth

import (
	"whisperfeed/domain"
	"whisperfeed/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// freeProviderDomains lists email providers whose addresses are refused at
// registration. Attendees sign in with an institutional or company address;
// the gate runs once per login request, never per message.
var freeProviderDomains = map[string]struct{}{
	// US/Global providers
	"gmail.com": {}, "googlemail.com": {}, "yahoo.com": {}, "hotmail.com": {},
	"outlook.com": {}, "live.com": {}, "icloud.com": {}, "me.com": {},
	"aol.com": {}, "protonmail.com": {}, "proton.me": {},

	// Chinese providers
	"163.com": {}, "126.com": {}, "qq.com": {}, "foxmail.com": {},
	"sina.com": {}, "sohu.com": {}, "yeah.net": {},

	// European/Russian providers
	"gmx.de": {}, "gmx.net": {}, "web.de": {}, "mail.ru": {}, "yandex.ru": {},
	"libero.it": {}, "virgilio.it": {}, "laposte.net": {},
}

// IsEligibleDomain reports whether the address belongs to an institution
// rather than a free provider. Case-insensitive on the domain portion.
func IsEligibleDomain(identity domain.Identity) bool {
	d := identity.Domain()
	if d == "" {
		return false
	}
	_, free := freeProviderDomains[d]
	return !free
}

// LoginRequest is the payload of a magic-link request.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	EventCode  string `json:"event_code" validate:"required"`
	AgreeTerms bool   `json:"agree_terms"`
}

// ValidateLogin checks the shape of a login request and the terms agreement.
// The event code itself is compared by the auth service, not here.
func ValidateLogin(req LoginRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !req.AgreeTerms {
		return errors.ErrTermsNotAccepted
	}
	return nil
}

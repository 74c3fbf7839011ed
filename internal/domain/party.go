package domain

import (
	"fmt"
	"strings"
)

type PartyKind string

const (
	PartyAccount PartyKind = "account"
	PartyGuest   PartyKind = "guest"
)

// GuestContact identifies a purchaser who checked out without an account.
type GuestContact struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Party is the purchaser of an order: either an opaque account reference issued
// by the identity service, or a guest contact. Construct values through
// AccountParty or GuestParty so that exactly one variant is set.
type Party struct {
	Kind   PartyKind     `json:"kind"`
	UserID string        `json:"user_id,omitempty"`
	Guest  *GuestContact `json:"guest,omitempty"`
}

func AccountParty(userID string) Party {
	return Party{Kind: PartyAccount, UserID: userID}
}

func GuestParty(contact GuestContact) Party {
	return Party{Kind: PartyGuest, Guest: &contact}
}

// Email returns the contact address for the party, empty for accounts whose
// address is only known to the identity service.
func (p Party) Email() string {
	if p.Kind == PartyGuest && p.Guest != nil {
		return p.Guest.Email
	}
	return ""
}

func (p Party) Validate() error {
	switch p.Kind {
	case PartyAccount:
		if strings.TrimSpace(p.UserID) == "" {
			return fmt.Errorf("account party requires a user id")
		}
		if p.Guest != nil {
			return fmt.Errorf("account party must not carry guest contact")
		}
	case PartyGuest:
		if p.Guest == nil {
			return fmt.Errorf("guest party requires contact details")
		}
		if strings.TrimSpace(p.Guest.Email) == "" {
			return fmt.Errorf("guest party requires an email")
		}
		if p.UserID != "" {
			return fmt.Errorf("guest party must not carry a user id")
		}
	default:
		return fmt.Errorf("unknown party kind: %q", p.Kind)
	}
	return nil
}

package domain

import "fmt"

type Kind string

const (
	KindUser  Kind = "user"
	KindGuest Kind = "guest"
)

// Identity names the owner of a cart: either a user or a guest, never both.
// The zero value is invalid and is rejected by Validate.
type Identity struct {
	kind Kind
	id   string
}

func User(id string) Identity {
	return Identity{kind: KindUser, id: id}
}

func Guest(id string) Identity {
	return Identity{kind: KindGuest, id: id}
}

// ParseIdentity builds an identity from an untrusted kind/id pair, as found in a URL.
func ParseIdentity(kind, id string) (Identity, error) {
	identity := Identity{kind: Kind(kind), id: id}
	if err := identity.Validate(); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

func (i Identity) Kind() Kind {
	return i.kind
}

func (i Identity) ID() string {
	return i.id
}

func (i Identity) IsUser() bool {
	return i.kind == KindUser
}

func (i Identity) IsGuest() bool {
	return i.kind == KindGuest
}

func (i Identity) Validate() error {
	switch i.kind {
	case KindUser:
		if i.id == "" {
			return NewValidationError("userId", "userId is required")
		}
	case KindGuest:
		if i.id == "" {
			return NewValidationError("guestId", "guestId is required")
		}
	default:
		return NewValidationError("type", "Invalid type param (use 'user' or 'guest')")
	}
	return nil
}

// Key is unique across both identity kinds, e.g. "user:42" or "guest:abc".
func (i Identity) Key() string {
	return fmt.Sprintf("%s:%s", i.kind, i.id)
}

func (i Identity) String() string {
	return i.Key()
}

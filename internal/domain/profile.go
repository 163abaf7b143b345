package domain

import "time"

// Profile is a pseudonymous directory entry bound to a payment address.
type Profile struct {
	ID              string `json:"id"`
	Address         string `json:"address"`
	Name            string `json:"name"`
	DisplayName     string `json:"display_name,omitempty"`
	Bio             string `json:"bio,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`

	// AddressVerified is owned by the server. While false the address is immutable
	// through the pending-edit pipeline.
	AddressVerified bool `json:"address_verified"`

	Links []Link `json:"links,omitempty"`

	// FetchedAt records when the local replica was refreshed from the directory.
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	p.Links = CloneLinks(p.Links)
	return p
}

// Value returns the current value of the free-text field f.
func (p Profile) Value(f Field) string {
	switch f {
	case FieldAddress:
		return p.Address
	case FieldName:
		return p.Name
	case FieldDisplayName:
		return p.DisplayName
	case FieldBio:
		return p.Bio
	case FieldImage:
		return p.ProfileImageURL
	}
	return ""
}

// LinkByID returns the link with the given id.
func (p Profile) LinkByID(id int64) (Link, bool) {
	for _, l := range p.Links {
		if l.ID == id {
			return l, true
		}
	}
	return Link{}, false
}

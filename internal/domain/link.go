package domain

import "time"

// Link is an external reference (social handle, website) claimed by a profile.
type Link struct {
	// ID is the server identity of the link. Persisted links always carry one.
	ID int64 `json:"id"`

	// URL is the claimed address of the external resource.
	URL string `json:"url"`

	// IsVerified is owned by the server. A verified link can be deleted but never edited.
	IsVerified bool `json:"is_verified"`

	// VerificationExpiresAt is set while a verification request is pending.
	VerificationExpiresAt *time.Time `json:"verification_expires_at,omitempty"`
}

// DraftLinkRow is one editable row of the link list inside an edit session.
type DraftLinkRow struct {
	// RowKey is a locally generated identity, stable for the lifetime of the row.
	RowKey string `json:"row_key"`

	// ID is copied from the original link when the row edits it. Nil marks a new row.
	ID *int64 `json:"id,omitempty"`

	// URL is the current input and may be syntactically invalid.
	URL string `json:"url"`
}

// IsNew reports whether the row has no server identity yet.
func (r DraftLinkRow) IsNew() bool {
	return r.ID == nil
}

// CloneLinks returns a deep copy of links.
func CloneLinks(links []Link) []Link {
	if links == nil {
		return nil
	}
	out := make([]Link, len(links))
	for i, l := range links {
		out[i] = l
		if l.VerificationExpiresAt != nil {
			t := *l.VerificationExpiresAt
			out[i].VerificationExpiresAt = &t
		}
	}
	return out
}

// CloneRows returns a deep copy of rows.
func CloneRows(rows []DraftLinkRow) []DraftLinkRow {
	if rows == nil {
		return nil
	}
	out := make([]DraftLinkRow, len(rows))
	for i, r := range rows {
		out[i] = r
		if r.ID != nil {
			id := *r.ID
			out[i].ID = &id
		}
	}
	return out
}

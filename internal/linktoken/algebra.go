package linktoken

import (
	"strings"

	"profiledir/internal/domain"
)

// row is a draft row after url resolution.
type row struct {
	orig *domain.Link // nil for new rows
	url  string       // effective url, "" when empty or invalid
}

// Compute derives the token set for the current draft, merging it with the tokens
// accumulated by earlier recomputations. It is pure and never fails: malformed
// prior tokens and invalid urls are absorbed.
//
// The result lists freshly generated tokens in draft order, followed by preserved
// prior tokens in their prior order, without duplicates.
func Compute(original []domain.Link, draft []domain.DraftLinkRow, prior []Token, valid Validator) []Token {
	if valid == nil {
		valid = ValidURL
	}

	byID := make(map[int64]domain.Link, len(original))
	originalURLs := make(map[string]bool, len(original))
	for _, l := range original {
		byID[l.ID] = l
		originalURLs[l.URL] = true
	}

	rows := resolve(draft, byID, valid)

	// Urls of new rows that are actually new, in draft order.
	var newURLs []string
	current := make(map[string]bool)
	present := make(map[int64]bool)
	for _, r := range rows {
		if r.orig != nil {
			present[r.orig.ID] = true
			continue
		}
		if r.url == "" || originalURLs[r.url] || current[r.url] {
			continue
		}
		current[r.url] = true
		newURLs = append(newURLs, r.url)
	}

	parsed := make([]Parsed, 0, len(prior))
	for _, t := range prior {
		if p, ok := Parse(t); ok {
			parsed = append(parsed, p)
		}
	}
	parsed = normalizeVerifyCreates(parsed, newURLs, current)

	verifyURLs := make(map[string]bool)
	for _, p := range parsed {
		if p.Kind == KindCreateVerify {
			verifyURLs[p.URL] = true
		}
	}

	// Effects of the draft itself.
	var fresh []Parsed
	freshDelete := make(map[int64]bool)
	for _, r := range rows {
		if r.orig != nil {
			switch {
			case r.url == r.orig.URL:
			case r.url == "":
				fresh = append(fresh, Parsed{Kind: KindDelete, ID: r.orig.ID})
				freshDelete[r.orig.ID] = true
			default:
				fresh = append(fresh, Parsed{Kind: KindEdit, ID: r.orig.ID, URL: r.url})
			}
			continue
		}
		if r.url == "" || originalURLs[r.url] || verifyURLs[r.url] {
			continue
		}
		fresh = append(fresh, Parsed{Kind: KindCreate, URL: r.url})
	}

	// Prior tokens run oldest to newest, so the last edit of an id wins.
	lastEdit := make(map[int64]int)
	for i, p := range parsed {
		if p.Kind == KindEdit {
			lastEdit[p.ID] = i
		}
	}

	// Prior intent that the draft does not restate.
	var kept []Parsed
	for i, p := range parsed {
		switch p.Kind {
		case KindVerify:
			orig, ok := byID[p.ID]
			if !ok || orig.IsVerified || freshDelete[p.ID] {
				continue
			}
		case KindDelete:
			if _, ok := byID[p.ID]; !ok {
				continue
			}
			if present[p.ID] && !freshDelete[p.ID] {
				continue
			}
		case KindEdit:
			if _, ok := byID[p.ID]; !ok || present[p.ID] || lastEdit[p.ID] != i {
				continue
			}
		case KindCreate:
			if !current[p.URL] || verifyURLs[p.URL] {
				continue
			}
		}
		kept = append(kept, p)
	}

	all := append(fresh, kept...)
	deleted := make(map[int64]bool)
	for _, p := range all {
		if p.Kind == KindDelete {
			deleted[p.ID] = true
		}
	}

	seen := make(map[Token]bool, len(all))
	out := make([]Token, 0, len(all))
	for _, p := range all {
		switch p.Kind {
		case KindCreateVerify:
			if !current[p.URL] {
				continue
			}
		case KindVerify, KindEdit:
			if deleted[p.ID] {
				continue
			}
		}
		t := p.Token()
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func resolve(draft []domain.DraftLinkRow, byID map[int64]domain.Link, valid Validator) []row {
	rows := make([]row, 0, len(draft))
	for _, d := range draft {
		raw := strings.TrimSpace(d.URL)
		var r row
		if d.ID != nil {
			if orig, ok := byID[*d.ID]; ok {
				r.orig = &orig
			}
		}
		switch {
		case r.orig != nil && r.orig.IsVerified:
			// A verified url is read-only; only an explicit blank requests deletion.
			if raw != "" {
				r.url = r.orig.URL
			}
		case raw != "" && valid(raw):
			r.url = raw
		}
		rows = append(rows, r)
	}
	return rows
}

// normalizeVerifyCreates moves a "+!<url>" token whose new row changed its url onto
// the row that now carries the new url, so an explicit verify request survives the
// row being edited before submission.
func normalizeVerifyCreates(prior []Parsed, newURLs []string, current map[string]bool) []Parsed {
	claimed := make(map[string]bool)
	referenced := make(map[string]bool)
	for _, p := range prior {
		switch p.Kind {
		case KindCreateVerify:
			referenced[p.URL] = true
			if current[p.URL] {
				claimed[p.URL] = true
			}
		case KindCreate:
			referenced[p.URL] = true
		}
	}

	out := make([]Parsed, len(prior))
	copy(out, prior)
	for i, p := range out {
		if p.Kind != KindCreateVerify || current[p.URL] {
			continue
		}
		if u, ok := pickUnclaimed(newURLs, claimed, referenced); ok {
			out[i].URL = u
			claimed[u] = true
		}
	}
	return out
}

// pickUnclaimed returns the first new url that no prior token mentions, which is the
// row the user just edited. Urls already tracked by a create token belong to other rows.
func pickUnclaimed(newURLs []string, claimed, referenced map[string]bool) (string, bool) {
	for _, u := range newURLs {
		if !claimed[u] && !referenced[u] {
			return u, true
		}
	}
	return "", false
}

package scraper

import "context"

// Preview is what the edit surface shows for a freshly added link.
type Preview struct {
	Title       string
	Description string
}

// Previewer fetches a short preview of a link target.
type Previewer interface {
	Preview(ctx context.Context, url string) (Preview, error)
}

// Noop is a Previewer that never fetches anything.
type Noop struct{}

func (Noop) Preview(context.Context, string) (Preview, error) {
	return Preview{}, nil
}

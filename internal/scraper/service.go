package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

var ErrNoBrowser = errors.New("scraper: browser executable not found")

var descriptionSelectors = []string{
	`meta[name="description"]`,
	`meta[property="og:description"]`,
}

// RodScraper implements Previewer with a headless browser.
type RodScraper struct {
	log     logrus.FieldLogger
	timeout time.Duration
}

// NewRodScraper creates a previewer that gives each page at most timeout to load.
func NewRodScraper(timeout time.Duration, logger logrus.FieldLogger) *RodScraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RodScraper{
		log:     logger.WithField("component", "scraper"),
		timeout: timeout,
	}
}

// Preview loads url and extracts its title and meta description.
func (s *RodScraper) Preview(ctx context.Context, url string) (p Preview, err error) {
	log := s.log.WithField("url", url)

	// --- Browser Setup ---
	path, exists := launcher.LookPath()
	if !exists {
		return Preview{}, ErrNoBrowser
	}
	u, err := launcher.New().Bin(path).Launch()
	if err != nil {
		return Preview{}, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err = browser.Connect(); err != nil {
		return Preview{}, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Error closing rod browser instance")
		}
	}()

	// --- End Browser Setup ---

	pageCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	page, err := browser.Context(pageCtx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return Preview{}, fmt.Errorf("failed to create page: %w", err)
	}
	if err = page.WaitLoad(); err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			return Preview{}, fmt.Errorf("preview timed out for %s: %w", url, pageCtx.Err())
		}
		return Preview{}, fmt.Errorf("failed waiting for page load: %w", err)
	}

	if el, err := page.Element("title"); err == nil {
		if title, err := el.Text(); err == nil {
			p.Title = strings.TrimSpace(title)
		}
	}

	for _, selector := range descriptionSelectors {
		has, el, err := page.Has(selector)
		if err != nil || !has {
			continue
		}
		content, err := el.Attribute("content")
		if err == nil && content != nil && strings.TrimSpace(*content) != "" {
			p.Description = strings.TrimSpace(*content)
			break
		}
	}

	log.WithField("title", p.Title).Debug("Link preview fetched")
	return p, nil
}

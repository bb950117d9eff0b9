package scraper

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
)

// Listing is one raw result node with attribution attached.
type Listing struct {
	Title      string
	Price      string
	ImgURL     string
	ListingURL string
	Category   string
	Signer     string
	Confidence float64
}

// Result-node selectors for the search page markup.
const (
	itemSelector      = ".s-item"
	titleSelector     = ".s-item__title"
	priceSelector     = ".s-item__price"
	linkSelector      = ".s-item__link"
	imageSelector     = ".s-item__image-img"
	priceDefault      = "N/A"
	noiseTitleKeyword = "listing"
)

// extractListing pulls the raw fields out of one result node. Attribution and
// the discard filter are applied by the caller.
func extractListing(el *rod.Element) (Listing, error) {
	var out Listing

	titleEl, err := el.Element(titleSelector)
	if err != nil {
		return out, fmt.Errorf("title node: %w", err)
	}
	title, err := titleEl.Text()
	if err != nil {
		return out, fmt.Errorf("title text: %w", err)
	}
	out.Title = strings.TrimSpace(title)

	out.Price = priceDefault
	if priceEl, err := el.Element(priceSelector); err == nil {
		if txt, err := priceEl.Text(); err == nil && strings.TrimSpace(txt) != "" {
			out.Price = strings.TrimSpace(txt)
		}
	}

	if linkEl, err := el.Element(linkSelector); err == nil {
		if href, _ := linkEl.Attribute("href"); href != nil {
			out.ListingURL = NormalizeListingURL(*href)
		}
	}

	// Some nodes render the thumbnail outside the dedicated image class.
	if imgEl, err := el.Element(imageSelector); err == nil {
		if src, _ := imgEl.Attribute("src"); src != nil {
			out.ImgURL = *src
		}
	}
	if out.ImgURL == "" {
		if imgEl, err := el.Element("img"); err == nil {
			if src, _ := imgEl.Attribute("src"); src != nil {
				out.ImgURL = *src
			}
		}
	}

	return out, nil
}

// discardReason decides whether a raw node is kept. Empty titles and missing
// images signal placeholder nodes; a title containing "listing" is the
// marketplace's promotional filler, not an item. A node without a listing URL
// has no identity to dedup or upsert on, so it is dropped too.
func discardReason(title, imgURL, listingURL string) string {
	if strings.TrimSpace(title) == "" {
		return "missing_title"
	}
	if strings.Contains(strings.ToLower(title), noiseTitleKeyword) {
		return "noise_title"
	}
	if imgURL == "" {
		return "missing_image"
	}
	if listingURL == "" {
		return "missing_url"
	}
	return ""
}

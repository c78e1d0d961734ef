package scraper

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// NameNotFound is the sentinel stored when a wishlist or item title
	// cannot be located on the page.
	NameNotFound = "name not found"
	// ImageNotFound is the sentinel stored when an item has no image.
	ImageNotFound = "image not found"

	// CaptureTimeLayout is the wire format for item capture timestamps.
	CaptureTimeLayout = "2006-01-02 15:04:05"
)

// asinPattern matches the 10-character catalog code embedded in
// /dp/ and /gp/ product paths.
var asinPattern = regexp.MustCompile(`/[dg]p/([A-Z0-9]{10})(/|$|\?)`)

// priceCleanPattern keeps digits and the locale decimal comma.
var priceCleanPattern = regexp.MustCompile(`[^\d,]`)

// Item is one raw product record extracted from a wishlist page. ASIN
// and Price stay unresolved here; identity and uniqueness are the
// reconciler's concern.
type Item struct {
	Name       string
	Link       string
	Image      string
	ASIN       string // empty when no catalog code could be derived
	Price      *float64
	CapturedAt string // CaptureTimeLayout
}

// Page is the structured view of one rendered wishlist page.
type Page struct {
	ListName  string
	NameFound bool
	Items     []Item
	ErrorText string // text of the page-level error heading, empty if none
}

// Extractor parses rendered wishlist HTML into raw item records. Each
// item tile is processed in isolation: a broken tile is dropped, the
// rest of the page still parses.
type Extractor struct {
	baseURL string
	logger  *slog.Logger
}

func NewExtractor(baseURL string, logger *slog.Logger) *Extractor {
	return &Extractor{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("component", "extractor"),
	}
}

// ParsePage parses the full page: list name, error heading, and every
// inspectable item tile, in page order.
func (e *Extractor) ParsePage(html string, capturedAt time.Time) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{
		ErrorText: e.extractErrorHeading(doc),
	}
	page.ListName, page.NameFound = e.extractListName(doc)
	page.Items = e.extractItems(doc, capturedAt)

	e.logger.Debug("parsed page",
		"name_found", page.NameFound,
		"items", len(page.Items),
		"error_heading", page.ErrorText != "")

	return page, nil
}

func (e *Extractor) extractListName(doc *goquery.Document) (string, bool) {
	sel := doc.Find("span#profile-list-name").First()
	if sel.Length() == 0 {
		return NameNotFound, false
	}
	name := strings.TrimSpace(sel.Text())
	if name == "" {
		return NameNotFound, false
	}
	return name, true
}

func (e *Extractor) extractErrorHeading(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("h1.a-spacing-base").First().Text())
}

func (e *Extractor) extractItems(doc *goquery.Document, capturedAt time.Time) []Item {
	stamp := capturedAt.Format(CaptureTimeLayout)

	var items []Item
	doc.Find("li.g-item-sortable").Each(func(_ int, tile *goquery.Selection) {
		item, ok := e.extractItem(tile, stamp)
		if !ok {
			return
		}
		items = append(items, item)
	})
	return items
}

// extractItem pulls one item out of its tile. A tile without an anchor
// is not an inspectable product and is skipped; every other missing
// sub-field degrades to a sentinel or nil instead of failing the item.
func (e *Extractor) extractItem(tile *goquery.Selection, stamp string) (Item, bool) {
	anchor := tile.Find("a.a-link-normal").First()
	if anchor.Length() == 0 {
		return Item{}, false
	}

	item := Item{
		Name:       NameNotFound,
		Image:      ImageNotFound,
		CapturedAt: stamp,
	}

	if title, ok := anchor.Attr("title"); ok && title != "" {
		item.Name = title
	}

	href, _ := anchor.Attr("href")
	item.Link = e.baseURL + href
	item.ASIN = ExtractASIN(item.Link)

	if img := tile.Find("img").First(); img.Length() > 0 {
		if src, ok := img.Attr("src"); ok && src != "" {
			item.Image = src
		}
	}

	item.Price = e.extractPrice(tile)

	return item, true
}

func (e *Extractor) extractPrice(tile *goquery.Selection) *float64 {
	priceEl := tile.Find("span.a-price").First()
	if priceEl.Length() == 0 {
		return nil
	}
	span := priceEl.Find(`span[aria-hidden="true"]`).First()
	if span.Length() == 0 {
		return nil
	}
	return ParsePrice(span.Text())
}

// ParsePrice normalizes a locale-formatted price string ("R$ 1.234,56")
// to a float. Anything unparseable yields nil: an unobservable price is
// an expected outcome, not an error.
func ParsePrice(text string) *float64 {
	cleaned := priceCleanPattern.ReplaceAllString(strings.TrimSpace(text), "")
	if cleaned == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(cleaned, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &value
}

// ExtractASIN derives the 10-character catalog code from a product URL.
// Returns the empty string when the URL carries no /dp/ or /gp/ code.
func ExtractASIN(link string) string {
	match := asinPattern.FindStringSubmatch(link)
	if match == nil {
		return ""
	}
	return match[1]
}

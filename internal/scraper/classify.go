package scraper

import (
	"fmt"
	"strings"
)

// Status is the outcome class of one scrape attempt. The four variants
// are mutually exclusive and exhaustive.
type Status int

const (
	StatusUsable Status = iota
	StatusNotFound
	StatusEmptyOrPrivate
	StatusTransientError
)

func (s Status) String() string {
	switch s {
	case StatusUsable:
		return "usable"
	case StatusNotFound:
		return "not_found"
	case StatusEmptyOrPrivate:
		return "empty_or_private"
	case StatusTransientError:
		return "transient_error"
	default:
		return "unknown"
	}
}

// Result is the uniform envelope a scrape attempt resolves to.
// ListName and Items are only populated for StatusUsable; Message is
// only populated for the three failure variants.
type Result struct {
	Status   Status
	ListName string
	Items    []Item
	Message  string
}

// notFoundMarkers are the phrases the marketplace renders on its
// "this list does not exist" error heading. The Portuguese page says
// "A página não foi encontrada"; older variants omit the "foi".
var notFoundMarkers = []string{"não foi encontrada", "não encontrada", "not found"}

// Classify decides what a parsed page represents. It never fails: any
// page maps onto one of the four statuses.
func Classify(page *Page) Result {
	if isNotFoundHeading(page.ErrorText) {
		return Result{
			Status:  StatusNotFound,
			Message: "wishlist was not found or has been removed",
		}
	}

	// No name and no items is the page's signature for a private or
	// genuinely empty wishlist.
	if !page.NameFound && len(page.Items) == 0 {
		return Result{
			Status:  StatusEmptyOrPrivate,
			Message: "wishlist may be empty, private, or failed to load completely",
		}
	}

	return Result{
		Status:   StatusUsable,
		ListName: page.ListName,
		Items:    page.Items,
	}
}

// TransientFailure wraps an escaping scrape error (network, render
// timeout, unexpected page shape) into the transient result variant.
func TransientFailure(err error) Result {
	return Result{
		Status:  StatusTransientError,
		Message: fmt.Sprintf("scrape attempt failed: %v", err),
	}
}

func isNotFoundHeading(heading string) bool {
	if heading == "" {
		return false
	}
	lower := strings.ToLower(heading)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

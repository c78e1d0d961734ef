// Command scrape runs a single scrape attempt against a wishlist URL
// and prints the extracted items, without touching the database.
// Useful for checking selectors against a live page.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pricegrove/wishlist-tracker/internal/browser"
	"github.com/pricegrove/wishlist-tracker/internal/scraper"
)

func main() {
	var (
		url      = flag.String("url", "", "wishlist URL to scrape")
		host     = flag.String("host", "https://www.amazon.com.br", "marketplace base URL for relative product links")
		timeout  = flag.Duration("timeout", 30*time.Second, "per-scrape wait deadline")
		headless = flag.Bool("headless", true, "run the browser headless")
	)
	flag.Parse()

	if *url == "" {
		fmt.Fprintln(os.Stderr, "usage: scrape -url <wishlist url>")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	b, err := browser.New(&browser.Options{
		Headless: *headless,
		Timeout:  *timeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize browser: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	service := scraper.NewService(b, scraper.NewExtractor(*host, logger), *timeout, logger)

	start := time.Now()
	result := service.Scrape(context.Background(), *url)

	switch result.Status {
	case scraper.StatusUsable:
		fmt.Printf("Wishlist: %q (%d items)\n\n", result.ListName, len(result.Items))
		for _, item := range result.Items {
			fmt.Printf("Name:  %s\n", item.Name)
			fmt.Printf("ASIN:  %s\n", orDash(item.ASIN))
			fmt.Printf("Link:  %s\n", item.Link)
			fmt.Printf("Image: %s\n", item.Image)
			if item.Price != nil {
				fmt.Printf("Price: %.2f\n", *item.Price)
			} else {
				fmt.Printf("Price: unavailable\n")
			}
			fmt.Println("----------")
		}
	default:
		fmt.Fprintf(os.Stderr, "scrape failed (%s): %s\n", result.Status, result.Message)
	}

	fmt.Printf("\nTotal time: %.2fs\n", time.Since(start).Seconds())

	if result.Status != scraper.StatusUsable {
		os.Exit(1)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

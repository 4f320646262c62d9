package parser

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/spa-slots/internal/appointment"
)

const (
	RowSelector       = "a.table-row"
	cellSelector      = ".table-cell"
	treatmentSelector = ".one-line span"
	treatmentFallback = ".table-cell:nth-child(3)"
	ImageSelector     = "div#detail__main__layout__picture > img"
)

var (
	ErrInvalidHTML = errors.New("invalid HTML")

	templateIDPattern = regexp.MustCompile(`template/(\d+)`)
)

// BookingParser reads the shop's listing and treatment detail pages.
type BookingParser struct {
	base *url.URL
}

func NewBookingParser(baseURL string) (*BookingParser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", baseURL)
	}
	return &BookingParser{base: base}, nil
}

// ParseListing extracts one appointment per listing row. Rows missing a date,
// time or treatment are skipped.
func (p *BookingParser) ParseListing(html string) ([]appointment.Appointment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHTML, err)
	}

	appointments := make([]appointment.Appointment, 0)
	doc.Find(RowSelector).Each(func(i int, row *goquery.Selection) {
		cells := row.Find(cellSelector)

		treatmentEl := row.Find(treatmentSelector).First()
		if treatmentEl.Length() == 0 {
			treatmentEl = row.Find(treatmentFallback).First()
		}

		apt := appointment.Appointment{
			Date:      cleanText(cells.Eq(0).Text()),
			Time:      cleanText(cells.Eq(1).Text()),
			Treatment: cleanText(treatmentEl.Text()),
			Price:     cleanText(cells.Eq(3).Text()),
		}
		if apt.Date == "" || apt.Time == "" || apt.Treatment == "" {
			return
		}

		href, _ := row.Attr("href")
		apt.BookingURL = p.absolute(p.base, href)

		appointments = append(appointments, apt)
	})

	return appointments, nil
}

// ParseTreatmentImage returns the main picture of a treatment detail page,
// resolved against pageURL.
func (p *BookingParser) ParseTreatmentImage(html, pageURL string) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidHTML, err)
	}

	src, ok := doc.Find(ImageSelector).First().Attr("src")
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return "", false, nil
	}

	ref := p.base
	if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
		ref = u
	}
	return p.absolute(ref, src), true, nil
}

func (p *BookingParser) absolute(ref *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ref.String() + strings.TrimPrefix(href, "/")
	}
	return ref.ResolveReference(u).String()
}

// TemplateID returns the treatment template number in a booking URL.
func TemplateID(bookingURL string) (string, bool) {
	m := templateIDPattern.FindStringSubmatch(bookingURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package scrape

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"github.com/junpoanalyze/chips"
)

// AuthenticityToken returns the CSRF token of the sign-in form.
func AuthenticityToken(body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	return doc.Find(`input[name="authenticity_token"]`).First().Attr("value")
}

// ParseStores lists the options of the store selector. Placeholder options
// without a value are left out.
func ParseStores(body []byte) []chips.Store {
	stores := []chips.Store{}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return stores
	}
	doc.Find(`select[name="store_id"] option`).Each(func(_ int, option *goquery.Selection) {
		id, _ := option.Attr("value")
		if id == "" {
			return
		}
		stores = append(stores, chips.Store{
			Id:   chips.StoreId(id),
			Name: cellText(option),
		})
	})
	return stores
}

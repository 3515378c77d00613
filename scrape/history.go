// Package scrape turns upstream HTML pages into domain values.
package scrape

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/junpoanalyze/chips"
	"github.com/sirupsen/logrus"
)

// rowResult is either a parsed record or the reason the row was skipped.
type rowResult struct {
	record chips.HistoryRecord
	skip   string
}

func skipRow(format string, args ...interface{}) rowResult {
	return rowResult{skip: fmt.Sprintf(format, args...)}
}

// layout is one known shape of the history page.
type layout struct {
	name    string
	matches func(doc *goquery.Document) bool
	rows    func(doc *goquery.Document) []rowResult
}

// Checked in order. A page matching neither carries no history markup.
var layouts = []layout{
	{
		name: "sectioned",
		matches: func(doc *goquery.Document) bool {
			return doc.Find(sectionHeadingSelector).Length() > 0
		},
		rows: sectionedRows,
	},
	{
		name:    "tabular",
		matches: func(doc *goquery.Document) bool { return doc.Find("table tbody").Length() > 0 },
		rows:    tabularRows,
	},
}

// ParseHistory extracts every well-formed history row of the page. Rows that do
// not match the expected structure are skipped; the page itself never fails.
// The flag reports whether the page had a history layout at all: an empty
// month does, a sign in form or a maintenance notice does not.
func ParseHistory(body []byte) ([]chips.HistoryRecord, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logrus.WithError(err).Warningln("Could not read history document.")
		return []chips.HistoryRecord{}, false
	}

	var pageLayout layout
	for _, l := range layouts {
		if l.matches(doc) {
			pageLayout = l
			break
		}
	}
	if pageLayout.rows == nil {
		return []chips.HistoryRecord{}, false
	}

	results := pageLayout.rows(doc)
	records := make([]chips.HistoryRecord, 0, len(results))
	skipped := 0
	for _, result := range results {
		if result.skip != "" {
			skipped++
			logrus.
				WithField("layout", pageLayout.name).
				WithField("reason", result.skip).
				Debugln("Skipped history row.")
			continue
		}
		records = append(records, result.record)
	}
	if skipped > 0 {
		logrus.
			WithField("layout", pageLayout.name).
			WithField("skipped", skipped).
			WithField("parsed", len(records)).
			Infoln("History page had malformed rows.")
	}
	return records, true
}

const tabularCells = 7

func tabularRows(doc *goquery.Document) []rowResult {
	rows := doc.Find("table tbody tr")
	results := make([]rowResult, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		results = append(results, tabularRow(row))
	})
	return results
}

// Columns: date, ring, tournament, purchase, total change, balance, store.
func tabularRow(row *goquery.Selection) rowResult {
	cells := row.Find("td")
	if cells.Length() < tabularCells {
		return skipRow("expected %d cells, got %d", tabularCells, cells.Length())
	}
	text := func(i int) string {
		return cellText(cells.Eq(i))
	}

	date := text(0)
	if date == "" {
		return skipRow("empty date cell")
	}
	var numbers [5]int64
	for i := range numbers {
		n, err := ParseNumber(text(i + 1))
		if err != nil {
			return skipRow("column %d: %s", i+1, err)
		}
		numbers[i] = n
	}

	return rowResult{record: chips.HistoryRecord{
		Date:            date,
		StoreName:       text(6),
		RingChips:       numbers[0],
		TournamentChips: numbers[1],
		Purchase:        numbers[2],
		TotalChange:     numbers[3],
		CurrentBalance:  numbers[4],
	}}
}

const (
	sectionHeadingSelector = "div.histories-date"
	sectionStoreSelector   = "div.histories-store-name"
	sectionTableSelector   = ".histories-table"
)

var (
	headingDatePattern    = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
	headingBalancePattern = regexp.MustCompile(`([-−－]?[\d,]+)\s*ポイント`)
)

func sectionedRows(doc *goquery.Document) []rowResult {
	headings := doc.Find(sectionHeadingSelector)
	results := make([]rowResult, 0, headings.Length())
	headings.Each(func(_ int, heading *goquery.Selection) {
		results = append(results, sectionedRow(heading))
	})
	return results
}

// A section is a date heading followed by its siblings up to the next heading:
// an optional store name and a table whose second body row holds ring,
// tournament and purchase figures and whose footer ends with the net change.
func sectionedRow(heading *goquery.Selection) rowResult {
	headingText := cellText(heading)
	match := headingDatePattern.FindStringSubmatch(headingText)
	if match == nil {
		return skipRow("heading without date: %q", headingText)
	}
	month, _ := strconv.Atoi(match[2])
	day, _ := strconv.Atoi(match[3])
	date := fmt.Sprintf("%s-%02d-%02d", match[1], month, day)

	var balance int64
	if balanceMatch := headingBalancePattern.FindStringSubmatch(headingText); balanceMatch != nil {
		n, err := ParseNumber(balanceMatch[1])
		if err != nil {
			return skipRow("%s balance: %s", date, err)
		}
		balance = n
	}

	section := heading.NextUntil(sectionHeadingSelector)
	storeName := cellText(section.Filter(sectionStoreSelector).First())

	table := section.Filter(sectionTableSelector).First()
	if table.Length() == 0 {
		return skipRow("%s has no table", date)
	}
	rows := table.Find("tbody tr")
	if rows.Length() < 2 {
		return skipRow("%s table has %d body rows", date, rows.Length())
	}
	cells := rows.Eq(1).Find("td")
	if cells.Length() < 3 {
		return skipRow("%s data row has %d cells", date, cells.Length())
	}
	var figures [3]int64
	for i := range figures {
		n, err := ParseNumber(cellText(cells.Eq(i)))
		if err != nil {
			return skipRow("%s column %d: %s", date, i, err)
		}
		figures[i] = n
	}

	var totalChange int64
	if footer := table.Find("tfoot td"); footer.Length() > 0 {
		n, err := ParseNumber(cellText(footer.Last()))
		if err != nil {
			return skipRow("%s total change: %s", date, err)
		}
		totalChange = n
	}

	return rowResult{record: chips.HistoryRecord{
		Date:            date,
		StoreName:       storeName,
		RingChips:       figures[0],
		TournamentChips: figures[1],
		Purchase:        figures[2],
		TotalChange:     totalChange,
		CurrentBalance:  balance,
	}}
}

func cellText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

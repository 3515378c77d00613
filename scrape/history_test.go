package scrape

import (
	"testing"

	"github.com/junpoanalyze/chips"
	"github.com/stretchr/testify/assert"
)

const tabularPage = `<html><body>
<table class="table">
  <thead><tr><th>日付</th><th>リング</th><th>トーナメント</th><th>購入</th><th>増減</th><th>残高</th><th>店舗</th></tr></thead>
  <tbody>
    <tr><td> 2025-03-10 </td><td>+1,200</td><td>-300</td><td>0</td><td>+900</td><td>15,400</td><td> Store A </td></tr>
    <tr><td>2025-03-09</td><td>5</td></tr>
    <tr><td>2025-03-08</td><td></td><td>-</td><td>1,000pt</td><td>−1,000</td><td>14,500</td><td>Store A</td></tr>
    <tr><td>2025-03-07</td><td>1-2</td><td>0</td><td>0</td><td>0</td><td>0</td><td>Store A</td></tr>
  </tbody>
</table>
</body></html>`

const sectionedPage = `<html><body><div class="histories">
  <div class="histories-date">2025年3月10日 残高 15,400ポイント</div>
  <div class="histories-store-name"> Store A </div>
  <p class="note">unrelated</p>
  <table class="histories-table">
    <tbody>
      <tr><th>リング</th><th>トーナメント</th><th>購入</th></tr>
      <tr><td>+1,200</td><td>-300</td><td>0</td></tr>
    </tbody>
    <tfoot><tr><td>合計</td><td>+900</td></tr></tfoot>
  </table>

  <div class="histories-date">2025年3月9日 残高 14,500ポイント</div>
  <div class="histories-store-name">Store A</div>

  <div class="histories-date">2025年3月8日 残高 14,500ポイント</div>
  <table class="histories-table"><tbody><tr><td>only header</td></tr></tbody></table>

  <div class="histories-date">2025年3月5日 残高 14,500ポイント</div>
  <div class="histories-store-name">Store A</div>
  <table class="histories-table">
    <tbody>
      <tr><th>リング</th><th>トーナメント</th><th>購入</th></tr>
      <tr><td>+700</td><td>-100</td></tr>
    </tbody>
    <tfoot><tr><td>合計</td><td>+600</td></tr></tfoot>
  </table>

  <div class="histories-date">2025年3月1日 残高 3,000ポイント</div>
  <div class="histories-store-name">Store B</div>
  <table class="histories-table">
    <tbody>
      <tr><th>リング</th><th>トーナメント</th><th>購入</th></tr>
      <tr><td>500</td><td>0</td><td>2,000</td></tr>
    </tbody>
  </table>

  <div class="histories-date">お知らせ</div>
</div></body></html>`

func TestParseHistoryTabularLayout(t *testing.T) {
	assert := assert.New(t)

	records, _ := ParseHistory([]byte(tabularPage))
	assert.Equal([]chips.HistoryRecord{
		{
			Date:            "2025-03-10",
			StoreName:       "Store A",
			RingChips:       1200,
			TournamentChips: -300,
			Purchase:        0,
			TotalChange:     900,
			CurrentBalance:  15400,
		},
		{
			Date:            "2025-03-08",
			StoreName:       "Store A",
			RingChips:       0,
			TournamentChips: 0,
			Purchase:        1000,
			TotalChange:     -1000,
			CurrentBalance:  14500,
		},
	}, records)
}

func TestParseHistorySectionedLayout(t *testing.T) {
	assert := assert.New(t)

	records, _ := ParseHistory([]byte(sectionedPage))
	assert.Equal([]chips.HistoryRecord{
		{
			Date:            "2025-03-10",
			StoreName:       "Store A",
			RingChips:       1200,
			TournamentChips: -300,
			Purchase:        0,
			TotalChange:     900,
			CurrentBalance:  15400,
		},
		{
			Date:            "2025-03-01",
			StoreName:       "Store B",
			RingChips:       500,
			TournamentChips: 0,
			Purchase:        2000,
			TotalChange:     0,
			CurrentBalance:  3000,
		},
	}, records)
}

func TestParseHistoryWithoutRows(t *testing.T) {
	assert := assert.New(t)

	cases := []string{
		"",
		"<html><body><p>データがありません</p></body></html>",
		"<table><tbody></tbody></table>",
		"<<<not html",
	}
	for _, body := range cases {
		records, _ := ParseHistory([]byte(body))
		assert.NotNil(records, body)
		assert.Empty(records, body)
	}
}

func TestParseHistoryRecognizesLayout(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		body       string
		records    int
		recognized bool
	}{
		{tabularPage, 2, true},
		{sectionedPage, 2, true},
		{"<table><tbody></tbody></table>", 0, true},
		{`<div class="histories"><div class="histories-date">お知らせ</div></div>`, 0, true},
		{"", 0, false},
		{"<html><body><h1>メンテナンス中</h1></body></html>", 0, false},
		{`<form action="/users/sign_in"><input name="authenticity_token" value="abc"></form>`, 0, false},
	}
	for _, c := range cases {
		records, recognized := ParseHistory([]byte(c.body))
		assert.Len(records, c.records, c.body)
		assert.Equal(c.recognized, recognized, c.body)
	}
}

func TestParseNumber(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		text   string
		number int64
		err    bool
	}{
		{"+1,200", 1200, false},
		{"-300", -300, false},
		{"0", 0, false},
		{"15,400", 15400, false},
		{"", 0, false},
		{"-", 0, false},
		{"  pt ", 0, false},
		{"−1,000", -1000, false},
		{"－20", -20, false},
		{"1,000ポイント", 1000, false},
		{"1-2", 0, true},
		{"--5", 0, true},
	}
	for _, tc := range cases {
		n, err := ParseNumber(tc.text)
		if tc.err {
			assert.Error(err, tc.text)
			continue
		}
		if assert.NoError(err, tc.text) {
			assert.Equal(tc.number, n, tc.text)
		}
	}
}

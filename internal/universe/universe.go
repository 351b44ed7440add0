// Package universe fetches index constituent tickers from public reference
// pages.
package universe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"meanrev/internal/domain"
)

// indexSource describes where an index's constituent table lives and how to
// read it.
type indexSource struct {
	url     string
	columns []string // acceptable ticker column headers, in preference order
	suffix  string   // exchange suffix appended when a ticker lacks one
}

var sources = map[string]indexSource{
	domain.IndexSP500: {
		url:     "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies",
		columns: []string{"Symbol"},
	},
	domain.IndexDAX: {
		url:     "https://en.wikipedia.org/wiki/DAX",
		columns: []string{"Ticker", "Ticker symbol"},
		suffix:  ".DE",
	},
	domain.IndexFTSE100: {
		url:     "https://en.wikipedia.org/wiki/FTSE_100_Index",
		columns: []string{"Ticker", "EPIC"},
		suffix:  ".L",
	},
}

// Fetcher retrieves index constituents over HTTP.
type Fetcher struct {
	client *http.Client
	log    *slog.Logger
}

// NewFetcher creates a Fetcher with a bounded-timeout HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		log:    slog.Default().With("component", "universe"),
	}
}

// Constituents returns the ticker symbols of the named index, sorted and
// deduplicated. Failures are per-index; callers log them and continue with a
// partial universe.
func (f *Fetcher) Constituents(ctx context.Context, index string) ([]string, error) {
	src, ok := sources[index]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", index, err)
	}
	// The default Go user agent is rejected by some mirrors.
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s constituents: %w", index, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s constituents: status %d", index, resp.StatusCode)
	}

	tickers, err := parseConstituents(resp.Body, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s constituents: %w", index, err)
	}

	f.log.Info("fetched constituents", "index", index, "tickers", len(tickers))
	return tickers, nil
}

// ---------------------------------------------------------------------------
// HTML table extraction
// ---------------------------------------------------------------------------

var footnoteRe = regexp.MustCompile(`\[[^\]]*\]`)

// parseConstituents extracts the ticker column from the first table whose
// header row contains one of the acceptable column names.
func parseConstituents(r io.Reader, src indexSource) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	for _, table := range elementsByTag(doc, "table") {
		rows := elementsByTag(table, "tr")
		if len(rows) < 2 {
			continue
		}

		col := headerIndex(rows[0], src.columns)
		if col < 0 {
			continue
		}

		seen := make(map[string]struct{})
		var tickers []string
		for _, row := range rows[1:] {
			cells := elementsByTag(row, "td", "th")
			if len(cells) <= col {
				continue
			}
			ticker := cleanTicker(nodeText(cells[col]), src.suffix)
			if ticker == "" {
				continue
			}
			if _, dup := seen[ticker]; dup {
				continue
			}
			seen[ticker] = struct{}{}
			tickers = append(tickers, ticker)
		}

		if len(tickers) > 0 {
			sort.Strings(tickers)
			return tickers, nil
		}
	}

	return nil, fmt.Errorf("no table with a %v column", src.columns)
}

// headerIndex returns the position of the first header cell matching one of
// the wanted names, or -1.
func headerIndex(headerRow *html.Node, wanted []string) int {
	cells := elementsByTag(headerRow, "th", "td")
	for i, cell := range cells {
		text := strings.TrimSpace(nodeText(cell))
		for _, w := range wanted {
			if strings.EqualFold(text, w) {
				return i
			}
		}
	}
	return -1
}

// cleanTicker normalizes a raw table cell into a ticker symbol: footnote
// markers stripped, uppercased, exchange suffix appended when missing.
func cleanTicker(raw, suffix string) string {
	s := footnoteRe.ReplaceAllString(raw, "")
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if suffix != "" && !strings.HasSuffix(s, suffix) {
		s += suffix
	}
	return s
}

// elementsByTag returns all descendant elements of n with one of the given
// tag names, in document order. Nested tables are not descended into when
// collecting rows, so a cell containing its own table cannot leak rows.
func elementsByTag(n *html.Node, tags ...string) []*html.Node {
	var out []*html.Node
	var visit func(*html.Node, bool)
	visit = func(node *html.Node, root bool) {
		if !root && node.Type == html.ElementNode {
			for _, t := range tags {
				if node.Data == t {
					out = append(out, node)
					return
				}
			}
			if node.Data == "table" {
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c, false)
		}
	}
	visit(n, true)
	return out
}

// nodeText concatenates the text content of n with whitespace collapsed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

package universe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"meanrev/internal/domain"
)

const sp500Fixture = `
<html><body>
<table class="infobox"><tr><th>Founded</th><td>1957</td></tr></table>
<table class="wikitable sortable" id="constituents">
<tr><th>Symbol</th><th>Security</th><th>GICS Sector</th></tr>
<tr><td><a href="/MMM">MMM</a></td><td>3M</td><td>Industrials</td></tr>
<tr><td>AOS</td><td>A. O. Smith</td><td>Industrials</td></tr>
<tr><td>abt[1]</td><td>Abbott</td><td>Health Care</td></tr>
<tr><td>MMM</td><td>3M duplicate row</td><td>Industrials</td></tr>
</table>
</body></html>`

const daxFixture = `
<html><body>
<table class="wikitable">
<tr><th>Logo</th><th>Company</th><th>Ticker</th><th>Sector</th></tr>
<tr><td></td><td>Adidas</td><td>ADS</td><td>Apparel</td></tr>
<tr><td></td><td>Allianz</td><td>ALV.DE</td><td>Insurance</td></tr>
<tr><td></td><td>BASF</td><td>BAS</td><td>Chemicals</td></tr>
</table>
</body></html>`

func TestParseConstituentsSP500(t *testing.T) {
	got, err := parseConstituents(strings.NewReader(sp500Fixture), sources[domain.IndexSP500])
	if err != nil {
		t.Fatalf("parseConstituents: %v", err)
	}

	want := []string{"ABT", "AOS", "MMM"}
	if len(got) != len(want) {
		t.Fatalf("parseConstituents returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ticker[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseConstituentsSuffix(t *testing.T) {
	got, err := parseConstituents(strings.NewReader(daxFixture), sources[domain.IndexDAX])
	if err != nil {
		t.Fatalf("parseConstituents: %v", err)
	}

	// Suffix appended only where missing.
	want := []string{"ADS.DE", "ALV.DE", "BAS.DE"}
	if len(got) != len(want) {
		t.Fatalf("parseConstituents returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ticker[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseConstituentsNoColumn(t *testing.T) {
	page := `<html><body><table><tr><th>Name</th></tr><tr><td>Foo</td></tr></table></body></html>`
	if _, err := parseConstituents(strings.NewReader(page), sources[domain.IndexSP500]); err == nil {
		t.Error("parseConstituents succeeded on a page without a ticker column")
	}
}

func TestConstituents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sp500Fixture))
	}))
	defer srv.Close()

	orig := sources[domain.IndexSP500]
	patched := orig
	patched.url = srv.URL
	sources[domain.IndexSP500] = patched
	defer func() { sources[domain.IndexSP500] = orig }()

	f := NewFetcher()
	got, err := f.Constituents(context.Background(), domain.IndexSP500)
	if err != nil {
		t.Fatalf("Constituents: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Constituents returned %d tickers, want 3", len(got))
	}
}

func TestConstituentsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	orig := sources[domain.IndexFTSE100]
	patched := orig
	patched.url = srv.URL
	sources[domain.IndexFTSE100] = patched
	defer func() { sources[domain.IndexFTSE100] = orig }()

	f := NewFetcher()
	if _, err := f.Constituents(context.Background(), domain.IndexFTSE100); err == nil {
		t.Error("Constituents succeeded against a 403 response")
	}
}

func TestConstituentsUnknownIndex(t *testing.T) {
	f := NewFetcher()
	if _, err := f.Constituents(context.Background(), "NIKKEI"); err == nil {
		t.Error("Constituents accepted an unknown index")
	}
}

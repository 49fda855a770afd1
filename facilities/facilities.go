// Package facilities builds the nuclear facility reference layer. It
// queries Wikidata for every nuclear power plant and research reactor
// with a known location, merges points that describe the same site,
// and exports the result for the map client.
package facilities

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/muesli/reflow/truncate"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

const (
	defaultEndpoint = "https://query.wikidata.org/sparql"

	userAgent  = "radiationMap/1.0 (+https://github.com/digital-codes/radiationMap)"
	acceptJSON = "application/sparql-results+json"
)

// query selects nuclear power plants (Q1739545) and research reactors
// (Q1438105) that carry a coordinate, with country, a readable type
// string and the service dates Wikidata knows about.
const query = `SELECT DISTINCT ?country ?name ?item ?geo ?itemType ?types
                ?itemInception ?itemStarttime ?itemServiceentry
                ?itemServiceretirement ?itemEndtime
WITH {
  SELECT ?item WHERE {
    { ?item wdt:P31/wdt:P279* wd:Q1739545. }
    UNION { ?item wdt:P31/wdt:P279* wd:Q1438105. }
  }
} AS %allitems
WHERE {
  INCLUDE %allitems
  ?item wdt:P31/wdt:P279* wd:Q1739545.
  ?item wdt:P625 ?geo.
  ?item wdt:P31 ?itemType.

  OPTIONAL { ?item wdt:P17  ?itemCountry. }
  OPTIONAL { ?item wdt:P729 ?itemServiceentry. }
  OPTIONAL { ?item wdt:P730 ?itemServiceretirement. }
  OPTIONAL { ?item wdt:P582 ?itemEndtime. }
  OPTIONAL { ?item wdt:P571 ?itemInception. }
  OPTIONAL { ?item wdt:P580 ?itemStarttime. }

  BIND(IF(EXISTS {?item wdt:P31/wdt:P279* wd:Q134447},   "Nuclear power plant, ", "") AS ?type1)
  BIND(IF(EXISTS {?item wdt:P31/wdt:P279* wd:Q1438105},  "Nuclear research reactor, ", "") AS ?type2)
  BIND(IF(EXISTS {?item wdt:P31/wdt:P279* wd:Q21493801}, "Nuclear waste facility, ", "") AS ?type3)
  BIND(IF(EXISTS {?item wdt:P31/wdt:P279* wd:Q14510027}, "Fusion reactor, ", "") AS ?type4)
  BIND(IF(EXISTS {?item wdt:P31/wdt:P279* wd:Q1298668},  "Nuclear research project, ", "") AS ?type5)
  BIND(IF(EXISTS {?item wdt:P31/wdt:P279* wd:Q1229765},  "Vessel, ", "") AS ?type6)

  BIND(CONCAT(?type1, ?type2, ?type3, ?type4, ?type5, ?type6) AS ?typeConcat)
  BIND(IF(STRLEN(?typeConcat)=0, "Nuclear facility (unspecified), ", ?typeConcat) AS ?typeTmp)
  BIND(SUBSTR(?typeTmp, 1, STRLEN(?typeTmp)-2) AS ?types)

  SERVICE wikibase:label {
    bd:serviceParam wikibase:language "[AUTO_LANGUAGE],en".
    ?itemCountry rdfs:label ?country.
    ?item rdfs:label ?name.
  }
}
ORDER BY ?country ?name`

// Facility is one raw result row. All fields are the literal binding
// values; optional ones are empty when Wikidata has no statement.
type Facility struct {
	Item              string
	Name              string
	Country           string
	Types             string
	ItemType          string
	Geo               string
	Inception         string
	StartTime         string
	ServiceEntry      string
	ServiceRetirement string
	EndTime           string
}

type sparqlResponse struct {
	Results struct {
		Bindings []binding `json:"bindings"`
	} `json:"results"`
}

type binding map[string]struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (b binding) value(key string) string { return b[key].Value }

// Client runs SPARQL queries against the Wikidata query service.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(log *slog.Logger) *Client {
	return &Client{
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: time.Minute},
		log:        log,
	}
}

// Fetch runs the facility query and returns the raw rows.
func (c *Client) Fetch(ctx context.Context) ([]Facility, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", acceptJSON)
	req.Header.Set("User-Agent", userAgent)

	c.log.Info("querying wikidata", "endpoint", c.endpoint,
		"query", truncate.StringWithTail(strings.Join(strings.Fields(query), " "), 80, "..."))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query wikidata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query wikidata: unexpected status %s", resp.Status)
	}

	var decoded sparqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode sparql results: %w", err)
	}

	rows := make([]Facility, len(decoded.Results.Bindings))
	for i, b := range decoded.Results.Bindings {
		rows[i] = Facility{
			Item:              b.value("item"),
			Name:              b.value("name"),
			Country:           b.value("country"),
			Types:             b.value("types"),
			ItemType:          b.value("itemType"),
			Geo:               b.value("geo"),
			Inception:         b.value("itemInception"),
			StartTime:         b.value("itemStarttime"),
			ServiceEntry:      b.value("itemServiceentry"),
			ServiceRetirement: b.value("itemServiceretirement"),
			EndTime:           b.value("itemEndtime"),
		}
	}
	c.log.Info("fetched facilities", "rows", len(rows))
	return rows, nil
}

// point parses the row's P625 literal, a WKT point in lon/lat order.
func (f Facility) point() (orb.Point, error) {
	return wkt.UnmarshalPoint(f.Geo)
}

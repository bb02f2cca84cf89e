package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/zonemap/zonemap/pkg/common"
	"github.com/zonemap/zonemap/pkg/log"
	"github.com/zonemap/zonemap/pkg/types"
)

// gridAuthHeader carries the Electricity Maps API token.
const gridAuthHeader = "auth-token"

// Client fetches prices, grid snapshots, tariffs and emission datasets.
// Every call is a single GET without retries or caching, and every failure is
// returned as *Error.
type Client struct {
	priceAPIURL  string
	tariffAPIURL string
	gridAPIURL   string
	gridAPIToken string
	assetsURL    string
	client       *http.Client
}

// Configured sets up the Client based on flags.
func Configured() *Client {
	c := &Client{}
	priceURL := lflag.String("price-api-url", "https://frankfurt.corles.net", "Base URL of the day-ahead price API")
	tariffURL := lflag.String("tariff-api-url", "https://frankfurt.corles.net", "Base URL of the residential tariff search API")
	gridURL := lflag.String("grid-api-url", "https://api.electricitymap.org", "Base URL of the Electricity Maps API")
	gridToken := lflag.String("grid-api-token", os.Getenv("ELECTRICITYMAPS_TOKEN"), "Token for the Electricity Maps API (defaults to $ELECTRICITYMAPS_TOKEN)")
	assetsURL := lflag.String("assets-url", "http://127.0.0.1:8080", "Base URL serving /co2_data/{year}.json")
	timeout := lflag.Duration("http-timeout", 0, "Timeout for remote requests. 0 means no timeout.")

	lflag.Do(func() {
		c.priceAPIURL = *priceURL
		c.tariffAPIURL = *tariffURL
		c.gridAPIURL = *gridURL
		c.gridAPIToken = *gridToken
		c.assetsURL = *assetsURL
		c.client = common.HTTPClient(*timeout)
		if err := c.Validate(); err != nil {
			panic(fmt.Sprintf("remote client validation failed: %v", err))
		}
	})

	return c
}

// New returns a Client for the given base URLs. It is primarily used for
// testing.
func New(priceAPIURL, tariffAPIURL, gridAPIURL, gridAPIToken, assetsURL string, client *http.Client) *Client {
	if client == nil {
		client = common.HTTPClient(0)
	}
	return &Client{
		priceAPIURL:  priceAPIURL,
		tariffAPIURL: tariffAPIURL,
		gridAPIURL:   gridAPIURL,
		gridAPIToken: gridAPIToken,
		assetsURL:    assetsURL,
		client:       client,
	}
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	for name, raw := range map[string]string{
		"price-api-url":  c.priceAPIURL,
		"tariff-api-url": c.tariffAPIURL,
		"grid-api-url":   c.gridAPIURL,
		"assets-url":     c.assetsURL,
	} {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("failed to parse %s (%s): %w", name, raw, err)
		}
	}
	return nil
}

// FetchPriceSeries returns the price series of a bidding zone for a date
// (YYYY-MM-DD). An empty series is a valid answer.
func (c *Client) FetchPriceSeries(ctx context.Context, zone, date string) ([]types.PricePoint, error) {
	params := url.Values{}
	params.Set("date", date)
	params.Set("country_bidding_zone", zone)

	var series []types.PricePoint
	if err := c.getJSON(ctx, "price", c.priceAPIURL, "price_data", params, nil, &series); err != nil {
		return nil, err
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched price series",
		slog.String("zone", zone),
		slog.String("date", date),
		slog.Int("count", len(series)),
	)
	return series, nil
}

// FetchCarbonIntensity returns the latest carbon intensity of a zone.
func (c *Client) FetchCarbonIntensity(ctx context.Context, zone string) (types.CarbonIntensity, error) {
	params := url.Values{}
	params.Set("zone", zone)

	var ci types.CarbonIntensity
	if err := c.getJSON(ctx, "carbon intensity", c.gridAPIURL, "v3/carbon-intensity/latest", params, c.gridHeader(), &ci); err != nil {
		return types.CarbonIntensity{}, err
	}
	return ci, nil
}

// FetchPowerBreakdown returns the latest consumption breakdown of a zone.
func (c *Client) FetchPowerBreakdown(ctx context.Context, zone string) (types.PowerBreakdown, error) {
	params := url.Values{}
	params.Set("zone", zone)

	var pb types.PowerBreakdown
	if err := c.getJSON(ctx, "power breakdown", c.gridAPIURL, "v3/power-breakdown/latest", params, c.gridHeader(), &pb); err != nil {
		return types.PowerBreakdown{}, err
	}
	return pb, nil
}

// FetchTariffs runs a residential tariff search.
func (c *Client) FetchTariffs(ctx context.Context, country, zipcode, kwTotal string) ([]types.TariffRecord, error) {
	params := url.Values{}
	params.Set("country", country)
	params.Set("zipcode", zipcode)
	params.Set("kw_total", kwTotal)

	var records []types.TariffRecord
	if err := c.getJSON(ctx, "tariff", c.tariffAPIURL, "electricity", params, nil, &records); err != nil {
		return nil, err
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched tariffs",
		slog.String("country", country),
		slog.String("zipcode", zipcode),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// FetchYearlyEmissions returns the static CO2 dataset of a year.
func (c *Client) FetchYearlyEmissions(ctx context.Context, year int) ([]types.CountryEmission, error) {
	var rows []types.CountryEmission
	if err := c.getJSON(ctx, "emissions", c.assetsURL, "co2_data/"+strconv.Itoa(year)+".json", nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) gridHeader() http.Header {
	h := http.Header{}
	if c.gridAPIToken != "" {
		h.Set(gridAuthHeader, c.gridAPIToken)
	}
	return h
}

// getJSON issues one GET and decodes the JSON body into out. All failures are
// normalized into *Error.
func (c *Client) getJSON(ctx context.Context, what, base, path string, params url.Values, header http.Header, out any) error {
	u, err := url.Parse(base)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "invalid " + what + " api url", Err: err}
	}
	u = u.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "failed to create " + what + " request", Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	log.Ctx(ctx).DebugContext(ctx, "fetching "+what, slog.String("url", u.String()))
	resp, err := c.client.Do(req)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to fetch "+what, slog.Any("error", err))
		return &Error{Kind: KindNetwork, Message: "failed to fetch " + what, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: "failed to read " + what + " response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serverMsg := serverMessage(body)
		msg := serverMsg
		if msg == "" {
			msg = fmt.Sprintf("%s api returned status: %d", what, resp.StatusCode)
		}
		log.Ctx(ctx).WarnContext(
			ctx,
			what+" api returned error",
			slog.Int("status", resp.StatusCode),
			slog.String("message", msg),
		)
		return &Error{Kind: KindHTTP, Status: resp.StatusCode, Message: msg, ServerMessage: serverMsg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode "+what+" response", slog.Any("error", err))
		return &Error{Kind: KindParse, Status: resp.StatusCode, Message: "failed to decode " + what + " response", Err: err}
	}
	return nil
}

// serverMessage pulls the "error" field out of an error body, if any.
func serverMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return strings.TrimSpace(e.Error)
}

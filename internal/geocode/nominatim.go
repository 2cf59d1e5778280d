package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/jengzang/walkaround-go/internal/models"
)

// HTTPClient is the subset of *http.Client used by Nominatim
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NominatimConfig configures the Nominatim provider
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Nominatim is a Provider backed by a Nominatim-compatible /reverse endpoint
type Nominatim struct {
	baseURL   string
	userAgent string
	client    HTTPClient
}

// NewNominatim creates a Nominatim provider. A nil client uses an
// *http.Client with cfg.Timeout.
func NewNominatim(cfg NominatimConfig, client HTTPClient) *Nominatim {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    client,
	}
}

type nominatimResponse struct {
	Error       string           `json:"error"`
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

type nominatimAddress struct {
	Road          string `json:"road"`
	HouseNumber   string `json:"house_number"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Suburb        string `json:"suburb"`
	Quarter       string `json:"quarter"`
	Neighbourhood string `json:"neighbourhood"`
	State         string `json:"state"`
	Country       string `json:"country"`
	CountryCode   string `json:"country_code"`
	Postcode      string `json:"postcode"`
}

// ReverseGeocode implements Provider
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lng float64, locale language.Tag) (*models.Address, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 7, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', 7, 64))
	if locale != language.Und {
		q.Set("accept-language", locale.String())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build reverse request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reverse request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode reverse response: %w", err)
	}
	if payload.Error != "" {
		return nil, ErrNoResult
	}

	a := payload.Address
	return &models.Address{
		FeatureName:     payload.Name,
		AddressLine:     payload.DisplayName,
		AdminArea:       a.State,
		CountryName:     a.Country,
		CountryCode:     strings.ToUpper(a.CountryCode),
		Locality:        firstNonEmpty(a.City, a.Town, a.Village),
		SubLocality:     firstNonEmpty(a.Suburb, a.Quarter, a.Neighbourhood),
		Thoroughfare:    a.Road,
		SubThoroughfare: a.HouseNumber,
		PostalCode:      a.Postcode,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

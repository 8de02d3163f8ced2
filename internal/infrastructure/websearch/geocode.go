package websearch

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"apply-codes/internal/infrastructure/vendor"

	"go.uber.org/zap"
)

type Location struct {
	FormattedAddress string   `json:"formattedAddress"`
	PlaceID          string   `json:"placeId"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	Types            []string `json:"types"`
}

type Geocoder struct {
	client *vendor.Client
	apiKey string
}

func NewGeocoder(apiKey, baseURL string, logger *zap.Logger, opts ...vendor.Option) *Geocoder {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return &Geocoder{client: vendor.New(VendorGoogleMaps, baseURL, logger, opts...), apiKey: apiKey}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		PlaceID          string `json:"place_id"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		Types []string `json:"types"`
	} `json:"results"`
}

// geocodeStatus maps the API's in-body status to an HTTP status; the
// endpoint answers 200 even for rejected keys.
var geocodeStatus = map[string]int{
	"REQUEST_DENIED":   http.StatusForbidden,
	"OVER_QUERY_LIMIT": http.StatusTooManyRequests,
	"OVER_DAILY_LIMIT": http.StatusTooManyRequests,
	"INVALID_REQUEST":  http.StatusBadRequest,
	"UNKNOWN_ERROR":    http.StatusBadGateway,
}

func (g *Geocoder) Search(ctx context.Context, query string) ([]Location, error) {
	if g == nil {
		return nil, vendor.NotConfigured(VendorGoogleMaps)
	}
	q := url.Values{"address": {strings.TrimSpace(query)}, "key": {g.apiKey}}
	var resp geocodeResponse
	if err := g.client.Do(ctx, vendor.Request{Method: http.MethodGet, Path: "/maps/api/geocode/json", Query: q}, &resp); err != nil {
		return nil, err
	}
	if code, ok := geocodeStatus[resp.Status]; ok {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = resp.Status
		}
		return nil, &vendor.APIError{Vendor: VendorGoogleMaps, StatusCode: code, Message: msg}
	}

	out := make([]Location, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, Location{
			FormattedAddress: r.FormattedAddress,
			PlaceID:          r.PlaceID,
			Lat:              r.Geometry.Location.Lat,
			Lng:              r.Geometry.Location.Lng,
			Types:            r.Types,
		})
	}
	return out, nil
}

package druginfo

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"medid-server-go/internal/domain/druginfo/model"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
)

const (
	notAvailableName = "N/A"
	notAvailableText = "Not available."
)

type openFDAResponse struct {
	Results []openFDALabel `json:"results"`
}

type openFDALabel struct {
	OpenFDA struct {
		BrandName   []string `json:"brand_name"`
		GenericName []string `json:"generic_name"`
	} `json:"openfda"`
	Purpose             []string `json:"purpose"`
	Warnings            []string `json:"warnings"`
	IndicationsAndUsage []string `json:"indications_and_usage"`
}

func first(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}

func (l openFDALabel) summary() model.Label {
	return model.Label{
		BrandName:           first(l.OpenFDA.BrandName, notAvailableName),
		GenericName:         first(l.OpenFDA.GenericName, notAvailableName),
		Purpose:             first(l.Purpose, notAvailableText),
		Warnings:            first(l.Warnings, notAvailableText),
		IndicationsAndUsage: first(l.IndicationsAndUsage, notAvailableText),
	}
}

// Fetcher looks up one drug label upstream.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (model.Label, error)
}

// Client queries the openFDA drug label endpoint.
type Client struct {
	http   *resty.Client
	logger *logging.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: client, logger: logger}
}

// SearchQuery builds the openFDA search expression matching brand or
// generic name.
func SearchQuery(name string) string {
	return fmt.Sprintf(`(openfda.brand_name:"%s" OR openfda.generic_name:"%s")`, name, name)
}

func (c *Client) Fetch(ctx context.Context, name string) (model.Label, error) {
	c.logger.InfoTag("DRUGINFO", "Looking up drug label for %s", name)

	var out openFDAResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("search", SearchQuery(name)).
		SetQueryParam("limit", "1").
		SetResult(&out).
		Get("/drug/label.json")
	if err != nil {
		return model.Label{}, classifyTransport(err)
	}

	// openFDA answers 404 when the search matches nothing.
	if resp.StatusCode() == http.StatusNotFound {
		return model.Label{}, notFound(name)
	}
	if resp.IsError() {
		code := CodeAPIError
		if resp.StatusCode() == http.StatusTooManyRequests {
			code = CodeRateLimited
		}
		return model.Label{}, errors.New(errors.KindDrugInfo, "druginfo.fetch",
			fmt.Sprintf("API request failed with status code %d", resp.StatusCode())).WithCode(code)
	}
	if len(out.Results) == 0 {
		return model.Label{}, notFound(name)
	}
	return out.Results[0].summary(), nil
}

func notFound(name string) error {
	return errors.New(errors.KindDrugInfo, "druginfo.fetch",
		fmt.Sprintf("No information found for '%s'.", name)).WithCode(CodeNotFound)
}

func classifyTransport(err error) error {
	var netErr net.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.As(err, &netErr) && netErr.Timeout():
		return errors.Wrap(errors.KindTimeout, "druginfo.fetch", "Drug information request timed out", err).WithCode(CodeTimeout)
	case stderrors.As(err, &netErr):
		return errors.Wrap(errors.KindDrugInfo, "druginfo.fetch", "API request failed: network error", err).WithCode(CodeNetwork)
	default:
		return errors.Wrap(errors.KindDrugInfo, "druginfo.fetch", "API request failed", err).WithCode(CodeAPIError)
	}
}

package balances

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/kelsos/weave-sweep/internal/chain"
	"github.com/kelsos/weave-sweep/internal/client"
	"github.com/kelsos/weave-sweep/internal/config"
	"github.com/kelsos/weave-sweep/internal/logger"
	"github.com/kelsos/weave-sweep/internal/models"
)

// PageLimit is the single page size requested from the bank module.
// Further pages are never followed.
const PageLimit = 100

// FetchError is a non-fatal network failure for one address
type FetchError struct {
	Family  models.ChainFamily
	Address string
	URL     string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s balance for %s: %v", e.Family, e.Address, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result holds the standardized balances of one address
type Result struct {
	Address  string
	Family   models.ChainFamily
	Balances []models.StandardizedBalance
	// Empty is set when the API has no record of the address (404)
	Empty bool
	// Truncated is set when the bank module reported more pages
	Truncated bool
}

// Endpoints are the REST base URLs per family
type Endpoints struct {
	Initia   string
	Celestia string
}

// EndpointsFromConfig resolves the configured networks and overrides
func EndpointsFromConfig(cfg *config.Config) (Endpoints, error) {
	initia, err := chain.ResolveEndpoint(models.FamilyInitia, cfg.InitiaNetwork, cfg.InitiaAPIEndpoint)
	if err != nil {
		return Endpoints{}, err
	}
	celestia, err := chain.ResolveEndpoint(models.FamilyCelestia, cfg.CelestiaNetwork, cfg.CelestiaAPIEndpoint)
	if err != nil {
		return Endpoints{}, err
	}
	return Endpoints{Initia: initia, Celestia: celestia}, nil
}

// Fetcher queries balances from the Initia LCD and the Celenium API
type Fetcher struct {
	api       *client.APIClient
	endpoints Endpoints
}

func NewFetcher(api *client.APIClient, endpoints Endpoints) *Fetcher {
	return &Fetcher{api: api, endpoints: endpoints}
}

// Fetch classifies the address and queries the matching chain. Addresses with
// an unknown prefix are rejected before any request is made.
func (f *Fetcher) Fetch(ctx context.Context, address string) (*Result, error) {
	family, err := chain.Require(address)
	if err != nil {
		return nil, err
	}
	switch family {
	case models.FamilyInitia:
		return f.FetchInitia(ctx, address)
	default:
		return f.FetchCelestia(ctx, address)
	}
}

func (f *Fetcher) FetchInitia(ctx context.Context, address string) (*Result, error) {
	endpoint := client.BuildURL(f.endpoints.Initia, "/cosmos/bank/v1beta1/balances/"+url.PathEscape(address))
	endpoint = client.BuildURLWithParams(endpoint, map[string]string{
		"pagination.limit": strconv.Itoa(PageLimit),
	})

	result := &Result{Address: address, Family: models.FamilyInitia}

	var resp models.InitiaBalanceResponse
	if err := f.api.Get(ctx, endpoint, &resp); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			result.Empty = true
			return result, nil
		}
		return nil, &FetchError{Family: models.FamilyInitia, Address: address, URL: endpoint, Err: err}
	}

	balances, err := NormalizeInitia(resp.Balances)
	if err != nil {
		return nil, &FetchError{Family: models.FamilyInitia, Address: address, URL: endpoint, Err: err}
	}
	result.Balances = balances

	if resp.Pagination != nil && resp.Pagination.NextKey != nil && *resp.Pagination.NextKey != "" {
		result.Truncated = true
		logger.Warn("Balances for %s exceed %d denoms (total %s); only the first page is used", address, PageLimit, resp.Pagination.Total)
	}

	return result, nil
}

func (f *Fetcher) FetchCelestia(ctx context.Context, address string) (*Result, error) {
	endpoint := client.BuildURL(f.endpoints.Celestia, "/v1/address/"+url.PathEscape(address))

	result := &Result{Address: address, Family: models.FamilyCelestia}

	var resp models.CelestiaAddressResponse
	if err := f.api.Get(ctx, endpoint, &resp); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			result.Empty = true
			return result, nil
		}
		return nil, &FetchError{Family: models.FamilyCelestia, Address: address, URL: endpoint, Err: err}
	}

	balances, err := NormalizeCelestia(&resp)
	if err != nil {
		return nil, &FetchError{Family: models.FamilyCelestia, Address: address, URL: endpoint, Err: err}
	}
	result.Balances = balances
	return result, nil
}

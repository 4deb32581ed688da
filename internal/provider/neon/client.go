package neon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prospectiq/donorsync-worker/internal/models"
	"github.com/prospectiq/donorsync-worker/internal/provider"
)

const ProviderName = "neon"

// Adapter pulls constituents and donations from the Neon-style CRM REST API.
// The credential is the account's API key, sent on every request.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
}

func NewAdapter(baseURL string) *Adapter {
	return &Adapter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (a *Adapter) Provider() string {
	return ProviderName
}

func (a *Adapter) Kinds() []provider.RecordKind {
	return []provider.RecordKind{provider.KindConstituents, provider.KindDonations}
}

// listResponse is the envelope shared by the CRM's list endpoints.
type listResponse struct {
	Results    []provider.RawRecord `json:"results"`
	Pagination struct {
		CurrentPage int `json:"currentPage"`
		TotalPages  int `json:"totalPages"`
	} `json:"pagination"`
}

// Fetch returns an iterator over page-numbered batches for the given kind.
func (a *Adapter) Fetch(ctx context.Context, credential string, kind provider.RecordKind, batchSize int) (provider.BatchIterator, error) {
	var path string
	switch kind {
	case provider.KindConstituents:
		path = "/v1/constituents"
	case provider.KindDonations:
		path = "/v1/donations"
	default:
		return nil, fmt.Errorf("unsupported record kind: %s", kind)
	}

	return &pageIterator{
		adapter:   a,
		apiKey:    credential,
		path:      path,
		batchSize: batchSize,
	}, nil
}

// pageIterator holds the pagination cursor for one fetch sequence.
type pageIterator struct {
	adapter   *Adapter
	apiKey    string
	path      string
	batchSize int
	page      int
	done      bool
}

func (it *pageIterator) Next(ctx context.Context) ([]provider.RawRecord, error) {
	if it.done {
		return nil, nil
	}

	url := fmt.Sprintf("%s%s?page=%d&pageSize=%d", it.adapter.baseURL, it.path, it.page, it.batchSize)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", it.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := it.adapter.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("credential rejected by provider (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	it.page++
	if it.page >= list.Pagination.TotalPages || len(list.Results) == 0 {
		it.done = true
	}

	return list.Results, nil
}

// MapConstituent maps a raw CRM constituent to the normalized record.
func (a *Adapter) MapConstituent(raw provider.RawRecord) (models.Constituent, error) {
	externalID := stringField(raw, "constituentId")
	if externalID == "" {
		return models.Constituent{}, fmt.Errorf("constituent record missing constituentId")
	}

	fullName := stringField(raw, "fullName")
	if fullName == "" {
		first := stringField(raw, "firstName")
		last := stringField(raw, "lastName")
		switch {
		case first != "" && last != "":
			fullName = first + " " + last
		case last != "":
			fullName = last
		default:
			fullName = first
		}
	}

	return models.Constituent{
		ExternalID: externalID,
		FullName:   fullName,
		Email:      optionalField(raw, "email"),
		Phone:      optionalField(raw, "phone"),
		City:       optionalField(raw, "city"),
		State:      optionalField(raw, "stateProvince"),
		PostalCode: optionalField(raw, "zipCode"),
		RawPayload: models.JSONB(raw),
	}, nil
}

// MapDonation maps a raw CRM donation to the normalized record.
func (a *Adapter) MapDonation(raw provider.RawRecord) (models.Donation, error) {
	externalID := stringField(raw, "donationId")
	if externalID == "" {
		return models.Donation{}, fmt.Errorf("donation record missing donationId")
	}

	amount, ok := floatField(raw, "amount")
	if !ok {
		return models.Donation{}, fmt.Errorf("donation %s missing amount", externalID)
	}

	donatedAt, err := dateField(raw, "date")
	if err != nil {
		return models.Donation{}, fmt.Errorf("donation %s: %w", externalID, err)
	}

	currency := stringField(raw, "currency")
	if currency == "" {
		currency = "USD"
	}

	return models.Donation{
		ExternalID:            externalID,
		ConstituentExternalID: optionalField(raw, "constituentId"),
		Amount:                amount,
		Currency:              currency,
		DonatedAt:             donatedAt,
		Category:              mapDonationType(stringField(raw, "donationType")),
		Campaign:              optionalField(raw, "campaignName"),
		RawPayload:            models.JSONB(raw),
	}, nil
}

// mapDonationType folds the CRM's donation types onto the normalized categories.
func mapDonationType(t string) *string {
	var category string
	switch t {
	case "recurring", "sustainer":
		category = models.DonationCategoryRecurring
	case "pledge", "pledge_payment":
		category = models.DonationCategoryPledge
	case "in_kind":
		category = models.DonationCategoryInKind
	case "grant":
		category = models.DonationCategoryGrant
	case "":
		return nil
	default:
		category = models.DonationCategoryOneTime
	}
	return &category
}

func stringField(raw provider.RawRecord, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func optionalField(raw provider.RawRecord, key string) *string {
	if v, ok := raw[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

func floatField(raw provider.RawRecord, key string) (float64, bool) {
	switch v := raw[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func dateField(raw provider.RawRecord, key string) (time.Time, error) {
	s := stringField(raw, key)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing %s", key)
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable %s %q", key, s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

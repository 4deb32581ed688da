package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/prospectiq/donorsync-worker/internal/models"
	"github.com/prospectiq/donorsync-worker/internal/provider"
)

const ProviderName = "sheets"

// Tab layouts the adapter expects, header in row 1:
//
//	Constituents: id | full_name | email | phone | city | state | postal_code
//	Donations:    id | constituent_id | amount | currency | date | category | campaign
const (
	constituentsTab = "Constituents"
	donationsTab    = "Donations"
)

// Adapter reads donor lists that small organizations maintain as Google
// Sheets. The credential is a JSON blob carrying the spreadsheet ID and an
// OAuth access token; the engine never looks inside it.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Provider() string {
	return ProviderName
}

func (a *Adapter) Kinds() []provider.RecordKind {
	return []provider.RecordKind{provider.KindConstituents, provider.KindDonations}
}

type credential struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	AccessToken   string `json:"access_token"`
}

// Fetch returns an iterator over row-range batches of the kind's tab.
func (a *Adapter) Fetch(ctx context.Context, secret string, kind provider.RecordKind, batchSize int) (provider.BatchIterator, error) {
	var cred credential
	if err := json.Unmarshal([]byte(secret), &cred); err != nil {
		return nil, fmt.Errorf("malformed sheets credential: %w", err)
	}
	if cred.SpreadsheetID == "" || cred.AccessToken == "" {
		return nil, fmt.Errorf("sheets credential missing spreadsheet_id or access_token")
	}

	var tab string
	switch kind {
	case provider.KindConstituents:
		tab = constituentsTab
	case provider.KindDonations:
		tab = donationsTab
	default:
		return nil, fmt.Errorf("unsupported record kind: %s", kind)
	}

	token := &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
	}
	svc, err := sheetsapi.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}

	return &rowIterator{
		svc:           svc,
		spreadsheetID: cred.SpreadsheetID,
		tab:           tab,
		kind:          kind,
		batchSize:     batchSize,
		nextRow:       2, // row 1 is the header
	}, nil
}

// rowIterator pages through a tab by row ranges.
type rowIterator struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	tab           string
	kind          provider.RecordKind
	batchSize     int
	nextRow       int
	done          bool
}

func (it *rowIterator) Next(ctx context.Context) ([]provider.RawRecord, error) {
	if it.done {
		return nil, nil
	}

	lastRow := it.nextRow + it.batchSize - 1
	readRange := fmt.Sprintf("%s!A%d:G%d", it.tab, it.nextRow, lastRow)

	resp, err := it.svc.Spreadsheets.Values.Get(it.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", readRange, err)
	}

	records := make([]provider.RawRecord, 0, len(resp.Values))
	for _, row := range resp.Values {
		records = append(records, rowToRecord(it.kind, row))
	}

	it.nextRow = lastRow + 1
	if len(records) < it.batchSize {
		it.done = true
	}

	return records, nil
}

// rowToRecord converts a sheet row into a keyed raw record so the Map
// functions (and the stored raw payload) see named fields, not positions.
func rowToRecord(kind provider.RecordKind, row []interface{}) provider.RawRecord {
	var columns []string
	if kind == provider.KindConstituents {
		columns = []string{"id", "full_name", "email", "phone", "city", "state", "postal_code"}
	} else {
		columns = []string{"id", "constituent_id", "amount", "currency", "date", "category", "campaign"}
	}

	record := make(provider.RawRecord, len(columns))
	for i, col := range columns {
		if i < len(row) {
			record[col] = fmt.Sprintf("%v", row[i])
		}
	}
	return record
}

// MapConstituent maps a keyed sheet row to the normalized record.
func (a *Adapter) MapConstituent(raw provider.RawRecord) (models.Constituent, error) {
	externalID := cell(raw, "id")
	if externalID == "" {
		return models.Constituent{}, fmt.Errorf("constituent row missing id")
	}
	fullName := cell(raw, "full_name")
	if fullName == "" {
		return models.Constituent{}, fmt.Errorf("constituent %s missing full_name", externalID)
	}

	return models.Constituent{
		ExternalID: externalID,
		FullName:   fullName,
		Email:      optionalCell(raw, "email"),
		Phone:      optionalCell(raw, "phone"),
		City:       optionalCell(raw, "city"),
		State:      optionalCell(raw, "state"),
		PostalCode: optionalCell(raw, "postal_code"),
		RawPayload: models.JSONB(raw),
	}, nil
}

// MapDonation maps a keyed sheet row to the normalized record.
func (a *Adapter) MapDonation(raw provider.RawRecord) (models.Donation, error) {
	externalID := cell(raw, "id")
	if externalID == "" {
		return models.Donation{}, fmt.Errorf("donation row missing id")
	}

	amountCell := strings.ReplaceAll(cell(raw, "amount"), ",", "")
	amountCell = strings.TrimPrefix(amountCell, "$")
	amount, err := strconv.ParseFloat(amountCell, 64)
	if err != nil {
		return models.Donation{}, fmt.Errorf("donation %s has unparseable amount %q", externalID, cell(raw, "amount"))
	}

	donatedAt, err := parseDate(cell(raw, "date"))
	if err != nil {
		return models.Donation{}, fmt.Errorf("donation %s: %w", externalID, err)
	}

	currency := cell(raw, "currency")
	if currency == "" {
		currency = "USD"
	}

	return models.Donation{
		ExternalID:            externalID,
		ConstituentExternalID: optionalCell(raw, "constituent_id"),
		Amount:                amount,
		Currency:              currency,
		DonatedAt:             donatedAt,
		Category:              optionalCell(raw, "category"),
		Campaign:              optionalCell(raw, "campaign"),
		RawPayload:            models.JSONB(raw),
	}, nil
}

func cell(raw provider.RawRecord, key string) string {
	if v, ok := raw[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func optionalCell(raw provider.RawRecord, key string) *string {
	if v := cell(raw, key); v != "" {
		return &v
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range []string{"2006-01-02", "01/02/2006", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

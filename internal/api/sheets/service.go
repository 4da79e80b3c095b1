package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"casaspese/internal/core"
)

// valuesAPI is the slice of the Sheets values API the client uses.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, values [][]any) error
}

type googleValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (g *googleValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, apiError(err))
	}
	return resp.Values, nil
}

func (g *googleValues) Update(ctx context.Context, rng string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", rng, apiError(err))
	}
	return nil
}

// apiError turns a googleapi failure into a core.APIError so callers can
// classify it like any other server answer.
func apiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%w: %w", &core.APIError{Status: gerr.Code, Message: gerr.Message}, err)
	}
	return err
}

// Credentials selects the service account key, inline JSON first.
type Credentials struct {
	JSON string
	File string
}

func (c Credentials) load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(c.JSON), nil
	case strings.TrimSpace(c.File) != "":
		b, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func newService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	key, err := creds.load()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(key),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

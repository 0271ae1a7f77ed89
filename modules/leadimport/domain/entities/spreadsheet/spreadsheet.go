package spreadsheet

import (
	"context"
	"time"
)

// Info is spreadsheet level metadata.
type Info struct {
	ID         string
	Title      string
	SheetNames []string
}

// File is one entry of the account's spreadsheet listing.
type File struct {
	ID           string
	Name         string
	ModifiedTime time.Time
}

// Token is an OAuth grant returned by the provider.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scopes       []string
}

// Provider is the external spreadsheet service. All calls block on the
// network and honour ctx cancellation.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
	AccountEmail(ctx context.Context, accessToken string) (string, error)
	ListSpreadsheets(ctx context.Context, accessToken string) ([]File, error)
	Metadata(ctx context.Context, accessToken, spreadsheetID string) (*Info, error)
	// ReadValues returns the raw cell grid of sheetName, or of the first tab
	// when sheetName is empty.
	ReadValues(ctx context.Context, accessToken, spreadsheetID, sheetName string) ([][]string, error)
}

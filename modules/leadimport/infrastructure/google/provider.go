package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	oauthapi "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
	"github.com/jacksonlee411/leadimport/pkg/configuration"
)

var Scopes = []string{
	sheets.SpreadsheetsReadonlyScope,
	drive.DriveMetadataReadonlyScope,
	oauthapi.UserinfoEmailScope,
}

const (
	spreadsheetMimeQuery = "mimeType='application/vnd.google-apps.spreadsheet' and trashed=false"
	listPageSize         = 100
	defaultSheetName     = "Sheet1"
	untitled             = "Untitled"
	defaultTokenLifetime = time.Hour
)

var tracer = otel.Tracer("leadimport-google")

type Options struct {
	Google configuration.GoogleOptions
	// APIEndpoint overrides the sheets, drive and userinfo base URL.
	APIEndpoint string
	// AuthEndpoint overrides the OAuth endpoints.
	AuthEndpoint *oauth2.Endpoint
	HTTPClient   *http.Client
}

// Provider talks to Google Sheets and Drive on behalf of a connected user.
type Provider struct {
	oauth    *oauth2.Config
	endpoint string
	client   *http.Client
	now      func() time.Time
}

func NewProvider(opts Options) *Provider {
	endpoint := googleoauth.Endpoint
	if opts.AuthEndpoint != nil {
		endpoint = *opts.AuthEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     opts.Google.ClientID,
			ClientSecret: opts.Google.ClientSecret,
			RedirectURL:  opts.Google.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
		endpoint: opts.APIEndpoint,
		client:   client,
		now:      time.Now,
	}
}

// AuthCodeURL asks for offline access with forced consent so Google always
// hands out a refresh token.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *Provider) Exchange(ctx context.Context, code string) (tok *spreadsheet.Token, err error) {
	ctx, end := p.span(ctx, "exchange")
	defer func() { end(err) }()

	t, err := p.oauth.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, errors.Wrap(err, "exchange authorization code")
	}
	return p.toToken(t), nil
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (tok *spreadsheet.Token, err error) {
	ctx, end := p.span(ctx, "refresh")
	defer func() { end(err) }()

	if refreshToken == "" {
		return nil, errors.New("no refresh token stored")
	}
	t, err := p.oauth.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, errors.Wrap(err, "refresh access token")
	}
	return p.toToken(t), nil
}

func (p *Provider) AccountEmail(ctx context.Context, accessToken string) (email string, err error) {
	ctx, end := p.span(ctx, "account_email")
	defer func() { end(err) }()

	svc, err := oauthapi.NewService(ctx, p.clientOptions(ctx, accessToken)...)
	if err != nil {
		return "", errors.Wrap(err, "create userinfo client")
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", errors.Wrap(err, "get userinfo")
	}
	if info.Email == "" {
		return "", errors.New("userinfo has no email")
	}
	return info.Email, nil
}

func (p *Provider) ListSpreadsheets(ctx context.Context, accessToken string) (files []spreadsheet.File, err error) {
	ctx, end := p.span(ctx, "list_spreadsheets")
	defer func() { end(err) }()

	svc, err := drive.NewService(ctx, p.clientOptions(ctx, accessToken)...)
	if err != nil {
		return nil, errors.Wrap(err, "create drive client")
	}
	res, err := svc.Files.List().
		Q(spreadsheetMimeQuery).
		Fields("files(id, name, modifiedTime)").
		OrderBy("modifiedTime desc").
		PageSize(listPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "list drive files")
	}
	files = make([]spreadsheet.File, 0, len(res.Files))
	for _, f := range res.Files {
		modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
		files = append(files, spreadsheet.File{ID: f.Id, Name: f.Name, ModifiedTime: modified})
	}
	return files, nil
}

func (p *Provider) Metadata(ctx context.Context, accessToken, spreadsheetID string) (info *spreadsheet.Info, err error) {
	ctx, end := p.span(ctx, "metadata", attribute.String("spreadsheet.id", spreadsheetID))
	defer func() { end(err) }()

	svc, err := p.sheets(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return p.metadata(ctx, svc, spreadsheetID)
}

func (p *Provider) ReadValues(ctx context.Context, accessToken, spreadsheetID, sheetName string) (values [][]string, err error) {
	ctx, end := p.span(ctx, "read_values", attribute.String("spreadsheet.id", spreadsheetID))
	defer func() { end(err) }()

	svc, err := p.sheets(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if sheetName == "" {
		info, err := p.metadata(ctx, svc, spreadsheetID)
		if err != nil {
			return nil, err
		}
		sheetName = defaultSheetName
		if len(info.SheetNames) > 0 {
			sheetName = info.SheetNames[0]
		}
	}
	res, err := svc.Spreadsheets.Values.Get(spreadsheetID, quoteSheetName(sheetName)).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrapf(err, "read values of %q", sheetName)
	}
	values = make([][]string, len(res.Values))
	for i, row := range res.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		values[i] = cells
	}
	return values, nil
}

func (p *Provider) metadata(ctx context.Context, svc *sheets.Service, spreadsheetID string) (*spreadsheet.Info, error) {
	res, err := svc.Spreadsheets.Get(spreadsheetID).
		Fields("properties.title", "sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "get spreadsheet")
	}
	info := &spreadsheet.Info{ID: spreadsheetID, Title: untitled}
	if res.Properties != nil && res.Properties.Title != "" {
		info.Title = res.Properties.Title
	}
	for _, s := range res.Sheets {
		if s.Properties != nil {
			info.SheetNames = append(info.SheetNames, s.Properties.Title)
		}
	}
	return info, nil
}

func (p *Provider) sheets(ctx context.Context, accessToken string) (*sheets.Service, error) {
	svc, err := sheets.NewService(ctx, p.clientOptions(ctx, accessToken)...)
	if err != nil {
		return nil, errors.Wrap(err, "create sheets client")
	}
	return svc, nil
}

func (p *Provider) clientOptions(ctx context.Context, accessToken string) []option.ClientOption {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(p.clientContext(ctx), src))}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	return opts
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

func (p *Provider) toToken(t *oauth2.Token) *spreadsheet.Token {
	expiry := t.Expiry
	if expiry.IsZero() {
		expiry = p.now().Add(defaultTokenLifetime)
	}
	tok := &spreadsheet.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       expiry,
	}
	if scope, ok := t.Extra("scope").(string); ok && scope != "" {
		tok.Scopes = strings.Fields(scope)
	}
	return tok
}

func (p *Provider) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "google."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observeCall(op, result, time.Since(start))
		span.End()
	}
}

// quoteSheetName renders a tab name as an A1 range covering the whole tab.
func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/connection"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
	"github.com/jacksonlee411/leadimport/pkg/composables"
	"github.com/jacksonlee411/leadimport/pkg/eventbus"
)

type ConnectionOptions struct {
	StateTTL        time.Duration
	RefreshSkew     time.Duration
	ProviderTimeout time.Duration
	TxRunner        TxRunner
	Now             func() time.Time
}

type ConnectionStatus struct {
	IsConnected bool
	GoogleEmail string
	ConnectedAt *time.Time
}

// ConnectionService owns the OAuth delegation lifecycle of a user's Google
// account.
type ConnectionService struct {
	repo      connection.Repository
	states    connection.StateStore
	provider  spreadsheet.Provider
	publisher eventbus.EventBus
	opts      ConnectionOptions
	inTx      TxRunner
	refreshes singleflight.Group
}

func NewConnectionService(
	repo connection.Repository,
	states connection.StateStore,
	provider spreadsheet.Provider,
	publisher eventbus.EventBus,
	opts ConnectionOptions,
) *ConnectionService {
	if opts.StateTTL <= 0 {
		opts.StateTTL = 10 * time.Minute
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ConnectionService{
		repo:      repo,
		states:    states,
		provider:  provider,
		publisher: publisher,
		opts:      opts,
		inTx:      defaultTxRunner(opts.TxRunner),
	}
}

// BeginAuthorization mints a single use state for the user and returns the
// provider consent URL carrying it.
func (s *ConnectionService) BeginAuthorization(ctx context.Context, userID string, tenantID uuid.UUID) (string, error) {
	if err := identityError(userID, tenantID); err != nil {
		return "", err
	}
	state, err := connection.NewState(userID, tenantID, s.opts.Now(), s.opts.StateTTL)
	if err != nil {
		return "", errors.Wrap(err, "generate oauth state")
	}
	if err := s.states.Save(ctx, state); err != nil {
		return "", errors.Wrap(err, "save oauth state")
	}
	return s.provider.AuthCodeURL(state.Value), nil
}

// CompleteAuthorization consumes state, exchanges code and stores the
// resulting grant for the user that started the flow.
func (s *ConnectionService) CompleteAuthorization(ctx context.Context, code, state string) (*connection.Connection, error) {
	logger := composables.UseLogger(ctx)
	if state == "" {
		return nil, ErrInvalidState
	}
	pending, err := s.states.Consume(ctx, state, s.opts.Now())
	if err != nil {
		if errors.Is(err, connection.ErrStateNotFound) {
			return nil, ErrInvalidState
		}
		return nil, err
	}
	if code == "" {
		return nil, ErrExchangeFailed
	}

	pctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	tok, err := s.provider.Exchange(pctx, code)
	if err != nil {
		logger.WithError(err).Warn("google token exchange failed")
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	email, err := s.provider.AccountEmail(pctx, tok.AccessToken)
	if err != nil {
		logger.WithError(err).Warn("failed to read google account email")
		email = connection.UnknownEmail
	}

	ctx = composables.WithTenantID(ctx, pending.TenantID)
	conn := connection.New(pending.TenantID, pending.UserID, email, tok, s.opts.Now())
	if err := s.inTx(ctx, func(txCtx context.Context) error {
		return s.repo.Upsert(txCtx, conn)
	}); err != nil {
		return nil, errors.Wrap(err, "save google connection")
	}

	s.publisher.Publish(&connection.ConnectedEvent{
		TenantID: pending.TenantID,
		UserID:   pending.UserID,
		Email:    email,
	})
	return conn, nil
}

// GetValidAccessToken returns a usable access token, refreshing it once when
// it expires within the refresh skew. ok is false when the user has no
// connection or the refresh was rejected.
func (s *ConnectionService) GetValidAccessToken(ctx context.Context, userID string, tenantID uuid.UUID) (string, bool, error) {
	if err := identityError(userID, tenantID); err != nil {
		return "", false, err
	}
	ctx = composables.WithTenantID(ctx, tenantID)

	conn, err := s.load(ctx, userID)
	if err != nil || conn == nil {
		return "", false, err
	}
	if !conn.NeedsRefresh(s.opts.Now(), s.opts.RefreshSkew) {
		return conn.AccessToken, true, nil
	}

	key := tenantID.String() + "/" + userID
	v, err, _ := s.refreshes.Do(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ProviderTimeout)
		defer cancel()
		return s.refresh(fctx, userID, tenantID)
	})
	if err != nil {
		return "", false, err
	}
	token := v.(string)
	return token, token != "", nil
}

func (s *ConnectionService) refresh(ctx context.Context, userID string, tenantID uuid.UUID) (string, error) {
	logger := composables.UseLogger(ctx)

	// A flight that finished just before this one may already have stored a
	// fresh token.
	conn, err := s.load(ctx, userID)
	if err != nil || conn == nil {
		return "", err
	}
	now := s.opts.Now()
	if !conn.NeedsRefresh(now, s.opts.RefreshSkew) {
		return conn.AccessToken, nil
	}

	tok, err := s.provider.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		logger.WithError(err).WithField("tenant-id", tenantID).Warn("google token refresh failed")
		s.publisher.Publish(&connection.RefreshedEvent{TenantID: tenantID, UserID: userID, Success: false})
		return "", nil
	}

	prevExpiry := conn.TokenExpiry
	conn.ApplyToken(tok, now)
	var stored bool
	if err := s.inTx(ctx, func(txCtx context.Context) error {
		var updateErr error
		stored, updateErr = s.repo.UpdateToken(txCtx, conn, prevExpiry)
		return updateErr
	}); err != nil {
		return "", errors.Wrap(err, "store refreshed token")
	}
	if !stored {
		logger.WithField("tenant-id", tenantID).Info("token refreshed concurrently by another process")
	}
	s.publisher.Publish(&connection.RefreshedEvent{TenantID: tenantID, UserID: userID, Success: true})
	return tok.AccessToken, nil
}

func (s *ConnectionService) Status(ctx context.Context, userID string, tenantID uuid.UUID) (*ConnectionStatus, error) {
	if err := identityError(userID, tenantID); err != nil {
		return nil, err
	}
	conn, err := s.load(composables.WithTenantID(ctx, tenantID), userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return &ConnectionStatus{}, nil
	}
	connectedAt := conn.CreatedAt
	return &ConnectionStatus{
		IsConnected: true,
		GoogleEmail: conn.GoogleEmail,
		ConnectedAt: &connectedAt,
	}, nil
}

// Disconnect removes the user's connection. Disconnecting twice is not an
// error.
func (s *ConnectionService) Disconnect(ctx context.Context, userID string, tenantID uuid.UUID) error {
	if err := identityError(userID, tenantID); err != nil {
		return err
	}
	ctx = composables.WithTenantID(ctx, tenantID)
	var removed bool
	if err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		removed, err = s.repo.Delete(txCtx, userID)
		return err
	}); err != nil {
		return errors.Wrap(err, "delete google connection")
	}
	if removed {
		s.publisher.Publish(&connection.DisconnectedEvent{TenantID: tenantID, UserID: userID})
	}
	return nil
}

// load returns nil without error when the user has no connection.
func (s *ConnectionService) load(ctx context.Context, userID string) (*connection.Connection, error) {
	var conn *connection.Connection
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		conn, err = s.repo.GetByUser(txCtx, userID)
		return err
	})
	if errors.Is(err, connection.ErrConnectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load google connection")
	}
	return conn, nil
}

func identityError(userID string, tenantID uuid.UUID) error {
	v := &ValidationError{}
	if strings.TrimSpace(userID) == "" {
		v.add("userId", "is required")
	}
	if tenantID == uuid.Nil {
		v.add("tenantId", "is required")
	}
	return v.orNil()
}

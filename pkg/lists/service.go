// Package lists implements spaces, lists and the row append pipeline:
// access check, list lookup, schema validation and atomic append.
package lists

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"heeecker-lists-backend/pkg/access"
	"heeecker-lists-backend/pkg/config"
	"heeecker-lists-backend/pkg/database"
	"heeecker-lists-backend/pkg/models"
	"heeecker-lists-backend/pkg/schema"
	"heeecker-lists-backend/pkg/utils"

	"go.uber.org/zap"
)

const (
	day = 24 * time.Hour
	// DefaultSpaceLifetime applies when no usable deletion date is supplied.
	DefaultSpaceLifetime = 30 * day
	// MaxSpaceLifetime bounds a caller supplied deletion date. Sixty days
	// plus two of slack for clock and time zone skew.
	MaxSpaceLifetime = 62 * day

	tokenBytes = 32
)

// Service owns every space, list and row operation.
type Service struct {
	db                   database.Store
	log                  *zap.Logger
	locks                *KeyedMutex
	timeout              time.Duration
	strict               bool
	enforceListOwnership bool
	now                  func() time.Time
}

// NewService wires a Service to db using the append settings in cfg.
func NewService(db database.Store, cfg *config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.StorageTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		db:                   db,
		log:                  log,
		locks:                NewKeyedMutex(),
		timeout:              timeout,
		strict:               cfg.AppendMode != config.AppendModeLegacy,
		enforceListOwnership: cfg.EnforceListOwnership,
		now:                  time.Now,
	}
}

// CreateSpaceInput is the payload of a space creation request.
type CreateSpaceInput struct {
	Name             string
	Description      string
	CreatedBy        string
	OwnerContactMail string
	// DeletionDate is a caller requested deletion time in epoch ms.
	DeletionDate *int64
	// BaseURL prefixes the returned share links, e.g. https://lists.example.
	BaseURL string
}

// CreatedSpace carries the share links handed out at creation.
type CreatedSpace struct {
	SpaceID          string        `json:"spaceId"`
	SpaceSharableURL string        `json:"spaceSharableUrl"`
	SpaceAdminURL    string        `json:"spaceAdminUrl"`
	Space            *models.Space `json:"-"`
}

// SpaceView is a space as seen through a token. Tokens are only disclosed
// to the admin.
type SpaceView struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	CreatedAt           int64  `json:"createdOnTimestampMs"`
	LastModifiedAt      int64  `json:"lastModifiedOnTimestampMs"`
	CreatedBy           string `json:"createdBy"`
	DeleteAt            int64  `json:"deleteOnTimestampMs"`
	OwnerContactMail    string `json:"ownerContactMail"`
	TokenType           string `json:"tokenType"`
	AdminToken          string `json:"adminUrlToken,omitempty"`
	SharableAccessToken string `json:"sharableAccessToken,omitempty"`
}

func newSpaceView(space *models.Space, level models.AccessLevel) *SpaceView {
	v := &SpaceView{
		Name:             space.Name,
		Description:      space.Description,
		CreatedAt:        space.CreatedAt,
		LastModifiedAt:   space.LastModifiedAt,
		CreatedBy:        space.CreatedBy,
		DeleteAt:         space.DeleteAt,
		OwnerContactMail: space.OwnerContactMail,
		TokenType:        level.String(),
	}
	if level == models.AccessAdmin {
		v.AdminToken = space.AdminToken
		v.SharableAccessToken = space.ShareableToken
	}
	return v
}

// SpaceURL builds the frontend link for a space and token.
func SpaceURL(baseURL, spaceID, token string) string {
	q := url.Values{}
	q.Set("spaceId", spaceID)
	q.Set("token", token)
	return strings.TrimRight(baseURL, "/") + "/space?" + q.Encode()
}

// CreateSpace issues a new space with fresh admin and shareable tokens.
func (s *Service) CreateSpace(ctx context.Context, in CreateSpaceInput) (*CreatedSpace, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}

	adminToken, shareableToken, err := newTokenPair()
	if err != nil {
		return nil, fmt.Errorf("%w: generate tokens: %v", ErrStorage, err)
	}

	now := s.now()
	space := &models.Space{
		ID:               database.NewID(),
		Name:             in.Name,
		Description:      in.Description,
		CreatedAt:        now.UnixMilli(),
		LastModifiedAt:   now.UnixMilli(),
		DeleteAt:         deletionDate(now, in.DeletionDate),
		CreatedBy:        in.CreatedBy,
		OwnerContactMail: in.OwnerContactMail,
		AdminToken:       adminToken,
		ShareableToken:   shareableToken,
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.db.CreateSpace(sctx, space); err != nil {
		s.log.Error("create space failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.log.Info("space created", zap.String("space_id", space.ID), zap.Int64("delete_at", space.DeleteAt))
	return &CreatedSpace{
		SpaceID:          space.ID,
		SpaceSharableURL: SpaceURL(in.BaseURL, space.ID, space.ShareableToken),
		SpaceAdminURL:    SpaceURL(in.BaseURL, space.ID, space.AdminToken),
		Space:            space,
	}, nil
}

func newTokenPair() (string, string, error) {
	admin, err := utils.GenerateURLToken(tokenBytes)
	if err != nil {
		return "", "", err
	}
	for {
		shareable, err := utils.GenerateURLToken(tokenBytes)
		if err != nil {
			return "", "", err
		}
		if shareable != admin {
			return admin, shareable, nil
		}
	}
}

// deletionDate accepts a requested date only if it lies in the future and
// no further than MaxSpaceLifetime away.
func deletionDate(now time.Time, requested *int64) int64 {
	if requested != nil {
		nowMs := now.UnixMilli()
		if *requested > nowMs && *requested <= now.Add(MaxSpaceLifetime).UnixMilli() {
			return *requested
		}
	}
	return now.Add(DefaultSpaceLifetime).UnixMilli()
}

// GetSpace returns the space as visible to token.
func (s *Service) GetSpace(ctx context.Context, spaceID, token string) (*SpaceView, error) {
	if !database.IsValidID(spaceID) {
		return nil, fmt.Errorf("%w: malformed space id", ErrInvalid)
	}
	space, level, err := s.authorize(ctx, spaceID, token)
	if err != nil {
		return nil, err
	}
	return newSpaceView(space, level), nil
}

// ListLists returns id and name of every list in the space.
func (s *Service) ListLists(ctx context.Context, spaceID, token string) ([]models.ListSummary, error) {
	if !database.IsValidID(spaceID) {
		return nil, fmt.Errorf("%w: malformed space id", ErrInvalid)
	}
	if _, _, err := s.authorize(ctx, spaceID, token); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	summaries, err := s.db.ListListsBySpace(sctx, spaceID)
	if err != nil {
		return nil, s.storageError("list lists", err)
	}
	return summaries, nil
}

// GetList returns the whole list document including its rows.
func (s *Service) GetList(ctx context.Context, spaceID, listID, token string) (*models.List, error) {
	if !database.IsValidID(spaceID) || !database.IsValidID(listID) {
		return nil, fmt.Errorf("%w: malformed id", ErrInvalid)
	}
	if _, _, err := s.authorize(ctx, spaceID, token); err != nil {
		return nil, err
	}
	return s.loadList(ctx, spaceID, listID)
}

// CreateListInput is the payload of a list creation request.
type CreateListInput struct {
	Name        string
	Description string
	Columns     []models.ColumnDefinition
	// MaxRowCount of nil or 0 leaves the list unbounded.
	MaxRowCount *int
}

// CreateList adds a list to the space. Only the admin token may do this.
func (s *Service) CreateList(ctx context.Context, spaceID, token string, in CreateListInput) (*models.List, error) {
	if !database.IsValidID(spaceID) {
		return nil, fmt.Errorf("%w: malformed space id", ErrInvalid)
	}
	_, level, err := s.authorize(ctx, spaceID, token)
	if err != nil {
		return nil, err
	}
	if level != models.AccessAdmin {
		return nil, fmt.Errorf("%w: admin token required", ErrForbidden)
	}

	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if err := schema.ValidateColumns(in.Columns); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var maxRows *int
	if in.MaxRowCount != nil {
		if *in.MaxRowCount < 0 {
			return nil, fmt.Errorf("%w: maxRowCount must not be negative", ErrInvalid)
		}
		if *in.MaxRowCount > 0 {
			m := *in.MaxRowCount
			maxRows = &m
		}
	}

	list := &models.List{
		ID:          database.NewID(),
		SpaceID:     spaceID,
		Name:        in.Name,
		Description: in.Description,
		Columns:     append([]models.ColumnDefinition(nil), in.Columns...),
		MaxRows:     maxRows,
		Rows:        []models.Row{},
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.db.CreateList(sctx, list); err != nil {
		return nil, s.storageError("create list", err)
	}
	s.log.Info("list created", zap.String("space_id", spaceID), zap.String("list_id", list.ID),
		zap.Int("columns", len(list.Columns)))
	return list, nil
}

// AppendResult describes an accepted row.
type AppendResult struct {
	Index int
	Row   models.Row
}

// AppendRow validates payload against the list's columns and appends it.
// Every step is a gate: the first failure ends the request.
func (s *Service) AppendRow(ctx context.Context, spaceID, listID, token string, payload models.RowPayload) (*AppendResult, error) {
	if !database.IsValidID(spaceID) || !database.IsValidID(listID) {
		return nil, fmt.Errorf("%w: malformed id", ErrInvalid)
	}
	if _, _, err := s.authorize(ctx, spaceID, token); err != nil {
		return nil, err
	}

	if s.strict {
		unlock, err := s.locks.Lock(ctx, listID)
		if err != nil {
			return nil, fmt.Errorf("%w: waiting for list lock: %v", ErrStorage, err)
		}
		defer unlock()
	}

	list, err := s.loadList(ctx, spaceID, listID)
	if err != nil {
		return nil, err
	}

	compiled, err := schema.Compile(list.Columns)
	if err != nil {
		s.log.Error("list has an invalid column pattern", zap.String("list_id", listID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if list.IsFull() {
		return nil, ErrListFull
	}

	accepted, err := compiled.Validate(payload, list.HasValue)
	if err != nil {
		var rej *schema.Rejection
		if errors.As(err, &rej) {
			s.log.Debug("row rejected", zap.String("list_id", listID),
				zap.String("column", rej.Column), zap.String("reason", string(rej.Reason)))
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	row := models.Row{Values: accepted.Values, InsertedAt: s.now().UnixMilli()}
	var claims []models.UniqueClaim
	if s.strict {
		claims = accepted.Claims
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	index, err := s.db.AppendRow(sctx, listID, row, claims)
	switch {
	case err == nil:
	case errors.Is(err, database.ErrConflict):
		s.log.Info("row lost a unique value race", zap.String("list_id", listID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, database.ErrListFull):
		return nil, ErrListFull
	case errors.Is(err, database.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, s.storageError("append row", err)
	}
	return &AppendResult{Index: index, Row: row}, nil
}

// authorize fetches the space and classifies token. A missing space and a
// token without access yield the same ErrNotFound.
func (s *Service) authorize(ctx context.Context, spaceID, token string) (*models.Space, models.AccessLevel, error) {
	if token == "" {
		return nil, models.AccessUnauthorized, ErrNotFound
	}
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	space, err := s.db.GetSpace(sctx, spaceID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, models.AccessUnauthorized, ErrNotFound
	}
	if err != nil {
		return nil, models.AccessUnauthorized, s.storageError("get space", err)
	}
	level := access.Classify(space, token)
	if !level.CanRead() {
		return nil, models.AccessUnauthorized, ErrNotFound
	}
	return space, level, nil
}

func (s *Service) loadList(ctx context.Context, spaceID, listID string) (*models.List, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	list, err := s.db.GetList(sctx, listID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.storageError("get list", err)
	}
	if s.enforceListOwnership && list.SpaceID != spaceID {
		s.log.Warn("list requested through a foreign space",
			zap.String("space_id", spaceID), zap.String("list_id", listID))
		return nil, ErrNotFound
	}
	return list, nil
}

func (s *Service) storageError(op string, err error) error {
	s.log.Error(op+" failed", zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

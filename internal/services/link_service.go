// Package services contains the business logic layer for the URL shortener application
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	customerrors "github.com/axellelanca/shortlink/internal/errors"
	"github.com/axellelanca/shortlink/internal/logger"
	"github.com/axellelanca/shortlink/internal/models"
	"github.com/axellelanca/shortlink/internal/repository"
)

const (
	// MaxCodeAttempts bounds the generate-and-check loop for random codes.
	MaxCodeAttempts = 10
	// MaxPageSize and DefaultPageSize bound ListLinks windows.
	MaxPageSize     = 100
	DefaultPageSize = 10

	maxURLLength = 2048
)

var validate = validator.New()

// LinkService provides business logic methods for managing shortened links.
// It holds no mutable state: all coordination between concurrent requests is
// left to the store (unique index on code, server-side click increment).
type LinkService struct {
	linkRepo     repository.LinkRepository
	queryTimeout time.Duration
	maxAttempts  int

	generate func() (string, error)
	now      func() time.Time
}

// NewLinkService creates and returns a new instance of LinkService.
// queryTimeout bounds every operation; zero disables the bound.
func NewLinkService(linkRepo repository.LinkRepository, queryTimeout time.Duration) *LinkService {
	return &LinkService{
		linkRepo:     linkRepo,
		queryTimeout: queryTimeout,
		maxAttempts:  MaxCodeAttempts,
		generate:     GenerateShortCode,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// LinkPage is one window of the link listing plus the total number of links.
type LinkPage struct {
	Links  []models.Link
	Total  int64
	Offset int
	Limit  int
}

func (s *LinkService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// NormalizeTargetURL trims raw, prefixes https:// when no http(s) scheme is
// present and checks that the result is an absolute http(s) URL with a
// plausible host.
func NormalizeTargetURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", invalidURL("URL is required")
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		u = "https://" + u
	}
	if len(u) > maxURLLength {
		return "", invalidURL("URL is too long")
	}
	if err := validate.Var(u, "http_url"); err != nil {
		return "", invalidURL("Invalid URL format")
	}
	parsed, err := url.Parse(u)
	if err != nil || !plausibleHost(parsed.Hostname()) {
		return "", invalidURL("Invalid URL format")
	}
	return u, nil
}

// plausibleHost accepts IPs, localhost and dotted names with a non-empty TLD.
func plausibleHost(host string) bool {
	if host == "" {
		return false
	}
	if host == "localhost" || net.ParseIP(host) != nil {
		return true
	}
	dot := strings.LastIndexByte(host, '.')
	return dot > 0 && dot < len(host)-1
}

func invalidURL(reason string) error {
	return customerrors.ErrValidationFailed{Field: "target_url", Reason: reason, Err: customerrors.ErrInvalidURL}
}

func invalidCode(code string) error {
	return customerrors.ErrValidationFailed{
		Field:  "code",
		Reason: fmt.Sprintf("%q: %s", code, customerrors.ErrInvalidShortCode),
		Err:    customerrors.ErrInvalidShortCode,
	}
}

// AssignCode resolves the code a new link will use.
// A requested code is validated and checked once; ErrShortCodeTaken if it is in
// use. Without one, random codes are generated until an unused one is found or
// MaxCodeAttempts is reached (ErrShortCodeGenerationFailed). The check is only a
// fast path: the insert can still lose a race, which CreateLink handles.
func (s *LinkService) AssignCode(ctx context.Context, requestedCode string) (string, error) {
	if requestedCode != "" {
		if !ValidShortCode(requestedCode) {
			return "", invalidCode(requestedCode)
		}
		taken, err := s.linkRepo.ShortCodeExists(ctx, requestedCode)
		if err != nil {
			return "", err
		}
		if taken {
			return "", customerrors.ErrShortCodeTaken
		}
		return requestedCode, nil
	}

	attempts := 0
	return s.freshCode(ctx, &attempts)
}

// freshCode generates codes until one is not in use. Every generated code
// counts against *attempts, which callers share across insert retries so one
// request never generates more than maxAttempts codes.
func (s *LinkService) freshCode(ctx context.Context, attempts *int) (string, error) {
	for *attempts < s.maxAttempts {
		*attempts++
		code, err := s.generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}
		taken, err := s.linkRepo.ShortCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		logger.FromContext(ctx).Warn("short code collision, retrying", "code", code, "attempt", *attempts, "max_attempts", s.maxAttempts)
	}
	return "", fmt.Errorf("%w after %d attempts", customerrors.ErrShortCodeGenerationFailed, s.maxAttempts)
}

// CreateLink creates a new shortened link with collision detection and retry logic.
// customCode is optional. A generated code that loses the insert race is
// replaced by a fresh one from the same attempt budget; a custom code that
// loses it fails with ErrShortCodeTaken.
func (s *LinkService) CreateLink(ctx context.Context, targetURL, customCode string) (*models.Link, error) {
	normalized, err := NormalizeTargetURL(targetURL)
	if err != nil {
		return nil, err
	}
	if customCode != "" && !ValidShortCode(customCode) {
		return nil, invalidCode(customCode)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if customCode != "" {
		code, err := s.AssignCode(ctx, customCode)
		if err != nil {
			return nil, err
		}
		return s.insert(ctx, code, normalized)
	}

	attempts := 0
	for {
		code, err := s.freshCode(ctx, &attempts)
		if err != nil {
			return nil, err
		}
		link, err := s.insert(ctx, code, normalized)
		if !errors.Is(err, customerrors.ErrShortCodeTaken) {
			return link, err
		}
		logger.FromContext(ctx).Warn("generated code taken at insert, retrying", "code", code, "attempt", attempts)
	}
}

func (s *LinkService) insert(ctx context.Context, code, targetURL string) (*models.Link, error) {
	link := &models.Link{
		Code:      code,
		TargetURL: targetURL,
		CreatedAt: s.now(),
	}
	if err := s.linkRepo.CreateLink(ctx, link); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("link created", "code", link.Code, "id", link.ID)
	return link, nil
}

// RecordClickAndResolve counts one click on code and returns the updated link.
// It returns only once the increment is committed, so callers can redirect
// to link.TargetURL knowing the click was stored.
func (s *LinkService) RecordClickAndResolve(ctx context.Context, code string) (*models.Link, error) {
	if !ValidShortCode(code) {
		return nil, invalidCode(code)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	link, err := s.linkRepo.RecordClick(ctx, code, s.now())
	if err != nil {
		return nil, err
	}
	return link, nil
}

// GetLinkByShortCode retrieves a link from the database using its short code.
func (s *LinkService) GetLinkByShortCode(ctx context.Context, code string) (*models.Link, error) {
	if !ValidShortCode(code) {
		return nil, invalidCode(code)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.linkRepo.GetLinkByShortCode(ctx, code)
}

// ListLinks returns up to limit links, newest first, skipping offset, together
// with the total number of links. limit must be in [1, MaxPageSize] and offset
// must not be negative.
func (s *LinkService) ListLinks(ctx context.Context, offset, limit int) (*LinkPage, error) {
	if limit < 1 || limit > MaxPageSize {
		return nil, customerrors.ErrValidationFailed{
			Field:  "limit",
			Reason: fmt.Sprintf("must be between 1 and %d", MaxPageSize),
			Err:    customerrors.ErrInvalidPagination,
		}
	}
	if offset < 0 {
		return nil, customerrors.ErrValidationFailed{
			Field:  "start",
			Reason: "must not be negative",
			Err:    customerrors.ErrInvalidPagination,
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	links, err := s.linkRepo.ListLinks(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.linkRepo.CountLinks(ctx)
	if err != nil {
		return nil, err
	}
	return &LinkPage{Links: links, Total: total, Offset: offset, Limit: limit}, nil
}

// DeleteLink removes the link and returns it.
func (s *LinkService) DeleteLink(ctx context.Context, code string) (*models.Link, error) {
	if !ValidShortCode(code) {
		return nil, invalidCode(code)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	link, err := s.linkRepo.DeleteLinkByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("link deleted", "code", link.Code, "id", link.ID)
	return link, nil
}

// Ping reports whether the store is reachable.
func (s *LinkService) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.linkRepo.Ping(ctx)
}

package auditevent

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/auditline-platform/auditline/internal/config"
	"github.com/auditline-platform/auditline/internal/metrics"
)

const maskedIP = "127.0.0.1"

// Service is the pagination/query engine: it validates parameters, asks the
// store for one row more than the page size to detect a following page, and
// assembles the response page with next-page state.
type Service struct {
	repo         Repository
	defaultLimit int
	maxLimit     int
	maskIPs      map[string]struct{}
}

func NewService(repo Repository, cfg config.AuditConfig) *Service {
	maskIPs := make(map[string]struct{}, len(cfg.MaskIPs))
	for _, ip := range cfg.MaskIPs {
		maskIPs[ip] = struct{}{}
	}

	return &Service{
		repo:         repo,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		maskIPs:      maskIPs,
	}
}

// ListByDomain returns one page of a domain's event stream.
func (s *Service) ListByDomain(ctx context.Context, domain string, params ListParams, baseURI string) (*Page, error) {
	start := time.Now()
	defer func() {
		metrics.ListDuration.WithLabelValues("domain").Observe(time.Since(start).Seconds())
	}()

	params = s.sanitizeLimit(params)
	if verr := params.Validate(); verr != nil {
		return nil, verr
	}

	slog.Info("listing audit events", "scope", "domain", "domain", domain,
		"offset", params.Offset, "limit", params.Limit)

	return s.list(ctx, domain, params, params.query(""), baseURI)
}

// ListByUser returns one page of a single user's events within their domain.
func (s *Service) ListByUser(ctx context.Context, domain, userLogin string, params ListParams, baseURI string) (*Page, error) {
	start := time.Now()
	defer func() {
		metrics.ListDuration.WithLabelValues("user").Observe(time.Since(start).Seconds())
	}()

	params = s.sanitizeLimit(params)
	if verr := params.Validate(); verr != nil {
		return nil, verr
	}

	slog.Info("listing audit events", "scope", "user", "domain", domain,
		"user_login", userLogin, "offset", params.Offset, "limit", params.Limit)

	return s.list(ctx, domain, params, params.query(userLogin), baseURI)
}

// DeleteByDomain drops a domain's whole event stream. Administrative use only.
func (s *Service) DeleteByDomain(ctx context.Context, domain string) error {
	slog.Info("deleting audit events", "domain", domain)
	return s.repo.DeleteByDomain(ctx, domain)
}

func (s *Service) list(ctx context.Context, domain string, params ListParams, q Query, baseURI string) (*Page, error) {
	// One extra row tells us whether a next page exists without a count query.
	q.Limit = params.Limit + 1

	events, err := s.repo.Find(ctx, domain, q)
	if err != nil {
		return nil, fmt.Errorf("finding audit events: %w", err)
	}

	hasNext := len(events) > params.Limit
	if hasNext {
		events = events[:params.Limit]
	}

	page := &Page{
		Events: events,
		Links:  map[string]string{"self": baseURI},
	}
	if page.Events == nil {
		page.Events = []AuditEvent{}
	}

	if hasNext && len(events) > 0 {
		offset := events[len(events)-1].ID.String()
		page.Paging = Paging{
			Offset: offset,
			Next:   nextPageURI(baseURI, params, offset),
		}
	}

	s.maskEventIPs(page.Events)
	return page, nil
}

// nextPageURI keeps the upper time bound and type filter; offset navigation
// replaces the lower bound.
func nextPageURI(baseURI string, params ListParams, offset string) string {
	v := url.Values{}
	v.Set("offset", offset)
	v.Set("limit", strconv.Itoa(params.Limit))
	if params.To != nil {
		v.Set("to", params.To.UTC().Format(time.RFC3339))
	}
	if params.Type != "" {
		v.Set("type", params.Type)
	}
	return baseURI + "?" + v.Encode()
}

// sanitizeLimit fills in the default page size when the caller supplied no
// limit at all. Explicit non-positive limits never get here from the HTTP
// layer; a negative value from a direct caller still fails Validate.
func (s *Service) sanitizeLimit(params ListParams) ListParams {
	if params.Limit == 0 {
		params.Limit = s.defaultLimit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	return params
}

// maskEventIPs hides configured source addresses from read responses.
func (s *Service) maskEventIPs(events []AuditEvent) {
	if len(s.maskIPs) == 0 {
		return
	}
	for i := range events {
		if _, ok := s.maskIPs[events[i].UserIP]; ok {
			events[i].UserIP = maskedIP
		}
	}
}

// Package druginfo looks up FDA drug labels for an identified medication.
package druginfo

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"medid-server-go/internal/domain/druginfo/cache"
	"medid-server-go/internal/domain/druginfo/model"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
	"medid-server-go/internal/platform/observability"
)

// sharedFetchLimit bounds a collapsed upstream fetch, which no longer
// follows any single caller's cancellation.
const sharedFetchLimit = 30 * time.Second

// Service fronts a Fetcher with name validation, an optional cache and
// collapsing of concurrent lookups for the same name.
type Service struct {
	fetcher Fetcher
	cache   cache.Cache
	group   singleflight.Group
	logger  *logging.Logger
}

// NewService wires the lookup path. c may be nil to disable caching.
func NewService(fetcher Fetcher, c cache.Cache, logger *logging.Logger) *Service {
	return &Service{fetcher: fetcher, cache: c, logger: logger}
}

// ValidateName trims name and rejects values shorter than two characters.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New(errors.KindValidation, "druginfo.validate", "Invalid drug name provided")
	}
	if len([]rune(name)) < 2 {
		return "", errors.New(errors.KindValidation, "druginfo.validate", "Drug name must be at least 2 characters long")
	}
	return name, nil
}

// Lookup returns the label summary for name.
func (s *Service) Lookup(ctx context.Context, name string) (label model.Label, err error) {
	ctx, finish := observability.StartSpan(ctx, "druginfo", "lookup")
	defer func() { finish(err) }()

	name, err = ValidateName(name)
	if err != nil {
		return model.Label{}, err
	}

	if s.cache != nil {
		cached, ok, cacheErr := s.cache.Get(ctx, name)
		if cacheErr != nil {
			s.logger.WarnTag("DRUGINFO", "Label cache read failed for %s: %v", name, cacheErr)
		}
		if ok {
			observability.RecordMetric(ctx, "druginfo.cache_hit", 1, nil)
			s.logger.DebugTag("DRUGINFO", "Label cache hit for %s", name)
			return cached, nil
		}
		observability.RecordMetric(ctx, "druginfo.cache_miss", 1, nil)
	}

	ch := s.group.DoChan(cache.Key(name), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchLimit)
		defer cancel()
		label, err := s.fetcher.Fetch(fetchCtx, name)
		if err != nil {
			return model.Label{}, Classify(err)
		}
		if s.cache != nil {
			if err := s.cache.Set(fetchCtx, name, label); err != nil {
				s.logger.WarnTag("DRUGINFO", "Label cache write failed for %s: %v", name, err)
			}
		}
		return label, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		err = Classify(ctx.Err())
		s.logger.WarnTag("DRUGINFO", "Drug label lookup abandoned for %s: %v", name, err)
		return model.Label{}, err
	}
	if res.Shared {
		s.logger.DebugTag("DRUGINFO", "Shared in-flight lookup for %s", name)
	}
	if res.Err != nil {
		err = res.Err
		s.logger.WarnTag("DRUGINFO", "Drug label lookup failed for %s: %v", name, err)
		return model.Label{}, err
	}
	return res.Val.(model.Label), nil
}

// Describe runs Lookup and folds failures into an Outcome with user hints.
func (s *Service) Describe(ctx context.Context, name string) Outcome {
	label, err := s.Lookup(ctx, name)
	if err != nil {
		return Hint(err, strings.TrimSpace(name))
	}
	return Outcome{Success: true, DrugInfo: &label}
}

// ToolBody answers the standalone drug_info tool.
func (s *Service) ToolBody(ctx context.Context, name string) map[string]any {
	label, err := s.Lookup(ctx, name)
	if err != nil {
		if errors.CodeOf(err) == CodeNotFound || errors.IsKind(err, errors.KindValidation) {
			return map[string]any{"error": errors.MessageOf(err)}
		}
		return map[string]any{"error": "An unexpected error occurred: " + errors.MessageOf(err)}
	}
	return map[string]any{
		"brand_name":   label.BrandName,
		"generic_name": label.GenericName,
		"purpose":      label.Purpose,
		"warnings":     label.Warnings,
	}
}

// CacheStats reports the cache driver statistics, or nil without a cache.
func (s *Service) CacheStats(ctx context.Context) (map[string]any, error) {
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.Stats(ctx)
}

func (s *Service) Close(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close(ctx)
}

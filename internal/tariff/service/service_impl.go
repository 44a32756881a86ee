package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	"github.com/smallbiznis/tirta/internal/clock"
	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
	"github.com/smallbiznis/tirta/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var validFromLayouts = []string{"2006-01-02", time.RFC3339}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  tariffdomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  tariffdomain.Repository
	clock clock.Clock
}

func New(p Params) tariffdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tariff.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req tariffdomain.CreateRequest) (*tariffdomain.Response, error) {
	for _, rate := range []decimal.Decimal{req.ColdWaterRate, req.HotWaterRate, req.SewageRate} {
		if rate.IsNegative() {
			return nil, tariffdomain.ErrInvalidRate
		}
	}

	validFrom, err := parseValidFrom(req.ValidFrom)
	if err != nil {
		return nil, err
	}

	entity := &tariffdomain.TariffRate{
		ID:            s.genID.Generate(),
		ColdWaterRate: req.ColdWaterRate,
		HotWaterRate:  req.HotWaterRate,
		SewageRate:    req.SewageRate,
		ValidFrom:     validFrom,
		CreatedAt:     s.clock.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, entity); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, tariffdomain.ErrDuplicateTariff
		}
		return nil, err
	}

	s.log.Info("tariff created",
		zap.String("tariff_id", entity.ID.String()),
		zap.Time("valid_from", entity.ValidFrom),
		zap.String("cold_water_rate", entity.ColdWaterRate.String()),
		zap.String("hot_water_rate", entity.HotWaterRate.String()),
		zap.String("sewage_rate", entity.SewageRate.String()),
	)

	return toResponse(entity), nil
}

func (s *Service) List(ctx context.Context) ([]tariffdomain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]tariffdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Resolve(ctx context.Context, period billingperiod.Period) (*tariffdomain.TariffRate, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	rate, err := s.repo.FindEffective(ctx, s.db, period.Start())
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, &tariffdomain.MissingTariffError{Period: period}
	}
	return rate, nil
}

// parseValidFrom accepts a date or an RFC3339 timestamp and truncates it to
// midnight UTC.
func parseValidFrom(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, tariffdomain.ErrInvalidValidFrom
	}
	for _, layout := range validFromLayouts {
		parsed, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		parsed = parsed.UTC()
		return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, tariffdomain.ErrInvalidValidFrom
}

func toResponse(t *tariffdomain.TariffRate) *tariffdomain.Response {
	return &tariffdomain.Response{
		ID:            t.ID.String(),
		ColdWaterRate: t.ColdWaterRate,
		HotWaterRate:  t.HotWaterRate,
		SewageRate:    t.SewageRate,
		ValidFrom:     t.ValidFrom.UTC().Format("2006-01-02"),
		CreatedAt:     t.CreatedAt,
	}
}

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/clock"
	statisticsdomain "github.com/smallbiznis/tirta/internal/statistics/domain"
	"github.com/smallbiznis/tirta/internal/statistics/rollup"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  statisticsdomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  statisticsdomain.Repository
	clock clock.Clock
}

func New(p Params) statisticsdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("statistics.service"),
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Payments(ctx context.Context, req statisticsdomain.Request) (*statisticsdomain.PaymentsResponse, error) {
	scope, year, err := s.parse(req)
	if err != nil {
		return nil, err
	}

	payments, err := s.repo.ListPayments(ctx, s.db, scope, year)
	if err != nil {
		return nil, err
	}

	s.log.Debug("statistics.payments",
		zap.String("scope", scope.String()),
		zap.Int("year", year),
		zap.Int("payments", len(payments)),
	)
	return &statisticsdomain.PaymentsResponse{
		Scope:  scope.String(),
		Year:   year,
		Months: rollup.Payments(year, payments),
	}, nil
}

func (s *Service) ServiceRequests(ctx context.Context, req statisticsdomain.Request) (*statisticsdomain.ServiceRequestsResponse, error) {
	scope, year, err := s.parse(req)
	if err != nil {
		return nil, err
	}

	requests, err := s.repo.ListServiceRequests(ctx, s.db, scope, year)
	if err != nil {
		return nil, err
	}

	return &statisticsdomain.ServiceRequestsResponse{
		Scope:  scope.String(),
		Year:   year,
		Months: rollup.ServiceRequests(year, requests),
	}, nil
}

func (s *Service) parse(req statisticsdomain.Request) (statisticsdomain.Scope, int, error) {
	var scope statisticsdomain.Scope
	if value := strings.TrimSpace(req.ApartmentID); value != "" && value != "all" {
		id, err := snowflake.ParseString(value)
		if err != nil || id <= 0 {
			return scope, 0, statisticsdomain.ErrInvalidApartment
		}
		scope.ApartmentID = id
	}

	year := req.Year
	if year == 0 {
		year = s.clock.Now().UTC().Year()
	}
	if year < 1 || year > 9999 {
		return scope, 0, statisticsdomain.ErrInvalidYear
	}
	return scope, year, nil
}

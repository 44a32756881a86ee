package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	obsmetrics "github.com/smallbiznis/tirta/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxWriteAttempts = 3
	sweepBatchSize   = 200
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	TariffSvc  tariffdomain.Service
	ReadingSvc readingdomain.Service
	Billing    *config.BillingConfigHolder
	Clock      clock.Clock
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	tariffSvc  tariffdomain.Service
	readingSvc readingdomain.Service
	billing    *config.BillingConfigHolder
	clock      clock.Clock
	metrics    *obsmetrics.Metrics
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		tariffSvc:  p.TariffSvc,
		readingSvc: p.ReadingSvc,
		billing:    p.Billing,
		clock:      p.Clock,
		metrics:    p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*paymentdomain.Response, error) {
	paymentID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	entity, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, paymentdomain.ErrNotFound
	}
	return toResponse(entity), nil
}

func (s *Service) List(ctx context.Context, req paymentdomain.ListRequest) (paymentdomain.ListResponse, error) {
	filter := paymentdomain.ListFilter{Limit: req.Limit() + 1}

	if apartment := strings.TrimSpace(req.ApartmentID); apartment != "" {
		apartmentID, err := snowflake.ParseString(apartment)
		if err != nil || apartmentID <= 0 {
			return paymentdomain.ListResponse{}, paymentdomain.ErrInvalidApartment
		}
		filter.ApartmentID = &apartmentID
	}
	if req.Year != 0 {
		if req.Year < 1 || req.Year > 9999 {
			return paymentdomain.ListResponse{}, paymentdomain.ErrInvalidYear
		}
		filter.Year = req.Year
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		filter.Status = paymentdomain.Status(strings.ToLower(status))
		if !filter.Status.Valid() {
			return paymentdomain.ListResponse{}, paymentdomain.ErrInvalidStatus
		}
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return paymentdomain.ListResponse{}, err
	}
	if cursor != nil {
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return paymentdomain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		filter.AfterID = afterID
		filter.AfterPeriodKey = int(cursor.Sort)
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return paymentdomain.ListResponse{}, err
	}

	page, info, err := pagination.Trim(items, req.Limit(), func(p paymentdomain.Payment) pagination.Cursor {
		return pagination.Cursor{ID: p.ID.String(), Sort: int64(p.Period().Key())}
	})
	if err != nil {
		return paymentdomain.ListResponse{}, err
	}

	resp := paymentdomain.ListResponse{
		Data:     make([]paymentdomain.Response, 0, len(page)),
		PageInfo: info,
	}
	for i := range page {
		resp.Data = append(resp.Data, *toResponse(&page[i]))
	}
	return resp, nil
}

func (s *Service) ListTransitions(ctx context.Context, id string) ([]paymentdomain.TransitionResponse, error) {
	paymentID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	entity, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, paymentdomain.ErrNotFound
	}

	items, err := s.repo.ListTransitions(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}

	resp := make([]paymentdomain.TransitionResponse, 0, len(items))
	for _, t := range items {
		resp = append(resp, paymentdomain.TransitionResponse{
			ID:         t.ID.String(),
			PaymentID:  t.PaymentID.String(),
			FromStatus: t.FromStatus,
			ToStatus:   t.ToStatus,
			Action:     t.Action,
			ActorType:  t.ActorType,
			ActorID:    t.ActorID,
			Metadata:   map[string]any(t.Metadata),
			CreatedAt:  t.CreatedAt,
		})
	}
	return resp, nil
}

func (s *Service) recordTransition(
	ctx context.Context,
	tx *gorm.DB,
	paymentID snowflake.ID,
	from string,
	to paymentdomain.Status,
	action paymentdomain.Action,
	actor paymentdomain.Actor,
	metadata map[string]any,
	now time.Time,
) error {
	actor = normalizeActor(actor)
	entry := &paymentdomain.PaymentTransition{
		ID:         s.genID.Generate(),
		PaymentID:  paymentID,
		FromStatus: from,
		ToStatus:   to,
		Action:     action,
		ActorType:  actor.Type,
		ActorID:    actor.ID,
		CreatedAt:  now,
	}
	if len(metadata) > 0 {
		entry.Metadata = datatypes.JSONMap(metadata)
	}
	return s.repo.InsertTransition(ctx, tx, entry)
}

func normalizeActor(actor paymentdomain.Actor) paymentdomain.Actor {
	actor.Type = strings.TrimSpace(actor.Type)
	actor.ID = strings.TrimSpace(actor.ID)
	if actor.Type == "" {
		actor.Type = "system"
	}
	return actor
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, paymentdomain.ErrInvalidID
	}
	return id, nil
}

func toResponse(p *paymentdomain.Payment) *paymentdomain.Response {
	return &paymentdomain.Response{
		ID:            p.ID.String(),
		ApartmentID:   p.ApartmentID.String(),
		Period:        p.Period().String(),
		TariffID:      p.TariffID.String(),
		ColdVolume:    p.ColdVolume,
		HotVolume:     p.HotVolume,
		ColdWaterCost: p.ColdWaterCost,
		HotWaterCost:  p.HotWaterCost,
		SewageCost:    p.SewageCost,
		TotalAmount:   p.TotalAmount,
		Currency:      p.Currency,
		Status:        p.Status,
		DueAt:         p.DueAt,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

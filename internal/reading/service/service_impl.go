package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	"github.com/smallbiznis/tirta/internal/clock"
	obsmetrics "github.com/smallbiznis/tirta/internal/observability/metrics"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxLocationLength = 64

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    readingdomain.Repository
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    readingdomain.Repository
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func New(p Params) readingdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("reading.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, req readingdomain.RecordRequest) (*readingdomain.Response, error) {
	apartmentID, err := parseApartmentID(req.ApartmentID)
	if err != nil {
		return nil, err
	}
	period, err := billingperiod.Parse(req.Period)
	if err != nil {
		return nil, err
	}

	waterType := readingdomain.WaterType(strings.ToLower(strings.TrimSpace(string(req.WaterType))))
	if !waterType.Valid() {
		return nil, readingdomain.ErrInvalidWaterType
	}

	location := strings.TrimSpace(req.Location)
	if location == "" || len(location) > maxLocationLength {
		return nil, readingdomain.ErrInvalidLocation
	}
	if req.Indication.IsNegative() {
		return nil, readingdomain.ErrInvalidIndication
	}

	now := s.clock.Now().UTC()
	recordedAt := now
	if req.RecordedAt != nil && !req.RecordedAt.IsZero() {
		recordedAt = req.RecordedAt.UTC()
	}

	entity := &readingdomain.MeterReading{
		ID:          s.genID.Generate(),
		ApartmentID: apartmentID,
		PeriodYear:  period.Year,
		PeriodMonth: int(period.Month),
		WaterType:   waterType,
		Location:    location,
		Indication:  req.Indication,
		RecordedAt:  recordedAt,
		CreatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, entity); err != nil {
		return nil, err
	}

	s.metrics.RecordReading(ctx, string(waterType))
	s.log.Debug("reading recorded",
		zap.String("reading_id", entity.ID.String()),
		zap.String("apartment_id", apartmentID.String()),
		zap.String("period", period.String()),
		zap.String("water_type", string(waterType)),
		zap.String("location", location),
	)

	return toResponse(entity), nil
}

func (s *Service) List(ctx context.Context, apartmentID string, period string) ([]readingdomain.Response, error) {
	id, err := parseApartmentID(apartmentID)
	if err != nil {
		return nil, err
	}
	p, err := billingperiod.Parse(period)
	if err != nil {
		return nil, err
	}

	items, err := s.ListForPeriod(ctx, id, p)
	if err != nil {
		return nil, err
	}

	resp := make([]readingdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) ListForPeriod(ctx context.Context, apartmentID snowflake.ID, period billingperiod.Period) ([]readingdomain.MeterReading, error) {
	items, err := s.repo.ListForPeriod(ctx, s.db, apartmentID, period)
	if err != nil {
		return nil, err
	}
	return readingdomain.Collapse(items), nil
}

func (s *Service) PriorPeriodReadings(ctx context.Context, apartmentID snowflake.ID, period billingperiod.Period) ([]readingdomain.MeterReading, billingperiod.Period, bool, error) {
	prior, ok, err := s.repo.LatestPeriodBefore(ctx, s.db, apartmentID, period)
	if err != nil || !ok {
		return nil, billingperiod.Period{}, false, err
	}

	items, err := s.ListForPeriod(ctx, apartmentID, prior)
	if err != nil {
		return nil, billingperiod.Period{}, false, err
	}
	return items, prior, true, nil
}

func (s *Service) ApartmentsWithReadings(ctx context.Context, period billingperiod.Period) ([]snowflake.ID, error) {
	return s.repo.ListApartmentIDs(ctx, s.db, period)
}

func parseApartmentID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, readingdomain.ErrInvalidApartment
	}
	return id, nil
}

func toResponse(m *readingdomain.MeterReading) *readingdomain.Response {
	return &readingdomain.Response{
		ID:          m.ID.String(),
		ApartmentID: m.ApartmentID.String(),
		Period:      m.Period().String(),
		WaterType:   m.WaterType,
		Location:    m.Location,
		Indication:  m.Indication,
		RecordedAt:  m.RecordedAt,
		CreatedAt:   m.CreatedAt,
	}
}

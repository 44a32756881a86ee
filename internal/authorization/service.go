package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

const globalDomain = "global"

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an in-memory enforcer seeded with the role policy.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string, apartmentID string) error {
	subject, roleName, domain, err := resolveActor(actor, apartmentID)
	if err != nil {
		return err
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("actor_type", actor.Type),
			zap.String("actor_id", actor.ID),
			zap.String("object", object),
			zap.String("action", action),
			zap.String("apartment_id", apartmentID),
		)
		return ErrForbidden
	}
	return nil
}

// resolveActor maps an actor onto a casbin subject, role and domain. A
// resident only ever holds its role inside its own apartment domain, so a
// request that targets another apartment (or all apartments) finds no role.
func resolveActor(actor Actor, apartmentID string) (string, string, string, error) {
	actorType := strings.ToLower(strings.TrimSpace(actor.Type))
	actorID := strings.TrimSpace(actor.ID)
	switch actorType {
	case ActorSystem:
		return "system", "role:system", globalDomain, nil
	case ActorAdmin:
		if actorID == "" {
			return "", "", "", ErrInvalidActor
		}
		return fmt.Sprintf("admin:%s", actorID), "role:admin", globalDomain, nil
	case ActorResident:
		home := strings.TrimSpace(actor.ApartmentID)
		if actorID == "" || home == "" {
			return "", "", "", ErrInvalidActor
		}
		subject := fmt.Sprintf("resident:%s", actorID)
		target := strings.TrimSpace(apartmentID)
		if target == "" || target != home {
			return subject, "role:resident", "apartment:" + home, errForeignApartment(target)
		}
		return subject, "role:resident", "apartment:" + home, nil
	default:
		return "", "", "", ErrInvalidActor
	}
}

func errForeignApartment(target string) error {
	if target == "" {
		return fmt.Errorf("%w: residents cannot act on all apartments", ErrForbidden)
	}
	return fmt.Errorf("%w: apartment %s is not accessible", ErrForbidden, target)
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Resident permissions, always scoped to the resident's apartment
		{"role:resident", ObjectPayment, ActionPaymentView},
		{"role:resident", ObjectPayment, ActionPaymentPay},
		{"role:resident", ObjectStatistics, ActionStatisticsView},
		{"role:resident", ObjectReading, ActionReadingRecord},
		{"role:resident", ObjectReading, ActionReadingView},
		{"role:resident", ObjectTariff, ActionTariffView},

		// Admin permissions
		{"role:admin", ObjectPayment, ActionPaymentView},
		{"role:admin", ObjectPayment, ActionPaymentPay},
		{"role:admin", ObjectPayment, ActionPaymentCancel},
		{"role:admin", ObjectPayment, ActionPaymentRestore},
		{"role:admin", ObjectPayment, ActionPaymentGenerate},
		{"role:admin", ObjectPayment, ActionPaymentMarkOverdue},
		{"role:admin", ObjectReading, ActionReadingRecord},
		{"role:admin", ObjectReading, ActionReadingView},
		{"role:admin", ObjectTariff, ActionTariffView},
		{"role:admin", ObjectTariff, ActionTariffManage},
		{"role:admin", ObjectStatistics, ActionStatisticsView},
		{"role:admin", ObjectScheduler, ActionSchedulerRun},

		// System permissions (scheduler and billing-cycle automation)
		{"role:system", ObjectPayment, ActionPaymentGenerate},
		{"role:system", ObjectPayment, ActionPaymentMarkOverdue},
		{"role:system", ObjectPayment, ActionPaymentView},
		{"role:system", ObjectReading, ActionReadingRecord},
		{"role:system", ObjectScheduler, ActionSchedulerRun},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

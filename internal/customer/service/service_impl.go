package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/clock"
	"github.com/smallbiznis/subsync/internal/customer/domain"
	"github.com/smallbiznis/subsync/internal/observability/logger"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Gateway providerdomain.Gateway
	Clock   clock.Clock
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	gateway providerdomain.Gateway
	clock   clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("customer.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		gateway: p.Gateway,
		clock:   p.Clock,
	}
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (domain.User, error) {
	if id == 0 {
		return domain.User{}, domain.ErrNotFound
	}
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) EnsureCustomer(ctx context.Context, user domain.User) (domain.User, error) {
	if user.CustomerID() != "" {
		return user, nil
	}

	email := strings.TrimSpace(user.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.ErrInvalidEmail
	}

	log := logger.WithContext(ctx, s.log).With(zap.String("user_id", user.ID.String()))

	customerID, err := s.gateway.FindCustomerByEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("find customer by email: %w", err)
	}

	if customerID != "" {
		log.Info("adopting existing provider customer", zap.String("provider_customer_id", customerID))
	} else {
		customerID, err = s.gateway.CreateCustomer(ctx, providerdomain.CreateCustomerParams{
			Email:          email,
			Name:           user.Name,
			IdempotencyKey: "customer-create:" + user.ID.String(),
			Metadata:       map[string]string{"user_id": user.ID.String()},
		})
		if err != nil {
			return domain.User{}, fmt.Errorf("create customer: %w", err)
		}
		log.Info("created provider customer", zap.String("provider_customer_id", customerID))
	}

	return s.link(ctx, user, customerID)
}

// link persists customerID on the user. A concurrent link (e.g. from a
// customer.created webhook) wins and is returned as-is.
func (s *Service) link(ctx context.Context, user domain.User, customerID string) (domain.User, error) {
	linked, err := s.repo.LinkProviderCustomer(ctx, s.db, user.ID, customerID)
	if err != nil {
		return domain.User{}, err
	}

	current, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return domain.User{}, err
	}
	if !linked && current.CustomerID() != customerID {
		s.log.Warn("user already linked to a different provider customer",
			zap.String("user_id", user.ID.String()),
			zap.String("existing", current.CustomerID()),
			zap.String("candidate", customerID),
		)
	}
	return current, nil
}

func (s *Service) AttachPaymentMethod(ctx context.Context, user domain.User, methodID string) (domain.User, error) {
	methodID = strings.TrimSpace(methodID)
	if methodID == "" {
		return domain.User{}, domain.ErrInvalidPaymentMethod
	}
	customerID := user.CustomerID()
	if customerID == "" {
		return domain.User{}, domain.ErrCustomerNotLinked
	}

	existing, err := s.repo.FindPaymentMethod(ctx, s.db, methodID)
	if err != nil {
		return domain.User{}, err
	}

	switch {
	case existing == nil:
		if err := s.gateway.AttachPaymentMethod(ctx, customerID, methodID); err != nil {
			return domain.User{}, fmt.Errorf("attach payment method: %w", err)
		}
		if _, err := s.repo.InsertPaymentMethod(ctx, s.db, &domain.PaymentMethod{
			ID:                      s.genID.Generate(),
			ProviderCustomerID:      customerID,
			ProviderPaymentMethodID: methodID,
			CreatedAt:               s.clock.Now(),
		}); err != nil {
			return domain.User{}, err
		}
	case existing.ProviderCustomerID != customerID:
		return domain.User{}, domain.ErrPaymentMethodInUse
	}

	if user.DefaultPaymentMethod() == methodID {
		return user, nil
	}

	if err := s.gateway.SetDefaultPaymentMethod(ctx, customerID, methodID); err != nil {
		return domain.User{}, fmt.Errorf("set default payment method: %w", err)
	}
	if err := s.repo.SetDefaultPaymentMethod(ctx, s.db, user.ID, methodID); err != nil {
		return domain.User{}, err
	}
	user.DefaultPaymentMethodID = &methodID
	return user, nil
}

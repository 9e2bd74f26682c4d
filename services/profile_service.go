package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm-backoffice/bridge"
	"crm-backoffice/cache"
	"crm-backoffice/logger"
	"crm-backoffice/metrics"
	"crm-backoffice/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrNoBridgeCustomer    = errors.New("profile has no bridge customer")
	ErrCustomerAlreadySet  = errors.New("profile already has a bridge customer")
	ErrInvalidCustomerType = errors.New("kyc type must be individual or business")
)

// CustomerClient is the Bridge customer API.
type CustomerClient interface {
	CreateCustomer(ctx context.Context, in bridge.CreateCustomerRequest) (*bridge.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*bridge.Customer, error)
}

type ProfileService struct {
	DB        *gorm.DB
	Cache     cache.ProfileCache
	Customers CustomerClient
	now       func() time.Time
}

func NewProfileService(db *gorm.DB, profiles cache.ProfileCache, customers CustomerClient) *ProfileService {
	return &ProfileService{DB: db, Cache: profiles, Customers: customers, now: time.Now}
}

// Lookup returns a profile, from the cache when fresh and from the database
// otherwise. A failed database read is an error; stale copies are never used,
// so the result is safe for authorization.
func (s *ProfileService) Lookup(ctx context.Context, id string) (*models.Profile, error) {
	return s.lookup(ctx, id, false)
}

// LookupAllowStale is Lookup for read-only display: if the database read
// fails a stale cached copy is served instead.
func (s *ProfileService) LookupAllowStale(ctx context.Context, id string) (*models.Profile, error) {
	return s.lookup(ctx, id, true)
}

func (s *ProfileService) lookup(ctx context.Context, id string, allowStale bool) (*models.Profile, error) {
	if !isUUID(id) {
		return nil, ErrProfileNotFound
	}
	cached, fresh := s.Cache.Get(ctx, id)
	if cached != nil && fresh {
		metrics.ProfileCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.ProfileCacheLookups.WithLabelValues("miss").Inc()

	var p models.Profile
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.Cache.Delete(ctx, id)
		return nil, ErrProfileNotFound
	}
	if err != nil {
		if allowStale && cached != nil {
			logger.Warn(ctx, "[PROFILE] serving stale profile", zap.String("profile_id", id), zap.Error(err))
			return cached, nil
		}
		return nil, err
	}

	s.Cache.Put(ctx, id, &p, s.now())
	return &p, nil
}

// RefreshKYC re-reads the Bridge customer and stores its status.
func (s *ProfileService) RefreshKYC(ctx context.Context, p *models.Profile) error {
	if p.BridgeCustomerID == nil || *p.BridgeCustomerID == "" {
		return ErrNoBridgeCustomer
	}
	cust, err := s.Customers.GetCustomer(ctx, *p.BridgeCustomerID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	status := models.KYCStatus(cust.Status)
	if err := s.DB.WithContext(ctx).Model(p).Updates(map[string]interface{}{
		"kyc_status":    status,
		"kyc_synced_at": now,
	}).Error; err != nil {
		return fmt.Errorf("failed to store kyc status: %w", err)
	}
	p.KYCStatus = status
	p.KYCSyncedAt = &now
	s.Cache.Delete(ctx, p.ID)

	logger.Info(ctx, "[KYC] status refreshed",
		zap.String("profile_id", p.ID),
		zap.String("status", string(status)),
	)
	return nil
}

// RegisterCustomer creates the Bridge customer for a profile and links it.
func (s *ProfileService) RegisterCustomer(ctx context.Context, p *models.Profile, kycType string) error {
	if p.BridgeCustomerID != nil && *p.BridgeCustomerID != "" {
		return ErrCustomerAlreadySet
	}
	if kycType == "" {
		kycType = p.KYCType
	}
	if kycType != models.KYCTypeIndividual && kycType != models.KYCTypeBusiness {
		return ErrInvalidCustomerType
	}

	req := bridge.CreateCustomerRequest{Type: kycType, Email: p.Email}
	if kycType == models.KYCTypeBusiness {
		req.BusinessName = p.DisplayName()
	} else {
		if p.FirstName != nil {
			req.FirstName = *p.FirstName
		}
		if p.LastName != nil {
			req.LastName = *p.LastName
		}
	}

	cust, err := s.Customers.CreateCustomer(ctx, req)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := s.DB.WithContext(ctx).Model(p).Updates(map[string]interface{}{
		"bridge_customer_id": cust.ID,
		"kyc_status":         models.KYCStatus(cust.Status),
		"kyc_type":           kycType,
		"kyc_synced_at":      now,
	}).Error; err != nil {
		return fmt.Errorf("failed to link bridge customer %s: %w", cust.ID, err)
	}
	p.BridgeCustomerID = &cust.ID
	p.KYCStatus = models.KYCStatus(cust.Status)
	p.KYCType = kycType
	p.KYCSyncedAt = &now
	s.Cache.Delete(ctx, p.ID)

	logger.Info(ctx, "[KYC] bridge customer created",
		zap.String("profile_id", p.ID),
		zap.String("customer_id", cust.ID),
	)
	return nil
}

// GetProfile handles GET /api/profiles/:userId.
func (s *ProfileService) GetProfile(c *fiber.Ctx) error {
	p, err := s.LookupAllowStale(c.UserContext(), c.Params("userId"))
	if err != nil {
		return profileError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

// CreateBridgeCustomer handles POST /api/profiles/:userId/bridge-customer.
func (s *ProfileService) CreateBridgeCustomer(c *fiber.Ctx) error {
	var body struct {
		Type string `json:"type"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request body", err)
		}
	}

	p, err := s.loadFresh(c.UserContext(), c.Params("userId"))
	if err != nil {
		return profileError(c, err)
	}
	if err := s.RegisterCustomer(c.UserContext(), p, strings.ToLower(body.Type)); err != nil {
		return profileError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": p})
}

// RefreshProfileKYC handles POST /api/profiles/:userId/kyc/refresh.
func (s *ProfileService) RefreshProfileKYC(c *fiber.Ctx) error {
	p, err := s.loadFresh(c.UserContext(), c.Params("userId"))
	if err != nil {
		return profileError(c, err)
	}
	if err := s.RefreshKYC(c.UserContext(), p); err != nil {
		return profileError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

// loadFresh bypasses the cache; used before writes.
func (s *ProfileService) loadFresh(ctx context.Context, id string) (*models.Profile, error) {
	if !isUUID(id) {
		return nil, ErrProfileNotFound
	}
	var p models.Profile
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	return &p, err
}

func profileError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrProfileNotFound):
		return fail(c, fiber.StatusNotFound, "profile not found", err)
	case errors.Is(err, ErrNoBridgeCustomer), errors.Is(err, ErrInvalidCustomerType):
		return fail(c, fiber.StatusUnprocessableEntity, err.Error(), err)
	case errors.Is(err, ErrCustomerAlreadySet):
		return fail(c, fiber.StatusConflict, err.Error(), err)
	}
	return providerFailure(c, "bridge customer request failed", err)
}

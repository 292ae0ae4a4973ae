package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"coldchain-cloud/internal/audit"
	"coldchain-cloud/internal/auth"
	fleet "coldchain-cloud/internal/fleet/domain"
)

// Service orchestrates fleet CRUD for companies, branches and equipment.
type Service struct {
	companies   fleet.CompanyRepository
	branches    fleet.BranchRepository
	equipments  fleet.EquipmentRepository
	maintenance fleet.MaintenanceRepository
	auditor     audit.Logger
	logger      *log.Logger
	now         func() time.Time
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock overrides the service clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAuditor attaches an audit logger.
func WithAuditor(auditor audit.Logger) ServiceOption {
	return func(s *Service) {
		s.auditor = auditor
	}
}

// NewService constructs a fleet service.
func NewService(
	companies fleet.CompanyRepository,
	branches fleet.BranchRepository,
	equipments fleet.EquipmentRepository,
	maintenance fleet.MaintenanceRepository,
	logger *log.Logger,
	opts ...ServiceOption,
) (*Service, error) {
	if companies == nil {
		return nil, errors.New("fleet service: nil company repository")
	}
	if branches == nil {
		return nil, errors.New("fleet service: nil branch repository")
	}
	if equipments == nil {
		return nil, errors.New("fleet service: nil equipment repository")
	}
	if maintenance == nil {
		return nil, errors.New("fleet service: nil maintenance repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		companies:   companies,
		branches:    branches,
		equipments:  equipments,
		maintenance: maintenance,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CompanyInput is the create/update payload for a company.
type CompanyInput struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Status       string `json:"status"`
}

// CreateCompany registers a company.
func (s *Service) CreateCompany(ctx context.Context, input CompanyInput) (*fleet.Company, error) {
	company := &fleet.Company{
		ID:           uuid.NewString(),
		Name:         input.Name,
		ContactEmail: input.ContactEmail,
		ContactPhone: input.ContactPhone,
		Status:       input.Status,
		CreatedAt:    s.now(),
	}
	if company.Status == "" {
		company.Status = fleet.CompanyStatusActive
	}
	if err := company.Validate(); err != nil {
		return nil, err
	}
	if err := s.companies.Save(ctx, company); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "company.create", "company", company.ID, "", input)
	return company, nil
}

// UpdateCompany mutates an existing company.
func (s *Service) UpdateCompany(ctx context.Context, id string, input CompanyInput) (*fleet.Company, error) {
	company, err := s.companies.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fleet.ErrNotFound
	}
	if input.Name != "" {
		company.Name = input.Name
	}
	if input.ContactEmail != "" {
		company.ContactEmail = input.ContactEmail
	}
	if input.ContactPhone != "" {
		company.ContactPhone = input.ContactPhone
	}
	if input.Status != "" {
		company.Status = input.Status
	}
	if err := company.Validate(); err != nil {
		return nil, err
	}
	if err := s.companies.Save(ctx, company); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "company.update", "company", company.ID, "", input)
	return company, nil
}

// GetCompany loads a company.
func (s *Service) GetCompany(ctx context.Context, id string) (*fleet.Company, error) {
	company, err := s.companies.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fleet.ErrNotFound
	}
	return company, nil
}

// ListCompanies pages through companies.
func (s *Service) ListCompanies(ctx context.Context, limit, offset int) ([]fleet.Company, error) {
	return s.companies.List(ctx, limit, offset)
}

// DeleteCompany removes a company.
func (s *Service) DeleteCompany(ctx context.Context, id string) error {
	company, err := s.companies.Get(ctx, id)
	if err != nil {
		return err
	}
	if company == nil {
		return fleet.ErrNotFound
	}
	if err := s.companies.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "company.delete", "company", id, "", nil)
	return nil
}

// BranchInput is the create/update payload for a branch.
type BranchInput struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
}

// CreateBranch registers a branch under a company.
func (s *Service) CreateBranch(ctx context.Context, input BranchInput) (*fleet.Branch, error) {
	company, err := s.companies.Get(ctx, input.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fleet.ErrNotFound
	}
	branch := &fleet.Branch{
		ID:        uuid.NewString(),
		CompanyID: input.CompanyID,
		Name:      input.Name,
		Address:   input.Address,
		CreatedAt: s.now(),
	}
	if err := branch.Validate(); err != nil {
		return nil, err
	}
	if err := s.branches.Save(ctx, branch); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "branch.create", "branch", branch.ID, "", input)
	return branch, nil
}

// UpdateBranch mutates an existing branch.
func (s *Service) UpdateBranch(ctx context.Context, id string, input BranchInput) (*fleet.Branch, error) {
	branch, err := s.branches.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, fleet.ErrNotFound
	}
	if input.Name != "" {
		branch.Name = input.Name
	}
	if input.Address != "" {
		branch.Address = input.Address
	}
	if err := branch.Validate(); err != nil {
		return nil, err
	}
	if err := s.branches.Save(ctx, branch); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "branch.update", "branch", branch.ID, "", input)
	return branch, nil
}

// GetBranch loads a branch.
func (s *Service) GetBranch(ctx context.Context, id string) (*fleet.Branch, error) {
	branch, err := s.branches.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, fleet.ErrNotFound
	}
	return branch, nil
}

// ListBranches pages through a company's branches.
func (s *Service) ListBranches(ctx context.Context, companyID string, limit, offset int) ([]fleet.Branch, error) {
	return s.branches.ListByCompany(ctx, companyID, limit, offset)
}

// DeleteBranch removes a branch.
func (s *Service) DeleteBranch(ctx context.Context, id string) error {
	branch, err := s.branches.Get(ctx, id)
	if err != nil {
		return err
	}
	if branch == nil {
		return fleet.ErrNotFound
	}
	if err := s.branches.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "branch.delete", "branch", id, "", nil)
	return nil
}

// EquipmentInput is the create/update payload for an equipment.
type EquipmentInput struct {
	Serial       string `json:"serial"`
	Type         string `json:"type"`
	BranchID     string `json:"branch_id"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	InstalledAt  string `json:"installed_at"`
}

// CreatedEquipment couples an equipment with its one-time ingest key.
// The key is only returned at creation time.
type CreatedEquipment struct {
	Equipment *fleet.Equipment `json:"equipment"`
	APIKey    string           `json:"api_key"`
}

// CreateEquipment registers an equipment and issues its ingest API key.
func (s *Service) CreateEquipment(ctx context.Context, input EquipmentInput) (*CreatedEquipment, error) {
	branch, err := s.branches.Get(ctx, input.BranchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, fleet.ErrNotFound
	}
	existing, err := s.equipments.GetBySerial(ctx, input.Serial)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("fleet service: serial already registered")
	}
	key, err := newAPIKey()
	if err != nil {
		return nil, err
	}
	equipment := &fleet.Equipment{
		ID:           uuid.NewString(),
		Serial:       input.Serial,
		Type:         input.Type,
		BranchID:     branch.ID,
		CompanyID:    branch.CompanyID,
		Manufacturer: input.Manufacturer,
		Model:        input.Model,
		Status:       fleet.StatusOperational,
		APIKey:       key,
		CreatedAt:    s.now(),
	}
	if input.InstalledAt != "" {
		installed, err := time.Parse(time.RFC3339, input.InstalledAt)
		if err != nil {
			return nil, errors.New("fleet service: invalid installed_at")
		}
		equipment.InstalledAt = installed.UTC()
	}
	if err := equipment.Validate(); err != nil {
		return nil, err
	}
	if err := s.equipments.Save(ctx, equipment); err != nil {
		return nil, err
	}
	s.logger.Printf("fleet: equipment %s registered serial=%s company=%s", equipment.ID, equipment.Serial, equipment.CompanyID)
	s.recordAudit(ctx, "equipment.create", "equipment", equipment.ID, equipment.ID, input)
	return &CreatedEquipment{Equipment: equipment, APIKey: key}, nil
}

// UpdateEquipment mutates descriptive fields of an equipment.
func (s *Service) UpdateEquipment(ctx context.Context, id string, input EquipmentInput) (*fleet.Equipment, error) {
	equipment, err := s.equipments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, fleet.ErrNotFound
	}
	if input.Type != "" {
		equipment.Type = input.Type
	}
	if input.Manufacturer != "" {
		equipment.Manufacturer = input.Manufacturer
	}
	if input.Model != "" {
		equipment.Model = input.Model
	}
	if input.BranchID != "" && input.BranchID != equipment.BranchID {
		branch, err := s.branches.Get(ctx, input.BranchID)
		if err != nil {
			return nil, err
		}
		if branch == nil {
			return nil, fleet.ErrNotFound
		}
		if branch.CompanyID != equipment.CompanyID {
			return nil, errors.New("fleet service: branch belongs to another company")
		}
		equipment.BranchID = branch.ID
	}
	if err := equipment.Validate(); err != nil {
		return nil, err
	}
	if err := s.equipments.Save(ctx, equipment); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "equipment.update", "equipment", equipment.ID, equipment.ID, input)
	return equipment, nil
}

// GetEquipment loads an equipment.
func (s *Service) GetEquipment(ctx context.Context, id string) (*fleet.Equipment, error) {
	equipment, err := s.equipments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, fleet.ErrNotFound
	}
	return equipment, nil
}

// ListEquipments pages through a company's equipment.
func (s *Service) ListEquipments(ctx context.Context, companyID string, limit, offset int) ([]fleet.Equipment, error) {
	return s.equipments.ListByCompany(ctx, companyID, limit, offset)
}

// DeleteEquipment removes an equipment.
func (s *Service) DeleteEquipment(ctx context.Context, id string) error {
	equipment, err := s.equipments.Get(ctx, id)
	if err != nil {
		return err
	}
	if equipment == nil {
		return fleet.ErrNotFound
	}
	if err := s.equipments.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "equipment.delete", "equipment", id, id, nil)
	return nil
}

// RotateAPIKey issues a fresh ingest key for an equipment.
func (s *Service) RotateAPIKey(ctx context.Context, id string) (*CreatedEquipment, error) {
	equipment, err := s.equipments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, fleet.ErrNotFound
	}
	key, err := newAPIKey()
	if err != nil {
		return nil, err
	}
	equipment.APIKey = key
	if err := s.equipments.Save(ctx, equipment); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "equipment.rotate_key", "equipment", id, id, nil)
	return &CreatedEquipment{Equipment: equipment, APIKey: key}, nil
}

// MaintenanceInput is the create payload for a maintenance record.
type MaintenanceInput struct {
	Type                string `json:"type"`
	Description         string `json:"description"`
	PerformedBy         string `json:"performed_by"`
	PerformedAt         string `json:"performed_at"`
	Notes               string `json:"notes"`
	NextMaintenanceDate string `json:"next_maintenance_date"`
}

// RecordMaintenance appends a maintenance record to an equipment.
func (s *Service) RecordMaintenance(ctx context.Context, equipmentID string, input MaintenanceInput) (*fleet.MaintenanceRecord, error) {
	equipment, err := s.equipments.Get(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, fleet.ErrNotFound
	}
	record := &fleet.MaintenanceRecord{
		ID:          uuid.NewString(),
		EquipmentID: equipmentID,
		Type:        input.Type,
		Description: input.Description,
		PerformedBy: input.PerformedBy,
		Notes:       input.Notes,
		CreatedBy:   auth.SubjectFromContext(ctx),
		PerformedAt: s.now(),
		CreatedAt:   s.now(),
	}
	if input.PerformedAt != "" {
		performed, err := time.Parse(time.RFC3339, input.PerformedAt)
		if err != nil {
			return nil, errors.New("fleet service: invalid performed_at")
		}
		record.PerformedAt = performed.UTC()
	}
	if input.NextMaintenanceDate != "" {
		next, err := time.Parse(time.RFC3339, input.NextMaintenanceDate)
		if err != nil {
			return nil, errors.New("fleet service: invalid next_maintenance_date")
		}
		record.NextMaintenanceDate = next.UTC()
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := s.maintenance.Save(ctx, record); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "maintenance.create", "maintenance_record", record.ID, equipmentID, input)
	return record, nil
}

// ListMaintenance pages through an equipment's maintenance history.
func (s *Service) ListMaintenance(ctx context.Context, equipmentID string, limit, offset int) ([]fleet.MaintenanceRecord, error) {
	equipment, err := s.equipments.Get(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, fleet.ErrNotFound
	}
	return s.maintenance.ListByEquipment(ctx, equipmentID, limit, offset)
}

func (s *Service) recordAudit(ctx context.Context, action, resourceType, resourceID, equipmentID string, payload any) {
	if s.auditor == nil {
		return
	}
	var metadata json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			metadata = data
		}
	}
	entry := audit.Entry{
		CompanyID:    auth.CompanyIDFromContext(ctx),
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		EquipmentID:  equipmentID,
		Metadata:     metadata,
	}
	if err := s.auditor.Log(ctx, entry); err != nil {
		s.logger.Printf("fleet: audit log failed action=%s: %v", action, err)
	}
}

func newAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

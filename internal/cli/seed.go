package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/pkg/utils"
)

// SeedFile is the master data file loaded by `travelctl seed`
type SeedFile struct {
	Roles        []string          `yaml:"roles"`
	Users        []SeedUser        `yaml:"users"`
	Policies     []SeedPolicy      `yaml:"policies"`
	Matrix       []SeedMatrixRule  `yaml:"matrix"`
	Applications []SeedApplication `yaml:"applications"`
}

// SeedUser is an employee; users are referenced by email elsewhere in the file
type SeedUser struct {
	Name             string   `yaml:"name"`
	Email            string   `yaml:"email"`
	Grade            string   `yaml:"grade"`
	LarkOpenID       string   `yaml:"lark_open_id"`
	ReportingManager string   `yaml:"reporting_manager"`
	Roles            []string `yaml:"roles"`
	Inactive         bool     `yaml:"inactive"`
}

// SeedPolicy is a travel policy row
type SeedPolicy struct {
	Name          string                 `yaml:"name"`
	Type          string                 `yaml:"type"`
	TravelMode    string                 `yaml:"travel_mode"`
	Parameters    map[string]interface{} `yaml:"parameters"`
	EffectiveFrom time.Time              `yaml:"effective_from"`
	EffectiveTo   *time.Time             `yaml:"effective_to"`
	Inactive      bool                   `yaml:"inactive"`
}

// SeedMatrixRule is an approval matrix row
type SeedMatrixRule struct {
	TravelMode   string           `yaml:"travel_mode"`
	Grade        string           `yaml:"grade"`
	MinAmount    decimal.Decimal  `yaml:"min_amount"`
	MaxAmount    *decimal.Decimal `yaml:"max_amount"`
	RequiresCEO  bool             `yaml:"requires_ceo"`
	RequiresCHRO bool             `yaml:"requires_chro"`
}

// SeedApplication is a draft travel application
type SeedApplication struct {
	Employee           string          `yaml:"employee"`
	Purpose            string          `yaml:"purpose"`
	EstimatedTotalCost decimal.Decimal `yaml:"estimated_total_cost"`
	Trips              []SeedTrip      `yaml:"trips"`
}

// SeedTrip is one trip leg
type SeedTrip struct {
	Origin        string        `yaml:"origin"`
	Destination   string        `yaml:"destination"`
	DepartureDate *time.Time    `yaml:"departure_date"`
	ReturnDate    *time.Time    `yaml:"return_date"`
	Bookings      []SeedBooking `yaml:"bookings"`
}

// SeedBooking is a transport booking
type SeedBooking struct {
	Mode          string                 `yaml:"mode"`
	EstimatedCost decimal.Decimal        `yaml:"estimated_cost"`
	Details       map[string]interface{} `yaml:"details"`
}

// SeedSummary counts what a seed run wrote
type SeedSummary struct {
	Roles          int
	Users          int
	Assignments    int
	Policies       int
	MatrixRules    int
	Applications   int
	ApplicationIDs []int64
}

// ParseSeedFile decodes and validates a seed file
func ParseSeedFile(r io.Reader) (*SeedFile, error) {
	var file SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return &file, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks references and formats before anything is written
func (f *SeedFile) Validate() error {
	emails := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		if strings.TrimSpace(u.Name) == "" {
			return fmt.Errorf("users[%d]: name is required", i)
		}
		if err := utils.ValidateEmail(u.Email); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		if err := utils.ValidateGrade(u.Grade); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		key := normalizeEmail(u.Email)
		if emails[key] {
			return fmt.Errorf("users[%d]: duplicate email %s", i, u.Email)
		}
		emails[key] = true
	}

	for i, p := range f.Policies {
		if p.Name == "" {
			return fmt.Errorf("policies[%d]: name is required", i)
		}
		if !entity.PolicyType(p.Type).IsValid() {
			return fmt.Errorf("policies[%d]: unknown type %q", i, p.Type)
		}
		if p.EffectiveFrom.IsZero() {
			return fmt.Errorf("policies[%d]: effective_from is required", i)
		}
	}

	for i, m := range f.Matrix {
		if m.TravelMode == "" || m.Grade == "" {
			return fmt.Errorf("matrix[%d]: travel_mode and grade are required", i)
		}
		if err := utils.ValidateAmount(m.MinAmount); err != nil {
			return fmt.Errorf("matrix[%d]: %w", i, err)
		}
		if m.MaxAmount != nil && m.MaxAmount.LessThan(m.MinAmount) {
			return fmt.Errorf("matrix[%d]: max_amount is below min_amount", i)
		}
	}

	for i, a := range f.Applications {
		if a.Employee == "" {
			return fmt.Errorf("applications[%d]: employee is required", i)
		}
		for j, t := range a.Trips {
			for k, b := range t.Bookings {
				if b.Mode == "" {
					return fmt.Errorf("applications[%d].trips[%d].bookings[%d]: mode is required", i, j, k)
				}
				if err := utils.ValidateAmount(b.EstimatedCost); err != nil {
					return fmt.Errorf("applications[%d].trips[%d].bookings[%d]: %w", i, j, k, err)
				}
			}
		}
	}
	return nil
}

// Seeder writes master data through the repositories
type Seeder struct {
	users     port.UserRepository
	roles     port.RoleRepository
	policies  port.PolicyRepository
	matrix    port.MatrixRepository
	apps      port.ApplicationRepository
	trips     port.TripRepository
	txManager port.TransactionManager
}

// NewSeeder creates a new seeder
func NewSeeder(
	users port.UserRepository,
	roles port.RoleRepository,
	policies port.PolicyRepository,
	matrix port.MatrixRepository,
	apps port.ApplicationRepository,
	trips port.TripRepository,
	txManager port.TransactionManager,
) *Seeder {
	return &Seeder{
		users:     users,
		roles:     roles,
		policies:  policies,
		matrix:    matrix,
		apps:      apps,
		trips:     trips,
		txManager: txManager,
	}
}

// Load writes the whole file in one transaction. Users and roles that already
// exist are reused, so a file can be loaded again to add applications.
func (s *Seeder) Load(ctx context.Context, file *SeedFile) (*SeedSummary, error) {
	summary := &SeedSummary{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		roleIDs, err := s.loadRoles(txCtx, file, summary)
		if err != nil {
			return err
		}
		userIDs, err := s.loadUsers(txCtx, file, roleIDs, summary)
		if err != nil {
			return err
		}
		if err := s.loadPolicies(txCtx, file, summary); err != nil {
			return err
		}
		return s.loadApplications(txCtx, file, userIDs, summary)
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *Seeder) loadRoles(ctx context.Context, file *SeedFile, summary *SeedSummary) (map[string]int64, error) {
	names := append([]string{}, file.Roles...)
	for _, u := range file.Users {
		names = append(names, u.Roles...)
	}

	ids := make(map[string]int64)
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := ids[key]; ok {
			continue
		}
		role, err := s.roles.GetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if role == nil {
			role = &entity.Role{Name: strings.TrimSpace(name)}
			if err := s.roles.Create(ctx, role); err != nil {
				return nil, err
			}
			summary.Roles++
		}
		ids[key] = role.ID
	}
	return ids, nil
}

func (s *Seeder) loadUsers(ctx context.Context, file *SeedFile, roleIDs map[string]int64, summary *SeedSummary) (map[string]int64, error) {
	ids := make(map[string]int64, len(file.Users))
	for _, su := range file.Users {
		existing, err := s.users.GetByEmail(ctx, su.Email)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			existing = &entity.User{
				Name:       strings.TrimSpace(su.Name),
				Email:      su.Email,
				Grade:      strings.ToUpper(strings.TrimSpace(su.Grade)),
				LarkOpenID: su.LarkOpenID,
				IsActive:   !su.Inactive,
			}
			if err := s.users.Create(ctx, existing); err != nil {
				return nil, err
			}
			summary.Users++
		}
		ids[normalizeEmail(su.Email)] = existing.ID

		for _, roleName := range su.Roles {
			if err := s.roles.Assign(ctx, &entity.UserRole{
				UserID:   existing.ID,
				RoleID:   roleIDs[strings.ToLower(strings.TrimSpace(roleName))],
				IsActive: true,
			}); err != nil {
				return nil, err
			}
			summary.Assignments++
		}
	}

	// managers may appear after their reports in the file
	for _, su := range file.Users {
		if su.ReportingManager == "" {
			continue
		}
		managerID, err := s.lookupUser(ctx, ids, su.ReportingManager)
		if err != nil {
			return nil, fmt.Errorf("reporting manager of %s: %w", su.Email, err)
		}
		if err := s.users.SetReportingManager(ctx, ids[normalizeEmail(su.Email)], &managerID); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (s *Seeder) loadPolicies(ctx context.Context, file *SeedFile, summary *SeedSummary) error {
	for _, sp := range file.Policies {
		params := "{}"
		if len(sp.Parameters) > 0 {
			raw, err := json.Marshal(sp.Parameters)
			if err != nil {
				return fmt.Errorf("policy %s: %w", sp.Name, err)
			}
			params = string(raw)
		}
		if err := s.policies.Create(ctx, &entity.TravelPolicy{
			Name:           sp.Name,
			PolicyType:     entity.PolicyType(sp.Type),
			TravelMode:     sp.TravelMode,
			RuleParameters: params,
			EffectiveFrom:  sp.EffectiveFrom,
			EffectiveTo:    sp.EffectiveTo,
			IsActive:       !sp.Inactive,
		}); err != nil {
			return err
		}
		summary.Policies++
	}

	for _, sm := range file.Matrix {
		if err := s.matrix.Create(ctx, &entity.ApprovalMatrixRule{
			TravelMode:   sm.TravelMode,
			Grade:        sm.Grade,
			MinAmount:    sm.MinAmount,
			MaxAmount:    sm.MaxAmount,
			RequiresCEO:  sm.RequiresCEO,
			RequiresCHRO: sm.RequiresCHRO,
			IsActive:     true,
		}); err != nil {
			return err
		}
		summary.MatrixRules++
	}
	return nil
}

func (s *Seeder) loadApplications(ctx context.Context, file *SeedFile, userIDs map[string]int64, summary *SeedSummary) error {
	for _, sa := range file.Applications {
		employeeID, err := s.lookupUser(ctx, userIDs, sa.Employee)
		if err != nil {
			return fmt.Errorf("application %q: %w", sa.Purpose, err)
		}

		app := &entity.TravelApplication{
			EmployeeID:         employeeID,
			Purpose:            sa.Purpose,
			EstimatedTotalCost: sa.EstimatedTotalCost,
		}
		if err := s.apps.Create(ctx, app); err != nil {
			return err
		}

		for _, st := range sa.Trips {
			trip := &entity.TripSegment{
				ApplicationID: app.ID,
				Origin:        st.Origin,
				Destination:   st.Destination,
				DepartureDate: st.DepartureDate,
				ReturnDate:    st.ReturnDate,
			}
			if err := s.trips.Create(ctx, trip); err != nil {
				return err
			}
			for _, sb := range st.Bookings {
				if err := s.trips.CreateBooking(ctx, &entity.Booking{
					TripID:         trip.ID,
					ModeName:       sb.Mode,
					EstimatedCost:  sb.EstimatedCost,
					BookingDetails: sb.Details,
				}); err != nil {
					return err
				}
			}
		}
		summary.Applications++
		summary.ApplicationIDs = append(summary.ApplicationIDs, app.ID)
	}
	return nil
}

// lookupUser resolves an email against the file first, then the database
func (s *Seeder) lookupUser(ctx context.Context, ids map[string]int64, email string) (int64, error) {
	if id, ok := ids[normalizeEmail(email)]; ok {
		return id, nil
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if u == nil {
		return 0, fmt.Errorf("user %s: %w", email, port.ErrNotFound)
	}
	return u.ID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

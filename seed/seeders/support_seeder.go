package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/services/ledger"
	"github.com/koolaai/support_api/services/repositories"
	"github.com/koolaai/support_api/shared"
	"gorm.io/gorm"
)

type StaffMember struct {
	ID    string
	Email string
	Role  shared.Role
}

var DefaultStaff = []StaffMember{
	{ID: "00000000-0000-7000-8000-000000000001", Email: "admin@koolaai.com", Role: shared.RoleSuperAdmin},
	{ID: "00000000-0000-7000-8000-000000000002", Email: "agent@koolaai.com", Role: shared.RoleOperator},
}

const demoOwnerID = "00000000-0000-7000-8000-0000000000aa"

type MainSeeder struct {
	db       *gorm.DB
	profiles *repositories.ProfileRepository
	ledger   *ledger.Ledger
}

func NewMainSeeder(db *gorm.DB) *MainSeeder {
	return &MainSeeder{
		db:       db,
		profiles: repositories.NewProfileRepository(db),
		ledger:   ledger.New(repositories.NewConversationRepository(db)),
	}
}

func (s *MainSeeder) Migrate() error {
	return s.db.AutoMigrate(model.AllModels()...)
}

func (s *MainSeeder) SeedAll(ctx context.Context) error {
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := s.SeedStaff(ctx); err != nil {
		return err
	}
	return s.SeedDemoConversation(ctx)
}

// SeedStaff upserts the support staff profiles.
func (s *MainSeeder) SeedStaff(ctx context.Context) error {
	for _, m := range DefaultStaff {
		if err := s.profiles.Sync(ctx, m.ID, m.Email, m.Role.String()); err != nil {
			return fmt.Errorf("seed staff %s: %w", m.Email, err)
		}
		log.Printf("Seeded %s (%s)", m.Email, m.Role)
	}
	return nil
}

// SeedDemoConversation opens a conversation for a demo customer with one
// message per side. Running it again appends to the same open conversation.
func (s *MainSeeder) SeedDemoConversation(ctx context.Context) error {
	if err := s.profiles.Sync(ctx, demoOwnerID, "customer@example.com", shared.RoleOwner.String()); err != nil {
		return fmt.Errorf("seed demo customer: %w", err)
	}

	conv, err := s.ledger.ResolveOwnerConversation(ctx, demoOwnerID)
	if err != nil {
		return fmt.Errorf("open demo conversation: %w", err)
	}

	agent := DefaultStaff[1]
	messages := []model.Message{
		{SenderRole: shared.SideOwner, SenderID: demoOwnerID, Body: "Hi, my order has not arrived yet."},
		{SenderRole: shared.SideOperator, SenderID: agent.ID, Body: "Thanks for reaching out, we are looking into it."},
	}
	for _, msg := range messages {
		if _, _, err := s.ledger.Append(ctx, conv.ID, msg); err != nil {
			return fmt.Errorf("append demo message: %w", err)
		}
	}

	log.Printf("Seeded demo conversation %s", conv.ID)
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"despesas/internal/core"
	"despesas/internal/storage"
)

const demoUserName = "Usuário Demo"

// ErrDemoDisabled is returned when no demo credentials are configured.
var ErrDemoDisabled = fmt.Errorf("%w: demo user not configured", core.ErrNotFound)

// DemoConfig holds the demo account credentials.
type DemoConfig struct {
	Email    string
	Password string
}

func (c DemoConfig) Enabled() bool {
	return c.Email != "" && c.Password != ""
}

type demoExpense struct {
	name, description, category string
	amount                      string
	dueDay                      int
}

var demoExpenses = []demoExpense{
	{"Aluguel", "Pagamento mensal do aluguel", "Casa", "1200.00", 5},
	{"Condomínio", "Taxa mensal do condomínio", "Casa", "280.00", 8},
	{"Conta de Luz", "Energia elétrica residencial", "Casa", "150.00", 12},
	{"Internet", "Plano de internet residencial", "Serviços", "89.90", 15},
	{"Academia", "Mensalidade da academia", "Saúde", "75.00", 10},
	{"Plano de Saúde", "Plano médico familiar", "Saúde", "320.00", 18},
	{"Netflix", "Assinatura de streaming de vídeo", "Assinaturas", "29.90", 20},
	{"Spotify", "Assinatura de música premium", "Assinaturas", "16.90", 22},
	{"Celular", "Plano do telefone celular", "Tecnologia", "49.90", 8},
	{"Combustível", "Gasolina mensal do carro", "Carro", "350.00", 25},
	{"Supermercado", "Compras mensais de alimentação", "Alimentação", "800.00", 1},
	{"Transporte Público", "Passe mensal de ônibus/metrô", "Transporte", "120.00", 3},
}

var demoPaymentMethods = []string{"Cartão de Crédito", "PIX", "Débito Automático", "Boleto"}

// DemoResult summarizes a reset.
type DemoResult struct {
	UserID   string
	Expenses int
	Payments int
	ResetAt  time.Time
}

// DemoService maintains a shared demo account whose data is replaced by a
// fixed sample on every reset.
type DemoService struct {
	store storage.Store
	users *UserService
	cfg   DemoConfig
	now   Clock
}

func NewDemoService(store storage.Store, users *UserService, cfg DemoConfig, now Clock) *DemoService {
	if now == nil {
		now = systemClock
	}
	return &DemoService{store: store, users: users, cfg: cfg, now: now}
}

// Credentials returns the configured demo login.
func (s *DemoService) Credentials() (DemoConfig, error) {
	if !s.cfg.Enabled() {
		return DemoConfig{}, ErrDemoDisabled
	}
	return s.cfg, nil
}

// EnsureDemoUser creates the demo account or refreshes its password.
func (s *DemoService) EnsureDemoUser(ctx context.Context) (core.User, error) {
	if !s.cfg.Enabled() {
		return core.User{}, ErrDemoDisabled
	}
	u, err := s.users.EnsureUser(ctx, demoUserName, s.cfg.Email, s.cfg.Password)
	if err != nil {
		return core.User{}, fmt.Errorf("ensure demo user: %w", err)
	}
	return u, nil
}

// Initialize ensures the demo account and resets its data.
func (s *DemoService) Initialize(ctx context.Context) (core.User, DemoResult, error) {
	u, err := s.EnsureDemoUser(ctx)
	if err != nil {
		return core.User{}, DemoResult{}, err
	}
	res, err := s.Reset(ctx)
	if err != nil {
		return core.User{}, DemoResult{}, err
	}
	return u, res, nil
}

// Reset deletes everything the demo account owns and seeds the sample data,
// creating the account first on a fresh store.
// The previous month is fully paid and every other expense of the current
// month is paid.
func (s *DemoService) Reset(ctx context.Context) (DemoResult, error) {
	if !s.cfg.Enabled() {
		return DemoResult{}, ErrDemoDisabled
	}
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(s.cfg.Email))
	if errors.Is(err, core.ErrNotFound) {
		u, err = s.EnsureDemoUser(ctx)
	}
	if err != nil {
		return DemoResult{}, err
	}

	if err := s.clear(ctx, u.ID); err != nil {
		return DemoResult{}, err
	}

	now := s.now()
	res := DemoResult{UserID: u.ID, ResetAt: now}
	current := core.MonthOf(now)
	previous := current.AddMonths(-1)
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i, d := range demoExpenses {
		e := core.Expense{
			OwnerID:     u.ID,
			Name:        d.name,
			Description: d.description,
			Amount:      decimal.RequireFromString(d.amount),
			DueDay:      d.dueDay,
			StartDate:   start,
			Category:    d.category,
			Status:      core.StatusActive,
		}
		if err := s.store.CreateExpense(ctx, &e); err != nil {
			return res, fmt.Errorf("seed %s: %w", d.name, err)
		}
		res.Expenses++

		paid := []core.Month{previous}
		if i%2 == 0 {
			paid = append(paid, current)
		}
		for _, m := range paid {
			if m.Before(e.StartMonth()) {
				continue
			}
			p := core.Payment{
				ExpenseID: e.ID,
				Month:     m.String(),
				Amount:    e.Amount,
				PaidAt:    m.DueDate(e.DueDay),
				Method:    demoPaymentMethods[i%len(demoPaymentMethods)],
				Note:      "Pagamento automático - " + e.Name,
				Status:    core.PaymentConfirmed,
			}
			if err := s.store.CreatePayment(ctx, &p); err != nil {
				return res, fmt.Errorf("seed payment %s/%s: %w", d.name, m, err)
			}
			res.Payments++
		}
	}

	slog.InfoContext(ctx, "Demo data reset",
		"user_id", u.ID,
		"expenses", res.Expenses,
		"payments", res.Payments)
	return res, nil
}

func (s *DemoService) clear(ctx context.Context, userID string) error {
	ids, err := s.store.ListExpenseIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("list demo expenses: %w", err)
	}
	for _, id := range ids {
		if _, err := s.store.DeleteVariants(ctx, id); err != nil {
			return fmt.Errorf("clear variants of %s: %w", id, err)
		}
		if _, err := s.store.DeletePayments(ctx, id); err != nil {
			return fmt.Errorf("clear payments of %s: %w", id, err)
		}
		if err := s.store.DeleteExpense(ctx, userID, id); err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("clear expense %s: %w", id, err)
		}
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rupeeflow/loan-engine/internal/config"
	"github.com/rupeeflow/loan-engine/internal/domain"
	"github.com/rupeeflow/loan-engine/internal/repository"
	customError "github.com/rupeeflow/loan-engine/pkg/errors"
)

// keyedMutex hands out one mutex per loan id so payment application is a
// serialized read-modify-write per loan while unrelated loans proceed in
// parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}

type LoanService struct {
	loanRepo    repository.LoanRepository
	paymentRepo repository.PaymentRepository
	redis       *redis.Client
	config      *config.Config
	log         *logrus.Logger
	loanLocks   keyedMutex
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	redisClient *redis.Client,
	cfg *config.Config,
	log *logrus.Logger,
) *LoanService {
	if log == nil {
		log = logrus.New()
	}
	return &LoanService{
		loanRepo:    loanRepo,
		paymentRepo: paymentRepo,
		redis:       redisClient,
		config:      cfg,
		log:         log,
	}
}

// CreateLoan validates the terms, generates the full installment schedule and
// persists the new ledger.
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, []*domain.Installment, error) {
	existingLoan, err := s.loanRepo.GetByLoanID(ctx, request.LoanID)
	if err == nil && existingLoan != nil {
		return nil, nil, customError.WrapLoanAlreadyExists(request.LoanID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	now := time.Now()
	startDate := now.Truncate(24 * time.Hour)
	if request.StartDate != nil {
		startDate = *request.StartDate
	}
	frequency := request.PaymentFrequency
	if frequency == "" {
		frequency = s.config.Business.DefaultPaymentFrequency
	}
	dueDay := request.InstallmentDueDay
	if dueDay == 0 {
		dueDay = s.config.Business.DefaultInstallmentDay
	}

	loan := &domain.Loan{
		ID:                 uuid.New(),
		LoanID:             request.LoanID,
		UserID:             request.UserID,
		Principal:          request.Principal,
		AnnualInterestRate: request.AnnualInterestRate,
		TenureInstallments: request.TenureInstallments,
		PaymentFrequency:   frequency,
		StartDate:          startDate,
		InstallmentDueDay:  dueDay,
		TotalPaid:          decimal.Zero,
		PrincipalPaid:      decimal.Zero,
		InterestPaid:       decimal.Zero,
		RemainingBalance:   request.Principal,
		Status:             domain.LoanStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := loan.Validate(); err != nil {
		return nil, nil, customError.WrapValidation(err)
	}

	quote, err := domain.ComputeInstallmentAmount(loan.Principal, loan.AnnualInterestRate, loan.TenureInstallments, loan.PaymentFrequency)
	if err != nil {
		return nil, nil, customError.WrapArithmeticDegenerate(err.Error())
	}
	loan.InstallmentAmount = quote.InstallmentAmount

	schedule, err := domain.GenerateSchedule(loan)
	if err != nil {
		return nil, nil, customError.WrapArithmeticDegenerate(err.Error())
	}
	for _, inst := range schedule {
		inst.ID = uuid.New()
		inst.CreatedAt = now
	}

	loan.RecomputeNextDue(schedule)

	if err := loan.CheckInvariants(schedule); err != nil {
		s.log.WithField("loan_id", loan.LoanID).WithError(err).Error("generated schedule failed invariant check")
		return nil, nil, customError.WrapConsistencyViolation(loan.LoanID, err)
	}

	if err = s.loanRepo.Create(ctx, loan); err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	if err = s.loanRepo.CreateSchedule(ctx, schedule); err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	s.cacheLoan(ctx, loan)

	s.log.WithFields(logrus.Fields{
		"loan_id":            loan.LoanID,
		"principal":          loan.Principal.String(),
		"installment_amount": loan.InstallmentAmount.String(),
		"tenure":             loan.TenureInstallments,
	}).Info("loan created")

	return loan, schedule, nil
}

// RecordPayment applies one payment event to the ledger. The whole
// read-modify-write runs under the loan's mutex and the resulting writes
// commit in a single transaction.
func (s *LoanService) RecordPayment(ctx context.Context, loanID string, request *domain.RecordPaymentRequest) (*domain.Loan, *domain.Payment, error) {
	if request.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, customError.WrapValidation(domain.ErrInvalidPaymentAmount)
	}
	if request.EMINumber <= 0 {
		return nil, nil, customError.WrapValidation(domain.ErrInvalidInstallmentNo)
	}
	if request.LateFee.IsNegative() {
		return nil, nil, customError.WrapValidation(fmt.Errorf("late fee must not be negative"))
	}

	lock := s.loanLocks.get(loanID)
	lock.Lock()
	defer lock.Unlock()

	loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, nil, customError.WrapDatabaseError(err)
	}

	schedule, err := s.loanRepo.GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	now := time.Now()
	paymentDate := now
	if request.PaymentDate != nil {
		paymentDate = *request.PaymentDate
	}

	loan.RefreshOverdue(schedule, now)

	payment, err := loan.ApplyPayment(schedule, request.Amount, request.EMINumber, paymentDate, request.LateFee, request.PaymentMethod, request.Notes)
	if err != nil {
		if errors.Is(err, domain.ErrInstallmentNotFound) {
			return nil, nil, customError.WrapInstallmentNotFound(loanID, request.EMINumber)
		}
		if errors.Is(err, domain.ErrConsistencyViolation) {
			s.log.WithFields(logrus.Fields{
				"loan_id":    loanID,
				"emi_number": request.EMINumber,
				"amount":     request.Amount.String(),
			}).WithError(err).Error("payment rejected: ledger invariant violated")
			return nil, nil, customError.WrapConsistencyViolation(loanID, err)
		}
		return nil, nil, err
	}

	var target *domain.Installment
	for _, inst := range schedule {
		if inst.InstallmentNumber == request.EMINumber {
			target = inst
			break
		}
	}

	if err := s.loanRepo.ApplyPayment(ctx, loan, target, payment); err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	s.invalidateLoanCache(ctx, loanID)

	entry := s.log.WithFields(logrus.Fields{
		"loan_id":           loanID,
		"emi_number":        request.EMINumber,
		"amount":            request.Amount.String(),
		"remaining_balance": loan.RemainingBalance.String(),
	})
	if loan.Status == domain.LoanStatusCompleted {
		entry.Info("loan fully repaid")
	} else {
		entry.Info("payment recorded")
	}

	return loan, payment, nil
}

// GetLoan returns the ledger summary with the overdue projection refreshed.
func (s *LoanService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	if loan, ok := s.cachedLoan(ctx, loanID); ok {
		return loan, nil
	}

	loan, schedule, err := s.loadLedger(ctx, loanID)
	if err != nil {
		return nil, err
	}

	loan.RefreshOverdue(schedule, time.Now())
	s.cacheLoan(ctx, loan)

	return loan, nil
}

// GetSchedule returns the full installment sequence, with overdue derived at
// read time. The stored schedule is not mutated by the call.
func (s *LoanService) GetSchedule(ctx context.Context, loanID string) ([]*domain.Installment, error) {
	loan, schedule, err := s.loadLedger(ctx, loanID)
	if err != nil {
		return nil, err
	}

	loan.RefreshOverdue(schedule, time.Now())

	return schedule, nil
}

// GetPayments returns the payment history in recorded order.
func (s *LoanService) GetPayments(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	if _, err := s.loanRepo.GetByLoanID(ctx, loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	payments, err := s.paymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return payments, nil
}

// GetOverdueInstallments lists the installments currently overdue for a loan.
func (s *LoanService) GetOverdueInstallments(ctx context.Context, loanID string) ([]*domain.Installment, error) {
	if _, err := s.loanRepo.GetByLoanID(ctx, loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	installments, err := s.loanRepo.GetOverdueInstallments(ctx, loanID, time.Now())
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return installments, nil
}

// CalculateEMI is the stateless quote path: no loan is created or read.
func (s *LoanService) CalculateEMI(ctx context.Context, request *domain.CalculateEMIRequest) (*domain.CalculateEMIResponse, error) {
	if request.PrincipalAmount.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapValidation(domain.ErrInvalidPrincipal)
	}
	if request.TenureMonths <= 0 || request.TenureMonths > domain.MaxTenureInstallments {
		return nil, customError.WrapValidation(domain.ErrInvalidTenure)
	}

	quote, err := domain.ComputeInstallmentAmount(request.PrincipalAmount, request.InterestRate, request.TenureMonths, domain.FrequencyMonthly)
	if err != nil {
		return nil, customError.WrapArithmeticDegenerate(err.Error())
	}

	return &domain.CalculateEMIResponse{
		EMIAmount:     quote.InstallmentAmount,
		TotalAmount:   quote.TotalAmount,
		TotalInterest: quote.TotalInterest,
	}, nil
}

// UpcomingDues scans all active loans and returns those whose next installment
// falls due within the window. Read-only, no cross-loan transaction.
func (s *LoanService) UpcomingDues(ctx context.Context, within time.Duration) ([]*domain.UpcomingDue, error) {
	loans, err := s.loanRepo.GetActiveLoans(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	horizon := time.Now().Add(within)
	dues := make([]*domain.UpcomingDue, 0)
	for _, loan := range loans {
		if loan.NextDueDate == nil || loan.NextDueDate.After(horizon) {
			continue
		}
		dues = append(dues, &domain.UpcomingDue{
			LoanID:    loan.LoanID,
			UserID:    loan.UserID,
			DueDate:   *loan.NextDueDate,
			DueAmount: loan.NextDueAmount,
		})
	}

	return dues, nil
}

// CacheUpcomingDues warms the redis read model the notification collaborator
// consumes. Delivery itself is out of scope here.
func (s *LoanService) CacheUpcomingDues(ctx context.Context, within time.Duration) (int, error) {
	dues, err := s.UpcomingDues(ctx, within)
	if err != nil {
		return 0, err
	}

	if s.redis != nil {
		payload, err := json.Marshal(dues)
		if err != nil {
			return 0, err
		}
		if err := s.redis.Set(ctx, "loans:upcoming_dues", payload, s.config.GetCacheTTL()).Err(); err != nil {
			return 0, customError.WrapCacheError(err)
		}
	}

	return len(dues), nil
}

// SweepOverdue persists the overdue projection so SQL-side reporting matches
// what read paths derive. The projection itself stays lazy; this never drives
// business decisions.
func (s *LoanService) SweepOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	updated, err := s.loanRepo.MarkOverdue(ctx, asOf)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	if updated > 0 {
		s.log.WithField("installments", updated).Info("overdue sweep updated installments")
	}

	return updated, nil
}

func (s *LoanService) loadLedger(ctx context.Context, loanID string) (*domain.Loan, []*domain.Installment, error) {
	loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, nil, customError.WrapDatabaseError(err)
	}

	schedule, err := s.loanRepo.GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	return loan, schedule, nil
}

func loanCacheKey(loanID string) string {
	return fmt.Sprintf("loan:%s", loanID)
}

func (s *LoanService) cacheLoan(ctx context.Context, loan *domain.Loan) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(loan)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, loanCacheKey(loan.LoanID), payload, s.config.GetCacheTTL()).Err(); err != nil {
		s.log.WithField("loan_id", loan.LoanID).WithError(err).Warn("caching loan summary failed")
	}
}

func (s *LoanService) cachedLoan(ctx context.Context, loanID string) (*domain.Loan, bool) {
	if s.redis == nil {
		return nil, false
	}
	payload, err := s.redis.Get(ctx, loanCacheKey(loanID)).Bytes()
	if err != nil {
		return nil, false
	}
	var loan domain.Loan
	if err := json.Unmarshal(payload, &loan); err != nil {
		return nil, false
	}
	return &loan, true
}

func (s *LoanService) invalidateLoanCache(ctx context.Context, loanID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, loanCacheKey(loanID)).Err(); err != nil {
		s.log.WithField("loan_id", loanID).WithError(err).Warn("invalidating loan cache failed")
	}
}

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rupeeflow/loan-engine/internal/config"
	"github.com/rupeeflow/loan-engine/internal/domain"
	"github.com/rupeeflow/loan-engine/internal/handler"
	"github.com/rupeeflow/loan-engine/internal/repository"
	"github.com/rupeeflow/loan-engine/internal/service"
)

var (
	testDB  *sqlx.DB
	testCfg *config.Config
)

func TestMain(m *testing.M) {
	setup()
	code := m.Run()
	teardown()
	os.Exit(code)
}

func setup() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("skipping e2e tests: %v\n", err)
		return
	}

	// A reachable postgres server is required; without one every test skips.
	cfg.Database.Name = "postgres"
	adminDB, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		fmt.Printf("skipping e2e tests: %v\n", err)
		return
	}
	defer adminDB.Close()

	testDBName := "loan_engine_e2e"
	adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", testDBName))
	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", testDBName)); err != nil {
		fmt.Printf("skipping e2e tests: %v\n", err)
		return
	}

	cfg.Database.Name = testDBName
	testDB, err = sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		fmt.Printf("skipping e2e tests: %v\n", err)
		testDB = nil
		return
	}

	if err := executeInitSQL(testDB); err != nil {
		panic(fmt.Sprintf("Failed to initialize database schema: %v", err))
	}

	testCfg = cfg
}

func teardown() {
	if testDB == nil {
		return
	}
	testDB.Close()

	cfg, _ := config.Load()
	cfg.Database.Name = "postgres"

	adminDB, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return
	}
	defer adminDB.Close()

	adminDB.Exec("DROP DATABASE IF EXISTS loan_engine_e2e")
}

func executeInitSQL(db *sqlx.DB) error {
	sqlBytes, err := os.ReadFile("../../scripts/init.sql")
	if err != nil {
		return fmt.Errorf("failed to read init.sql: %w", err)
	}

	if _, err := db.Exec(string(sqlBytes)); err != nil {
		return fmt.Errorf("failed to execute init.sql: %w", err)
	}

	return nil
}

func setupTestEnvironment(t *testing.T) (*httptest.Server, func()) {
	if testDB == nil {
		t.Skip("postgres is not available")
	}
	cleanupTestData(testDB)

	// Redis is optional: the service degrades to uncached reads without it.
	var redisClient *redis.Client
	candidate := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", testCfg.Redis.Host, testCfg.Redis.Port),
		DB:   1,
	})
	if err := candidate.Ping(context.Background()).Err(); err == nil {
		redisClient = candidate
		redisClient.FlushDB(context.Background())
	}

	loanRepo := repository.NewLoanRepository(testDB)
	paymentRepo := repository.NewPaymentRepository(testDB)
	loanService := service.NewLoanService(loanRepo, paymentRepo, redisClient, testCfg, nil)
	loanHandler := handler.NewLoanHandler(loanService)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/loans", loanHandler.CreateLoan).Methods("POST")
	api.HandleFunc("/loans/calculate-emi", loanHandler.CalculateEMI).Methods("POST")
	api.HandleFunc("/loans/{loanId}", loanHandler.GetLoan).Methods("GET")
	api.HandleFunc("/loans/{loanId}/payments", loanHandler.RecordPayment).Methods("POST")
	api.HandleFunc("/loans/{loanId}/payments", loanHandler.GetPayments).Methods("GET")
	api.HandleFunc("/loans/{loanId}/emi-schedule", loanHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/loans/{loanId}/overdue", loanHandler.GetOverdue).Methods("GET")

	server := httptest.NewServer(router)

	cleanup := func() {
		cleanupTestData(testDB)
		if redisClient != nil {
			redisClient.FlushDB(context.Background())
			redisClient.Close()
		}
	}

	return server, cleanup
}

func cleanupTestData(db *sqlx.DB) {
	db.Exec("DELETE FROM payments")
	db.Exec("DELETE FROM installments")
	db.Exec("DELETE FROM loans")
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) int {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func decodeData(t *testing.T, raw json.RawMessage, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, out))
}

// TestLoanEngineEndToEnd walks the full repayment lifecycle against a real
// database: disburse, inspect, pay on schedule, underpay, and settle.
func TestLoanEngineEndToEnd(t *testing.T) {
	server, cleanup := setupTestEnvironment(t)
	defer cleanup()
	defer server.Close()

	loanID := "LOAN-E2E-001"
	emi := decimal.NewFromInt(10258)

	t.Log("Step 1: creating the loan")
	var created envelope
	status := postJSON(t, server.URL+"/api/v1/loans", domain.CreateLoanRequest{
		LoanID:             loanID,
		UserID:             "USER-E2E",
		Principal:          decimal.NewFromInt(500000),
		AnnualInterestRate: decimal.NewFromFloat(8.5),
		TenureInstallments: 60,
		PaymentFrequency:   domain.FrequencyMonthly,
		InstallmentDueDay:  5,
	}, &created)
	require.Equal(t, http.StatusCreated, status)

	var createResp domain.CreateLoanResponse
	decodeData(t, created.Data, &createResp)
	assert.Equal(t, loanID, createResp.Loan.LoanID)
	assert.True(t, emi.Equal(createResp.Loan.InstallmentAmount))
	assert.Len(t, createResp.Schedule, 60)
	assert.True(t, decimal.NewFromInt(500000).Equal(createResp.Loan.RemainingBalance))

	t.Log("Step 2: duplicate loan id is rejected")
	status = postJSON(t, server.URL+"/api/v1/loans", domain.CreateLoanRequest{
		LoanID:             loanID,
		Principal:          decimal.NewFromInt(100),
		TenureInstallments: 1,
	}, nil)
	assert.Equal(t, http.StatusConflict, status)

	t.Log("Step 3: reading the ledger back")
	var fetched envelope
	status = getJSON(t, server.URL+"/api/v1/loans/"+loanID, &fetched)
	require.Equal(t, http.StatusOK, status)

	var loan domain.Loan
	decodeData(t, fetched.Data, &loan)
	require.NotNil(t, loan.NextDueDate)
	assert.True(t, emi.Equal(loan.NextDueAmount))
	assert.Equal(t, domain.LoanStatusActive, loan.Status)

	t.Log("Step 4: paying the first installment in full")
	var paid envelope
	status = postJSON(t, server.URL+"/api/v1/loans/"+loanID+"/payments", domain.RecordPaymentRequest{
		Amount:    emi,
		EMINumber: 1,
	}, &paid)
	require.Equal(t, http.StatusOK, status)

	var payResp domain.RecordPaymentResponse
	decodeData(t, paid.Data, &payResp)
	assert.True(t, emi.Equal(payResp.Loan.TotalPaid))
	assert.True(t, decimal.NewFromInt(3542).Equal(payResp.Loan.InterestPaid))
	assert.True(t, decimal.NewFromInt(6716).Equal(payResp.Loan.PrincipalPaid))
	assert.True(t, decimal.NewFromInt(493284).Equal(payResp.Loan.RemainingBalance))
	assert.Equal(t, 1, payResp.Payment.InstallmentNumber)

	t.Log("Step 5: underpaying the second installment")
	status = postJSON(t, server.URL+"/api/v1/loans/"+loanID+"/payments", domain.RecordPaymentRequest{
		Amount:    decimal.NewFromInt(3000),
		EMINumber: 2,
	}, &paid)
	require.Equal(t, http.StatusOK, status)

	decodeData(t, paid.Data, &payResp)
	// Interest is charged first; 3000 does not cover it so the principal
	// portion of this payment is negative.
	assert.True(t, payResp.Payment.PrincipalPaid.IsNegative())
	assert.True(t, decimal.NewFromInt(13258).Equal(payResp.Loan.TotalPaid))
	assert.True(t, payResp.Loan.RemainingBalance.GreaterThan(decimal.NewFromInt(493284)))

	t.Log("Step 6: re-paying an installment appends a second record")
	status = postJSON(t, server.URL+"/api/v1/loans/"+loanID+"/payments", domain.RecordPaymentRequest{
		Amount:    emi,
		EMINumber: 1,
	}, &paid)
	require.Equal(t, http.StatusOK, status)

	var payments envelope
	status = getJSON(t, server.URL+"/api/v1/loans/"+loanID+"/payments", &payments)
	require.Equal(t, http.StatusOK, status)

	var paymentsResp domain.PaymentsResponse
	decodeData(t, payments.Data, &paymentsResp)
	assert.Len(t, paymentsResp.Payments, 3)

	t.Log("Step 7: unknown installment number is a 404")
	status = postJSON(t, server.URL+"/api/v1/loans/"+loanID+"/payments", domain.RecordPaymentRequest{
		Amount:    emi,
		EMINumber: 61,
	}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	t.Log("Step 8: schedule reflects paid and pending installments")
	var schedule envelope
	status = getJSON(t, server.URL+"/api/v1/loans/"+loanID+"/emi-schedule", &schedule)
	require.Equal(t, http.StatusOK, status)

	var scheduleResp domain.ScheduleResponse
	decodeData(t, schedule.Data, &scheduleResp)
	require.Len(t, scheduleResp.Schedule, 60)
	assert.Equal(t, domain.InstallmentStatusPaid, scheduleResp.Schedule[0].Status)
	assert.Equal(t, domain.InstallmentStatusPaid, scheduleResp.Schedule[1].Status)

	t.Log("Step 9: stateless EMI quote matches the disbursed loan")
	var quote envelope
	status = postJSON(t, server.URL+"/api/v1/loans/calculate-emi", domain.CalculateEMIRequest{
		PrincipalAmount: decimal.NewFromInt(500000),
		InterestRate:    decimal.NewFromFloat(8.5),
		TenureMonths:    60,
	}, &quote)
	require.Equal(t, http.StatusOK, status)

	var quoteResp domain.CalculateEMIResponse
	decodeData(t, quote.Data, &quoteResp)
	assert.True(t, emi.Equal(quoteResp.EMIAmount))
	assert.True(t, decimal.NewFromInt(615480).Equal(quoteResp.TotalAmount))
	assert.True(t, decimal.NewFromInt(115480).Equal(quoteResp.TotalInterest))
}

// TestLoanEngineOverdueProjection backdates a schedule and checks the
// read-time overdue projection.
func TestLoanEngineOverdueProjection(t *testing.T) {
	server, cleanup := setupTestEnvironment(t)
	defer cleanup()
	defer server.Close()

	loanID := "LOAN-E2E-002"
	start := decimal.NewFromInt(120000)

	var created envelope
	status := postJSON(t, server.URL+"/api/v1/loans", domain.CreateLoanRequest{
		LoanID:             loanID,
		Principal:          start,
		AnnualInterestRate: decimal.Zero,
		TenureInstallments: 12,
		PaymentFrequency:   domain.FrequencyMonthly,
		InstallmentDueDay:  1,
	}, &created)
	require.Equal(t, http.StatusCreated, status)

	// Backdate the first two installments so they are past due.
	_, err := testDB.Exec(
		`UPDATE installments SET due_date = NOW() - INTERVAL '30 days' WHERE loan_id = $1 AND installment_number <= 2`,
		loanID,
	)
	require.NoError(t, err)

	var overdue envelope
	status = getJSON(t, server.URL+"/api/v1/loans/"+loanID+"/overdue", &overdue)
	require.Equal(t, http.StatusOK, status)

	var overdueResp domain.ScheduleResponse
	decodeData(t, overdue.Data, &overdueResp)
	require.Len(t, overdueResp.Schedule, 2)
	assert.Equal(t, 1, overdueResp.Schedule[0].InstallmentNumber)

	// Paying a backdated installment removes it from the projection.
	status = postJSON(t, server.URL+"/api/v1/loans/"+loanID+"/payments", domain.RecordPaymentRequest{
		Amount:    decimal.NewFromInt(10000),
		EMINumber: 1,
	}, nil)
	require.Equal(t, http.StatusOK, status)

	status = getJSON(t, server.URL+"/api/v1/loans/"+loanID+"/overdue", &overdue)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, overdue.Data, &overdueResp)
	require.Len(t, overdueResp.Schedule, 1)
	assert.Equal(t, 2, overdueResp.Schedule[0].InstallmentNumber)
}

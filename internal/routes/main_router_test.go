package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"rental-system/pkg/config"
	"rental-system/pkg/database/postgresql"
	"rental-system/pkg/eventbus"
	"rental-system/pkg/service"
	"rental-system/pkg/validation"
)

// RentalAPITestSuite гоняет полный сценарий аренды через HTTP поверх настоящих Postgres и Redis.
// Нужны TEST_DATABASE_URL и доступный Redis (TEST_REDIS_ADDRESS, по умолчанию localhost:6379, DB 1).
type RentalAPITestSuite struct {
	suite.Suite
	Echo     *echo.Echo
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Bus      *eventbus.Bus
	Token    string
	ClientID uint64
}

func (s *RentalAPITestSuite) SetupSuite() {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		s.T().Skip("TEST_DATABASE_URL не задан")
	}
	redisAddr := os.Getenv("TEST_REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	s.Require().NoError(err)
	s.Require().NoError(postgresql.Migrate(pool))

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr, DB: 1})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		pool.Close()
		s.T().Skipf("Redis недоступен: %v", err)
	}

	_, err = pool.Exec(ctx, `TRUNCATE TABLE action_logs, payments, invoice_line_items, invoices,
		quote_line_items, quotes, document_counters, maintenance_tickets, check_in_items, check_in_transactions,
		check_out_items, check_out_transactions, staff_assignments, event_equipment_bookings, events,
		equipment_status_history, equipment_items, equipment_categories, users, clients RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
	s.Require().NoError(redisClient.FlushDB(ctx).Err())

	var userID uint64
	s.Require().NoError(pool.QueryRow(ctx,
		`INSERT INTO users (fio, email) VALUES ('Тестовый Кладовщик', 'storekeeper@example.com') RETURNING id`).Scan(&userID))
	s.Require().NoError(pool.QueryRow(ctx,
		`INSERT INTO clients (name) VALUES ('ООО Праздник') RETURNING id`).Scan(&s.ClientID))

	nopLogger := zap.NewNop()
	appLoggers := &Loggers{
		Main:        nopLogger,
		Auth:        nopLogger,
		Equipment:   nopLogger,
		Booking:     nopLogger,
		Maintenance: nopLogger,
		Finance:     nopLogger,
		Audit:       nopLogger,
	}

	cfg := config.New()
	jwtSvc := service.NewJWTService("test-secret", time.Hour, nopLogger)
	token, err := jwtSvc.GenerateToken(userID)
	s.Require().NoError(err)

	e := echo.New()
	e.Validator = validation.New()
	bus := eventbus.New(nopLogger)
	InitRouter(e, pool, redisClient, bus, jwtSvc, appLoggers, cfg)

	s.Echo = e
	s.DB = pool
	s.Redis = redisClient
	s.Bus = bus
	s.Token = token
}

func (s *RentalAPITestSuite) TearDownSuite() {
	if s.Bus != nil {
		s.Bus.Wait()
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Body    json.RawMessage `json:"body"`
}

func (s *RentalAPITestSuite) do(method, path string, payload interface{}) (int, apiResponse) {
	var body bytes.Buffer
	if payload != nil {
		s.Require().NoError(json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, "/api"+path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.Token)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	var res apiResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return rec.Code, res
}

func (s *RentalAPITestSuite) idOf(res apiResponse) uint64 {
	var obj struct {
		ID uint64 `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(res.Body, &obj))
	s.Require().NotZero(obj.ID)
	return obj.ID
}

func (s *RentalAPITestSuite) TestRejectsRequestsWithoutToken() {
	req := httptest.NewRequest(http.MethodGet, "/api/equipment", nil)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func (s *RentalAPITestSuite) TestFullRentalWorkflow() {
	t := s.T()

	code, res := s.do(http.MethodPost, "/categories", map[string]interface{}{"name": "Звук"})
	require.Equal(t, http.StatusCreated, code, res.Message)
	categoryID := s.idOf(res)

	code, res = s.do(http.MethodPost, "/equipment", map[string]interface{}{
		"name": "Колонка JBL", "category_id": categoryID, "daily_rate": "1500",
	})
	require.Equal(t, http.StatusCreated, code, res.Message)
	itemID := s.idOf(res)

	newEvent := func(name, start, end string) uint64 {
		code, res := s.do(http.MethodPost, "/events", map[string]interface{}{
			"client_id": s.ClientID, "name": name,
			"start_date": start + "T00:00:00Z", "end_date": end + "T00:00:00Z",
		})
		require.Equal(t, http.StatusCreated, code, res.Message)
		return s.idOf(res)
	}
	wedding := newEvent("Свадьба", "2024-06-10", "2024-06-12")
	party := newEvent("Корпоратив", "2024-06-12", "2024-06-14")

	s.Run("бронь и подтверждение", func() {
		t := s.T()
		code, res := s.do(http.MethodPost, fmt.Sprintf("/events/%d/bookings", wedding), map[string]interface{}{"equipment_id": itemID})
		require.Equal(t, http.StatusCreated, code, res.Message)
		code, res = s.do(http.MethodPost, fmt.Sprintf("/events/%d/bookings/confirm", wedding), nil)
		require.Equal(t, http.StatusOK, code, res.Message)
	})

	s.Run("пересечение отклоняется с 409", func() {
		t := s.T()
		code, res := s.do(http.MethodPost, fmt.Sprintf("/events/%d/bookings", party), map[string]interface{}{"equipment_id": itemID})
		require.Equal(t, http.StatusCreated, code, res.Message)
		code, res = s.do(http.MethodPost, fmt.Sprintf("/events/%d/bookings/confirm", party), nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Contains(t, res.Message, "Свадьба")

		code, res = s.do(http.MethodGet, fmt.Sprintf("/equipment/%d/availability?start_date=2024-06-11&end_date=2024-06-13", itemID), nil)
		require.Equal(t, http.StatusOK, code, res.Message)
		var availability struct {
			Available bool              `json:"available"`
			Conflicts []json.RawMessage `json:"conflicts"`
		}
		require.NoError(t, json.Unmarshal(res.Body, &availability))
		assert.False(t, availability.Available)
		assert.Len(t, availability.Conflicts, 1)
	})

	s.Run("выдача и возврат", func() {
		t := s.T()
		code, res := s.do(http.MethodPost, fmt.Sprintf("/events/%d/check-out", wedding), map[string]interface{}{
			"items": []map[string]interface{}{{"equipment_id": itemID}},
		})
		require.Equal(t, http.StatusCreated, code, res.Message)

		code, res = s.do(http.MethodPost, fmt.Sprintf("/events/%d/check-in", wedding), map[string]interface{}{
			"items": []map[string]interface{}{{"equipment_id": itemID, "condition": "GOOD"}},
		})
		require.Equal(t, http.StatusCreated, code, res.Message)
		var summary struct {
			AllReturned bool   `json:"all_returned"`
			EventStatus string `json:"event_status"`
		}
		require.NoError(t, json.Unmarshal(res.Body, &summary))
		assert.True(t, summary.AllReturned)
		assert.Equal(t, "COMPLETED", summary.EventStatus)

		code, res = s.do(http.MethodGet, fmt.Sprintf("/equipment/%d/history", itemID), nil)
		require.Equal(t, http.StatusOK, code, res.Message)
		var history []json.RawMessage
		require.NoError(t, json.Unmarshal(res.Body, &history))
		assert.Len(t, history, 3)
	})

	s.Run("счёт и оплата", func() {
		t := s.T()
		code, res := s.do(http.MethodPost, "/invoices", map[string]interface{}{
			"client_id": s.ClientID, "event_id": wedding,
			"items": []map[string]interface{}{{"description": "Аренда колонки", "quantity": 3, "unit_price": "1500"}},
		})
		require.Equal(t, http.StatusCreated, code, res.Message)
		invoiceID := s.idOf(res)

		code, res = s.do(http.MethodPost, fmt.Sprintf("/invoices/%d/send", invoiceID), nil)
		require.Equal(t, http.StatusOK, code, res.Message)

		code, res = s.do(http.MethodPost, fmt.Sprintf("/invoices/%d/payments", invoiceID), map[string]interface{}{
			"amount": "5000", "method": "CASH",
		})
		assert.Equal(t, http.StatusBadRequest, code, "переплата должна отклоняться")

		code, res = s.do(http.MethodPost, fmt.Sprintf("/invoices/%d/payments", invoiceID), map[string]interface{}{
			"amount": "4500", "method": "BANK_TRANSFER",
		})
		require.Equal(t, http.StatusCreated, code, res.Message)

		code, res = s.do(http.MethodGet, fmt.Sprintf("/invoices/%d", invoiceID), nil)
		require.Equal(t, http.StatusOK, code, res.Message)
		var invoice struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(res.Body, &invoice))
		assert.Equal(t, "PAID", invoice.Status)
	})

	s.Bus.Wait()
	var logged int
	require.NoError(t, s.DB.QueryRow(context.Background(), `SELECT COUNT(*) FROM action_logs`).Scan(&logged))
	assert.Positive(t, logged)
}

// TestConcurrentConfirmOverlappingEvents подтверждает два пересекающихся мероприятия одновременно:
// блокировка строки оборудования должна пропустить ровно одно.
func (s *RentalAPITestSuite) TestConcurrentConfirmOverlappingEvents() {
	t := s.T()

	code, res := s.do(http.MethodPost, "/categories", map[string]interface{}{"name": "Свет"})
	require.Equal(t, http.StatusCreated, code, res.Message)
	categoryID := s.idOf(res)

	code, res = s.do(http.MethodPost, "/equipment", map[string]interface{}{
		"name": "Прожектор Beam 230", "category_id": categoryID, "daily_rate": "2000",
	})
	require.Equal(t, http.StatusCreated, code, res.Message)
	itemID := s.idOf(res)

	events := make([]uint64, 0, 2)
	for _, name := range []string{"Концерт", "Фестиваль"} {
		code, res := s.do(http.MethodPost, "/events", map[string]interface{}{
			"client_id": s.ClientID, "name": name,
			"start_date": "2025-03-01T00:00:00Z", "end_date": "2025-03-03T00:00:00Z",
		})
		require.Equal(t, http.StatusCreated, code, res.Message)
		eventID := s.idOf(res)

		code, res = s.do(http.MethodPost, fmt.Sprintf("/events/%d/bookings", eventID), map[string]interface{}{"equipment_id": itemID})
		require.Equal(t, http.StatusCreated, code, res.Message)
		events = append(events, eventID)
	}

	codes := make([]int, len(events))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, eventID := range events {
		wg.Add(1)
		go func(i int, eventID uint64) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/events/%d/bookings/confirm", eventID), nil)
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.Token)
			rec := httptest.NewRecorder()
			<-start
			s.Echo.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i, eventID)
	}
	close(start)
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, codes)

	var confirmed int
	require.NoError(t, s.DB.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM event_equipment_bookings WHERE equipment_id = $1 AND status = 'CONFIRMED'`, itemID).Scan(&confirmed))
	assert.Equal(t, 1, confirmed)
}

func TestRentalAPISuite(t *testing.T) {
	suite.Run(t, new(RentalAPITestSuite))
}

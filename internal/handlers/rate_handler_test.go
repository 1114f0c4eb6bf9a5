package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/models"
	"aktieskat/internal/pagination"
	"aktieskat/internal/services"
)

func setupRateRouter(handler *RateHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectActor("holder"))
	auth.GET("/rates", handler.ListRates)
	auth.POST("/rates/prefetch", handler.Prefetch)
	auth.GET("/rates/:date", handler.GetRate)
	auth.PUT("/rates/:date", handler.SetRate)
	return r
}

func TestRateHandler_GetRate(t *testing.T) {
	t.Run("returns resolved quote", func(t *testing.T) {
		rates := &mockRateService{
			lookupFn: func(date time.Time) (*services.RateQuote, error) {
				return &services.RateQuote{
					RequestedDate: date,
					Date:          date.AddDate(0, 0, -2),
					Rate:          decimal.RequireFromString("6.8912"),
					Source:        models.RateSourceFetched,
				}, nil
			},
		}
		r := setupRateRouter(NewRateHandler(rates, &mockAuditService{}))

		rec := doRequest(r, http.MethodGet, "/rates/2024-03-17", "")
		assertStatus(t, rec, http.StatusOK)
		result := parseJSON(t, rec)
		if result["rate"] != "6.8912" || result["source"] != "fetched" {
			t.Errorf("unexpected quote %v", result)
		}
	})

	t.Run("returns 400 for bad date", func(t *testing.T) {
		r := setupRateRouter(NewRateHandler(&mockRateService{}, &mockAuditService{}))

		rec := doRequest(r, http.MethodGet, "/rates/yesterday", "")
		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 422 when unavailable", func(t *testing.T) {
		rates := &mockRateService{
			lookupFn: func(time.Time) (*services.RateQuote, error) { return nil, apperrors.ErrRateUnavailable },
		}
		r := setupRateRouter(NewRateHandler(rates, &mockAuditService{}))

		rec := doRequest(r, http.MethodGet, "/rates/2024-03-17", "")
		assertStatus(t, rec, http.StatusUnprocessableEntity)
		assertErrorCode(t, parseJSON(t, rec), "RATE_UNAVAILABLE")
	})
}

func TestRateHandler_SetRate(t *testing.T) {
	t.Run("stores manual rate and audits", func(t *testing.T) {
		var gotRate decimal.Decimal
		rates := &mockRateService{
			setManualRateFn: func(date time.Time, rate decimal.Decimal) (*models.ExchangeRate, error) {
				gotRate = rate
				return &models.ExchangeRate{Date: date, Rate: rate, Source: models.RateSourceManual}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupRateRouter(NewRateHandler(rates, audit))

		rec := doRequest(r, http.MethodPut, "/rates/2024-03-16", `{"rate":"6.90"}`)
		assertStatus(t, rec, http.StatusOK)
		if !gotRate.Equal(decimal.RequireFromString("6.9")) {
			t.Errorf("expected 6.9, got %s", gotRate)
		}
		entry := audit.last(t)
		if entry.action != "SET_EXCHANGE_RATE" || entry.resourceID != "2024-03-16" || entry.changes["rate"] != "6.9" {
			t.Errorf("unexpected audit entry %+v", entry)
		}
	})

	t.Run("rejects non-positive rate", func(t *testing.T) {
		r := setupRateRouter(NewRateHandler(&mockRateService{}, &mockAuditService{}))

		rec := doRequest(r, http.MethodPut, "/rates/2024-03-16", `{"rate":"0"}`)
		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestRateHandler_Prefetch(t *testing.T) {
	t.Run("returns stored count", func(t *testing.T) {
		rates := &mockRateService{
			prefetchFn: func(start, end time.Time) (int, error) {
				return int(end.Sub(start).Hours()/24) + 1, nil
			},
		}
		r := setupRateRouter(NewRateHandler(rates, &mockAuditService{}))

		rec := doRequest(r, http.MethodPost, "/rates/prefetch", `{"start":"2024-01-01","end":"2024-01-07"}`)
		assertStatus(t, rec, http.StatusOK)
		if parseJSON(t, rec)["stored"] != float64(7) {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("maps range errors", func(t *testing.T) {
		rates := &mockRateService{
			prefetchFn: func(time.Time, time.Time) (int, error) {
				return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "start must not be after end")
			},
		}
		r := setupRateRouter(NewRateHandler(rates, &mockAuditService{}))

		rec := doRequest(r, http.MethodPost, "/rates/prefetch", `{"start":"2024-02-01","end":"2024-01-01"}`)
		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestRateHandler_ListRates(t *testing.T) {
	var gotFrom, gotTo *time.Time
	var gotPage pagination.PageRequest
	rates := &mockRateService{
		listRatesFn: func(page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.ExchangeRate], error) {
			gotPage, gotFrom, gotTo = page, from, to
			resp := pagination.NewPageResponse([]models.ExchangeRate{{Rate: decimal.NewFromInt(7)}}, 2, 10, 11)
			return &resp, nil
		},
	}
	r := setupRateRouter(NewRateHandler(rates, &mockAuditService{}))

	rec := doRequest(r, http.MethodGet, "/rates?from=2024-01-01&page=2&page_size=10", "")
	assertStatus(t, rec, http.StatusOK)
	if gotFrom == nil || gotTo != nil || gotPage.Page != 2 || gotPage.PageSize != 10 {
		t.Errorf("unexpected arguments from=%v to=%v page=%+v", gotFrom, gotTo, gotPage)
	}
	if parseJSON(t, rec)["total_pages"] != float64(2) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = doRequest(r, http.MethodGet, "/rates?page_size=1000", "")
	assertStatus(t, rec, http.StatusBadRequest)
}

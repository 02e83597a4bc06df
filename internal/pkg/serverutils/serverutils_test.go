package serverutils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"bibleai-be/internal/repository/contract"
	"bibleai-be/pkg/rag"
	"bibleai-be/pkg/rag/executor"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefsRequest struct {
	Message       string `json:"message" validate:"required,max=2000"`
	TranslationKR string `json:"translation_kr" validate:"translation_kr"`
	TranslationEN string `json:"translation_en" validate:"translation_en"`
	Denomination  string `json:"denomination" validate:"denomination"`
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       prefsRequest
		wantField string
	}{
		{"valid", prefsRequest{Message: "hi", TranslationKR: "개역한글", TranslationEN: "kjv", Denomination: "Reformed"}, ""},
		{"empty optional fields", prefsRequest{Message: "hi"}, ""},
		{"missing message", prefsRequest{}, "message"},
		{"english translation in korean slot", prefsRequest{Message: "hi", TranslationKR: "KJV"}, "translation_kr"},
		{"unknown english translation", prefsRequest{Message: "hi", TranslationEN: "NIV"}, "translation_en"},
		{"fetched english translation", prefsRequest{Message: "hi", TranslationEN: "ESV"}, ""},
		{"unknown denomination", prefsRequest{Message: "hi", Denomination: "jedi"}, "denomination"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.Len(t, ve.Fields, 1)
			assert.Equal(t, tt.wantField, ve.Fields[0].Field)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ValidationError{}, 400},
		{&rag.PreferenceError{Field: "denomination", Value: "x"}, 400},
		{fmt.Errorf("chapter: %w", rag.ErrParseAmbiguous), 400},
		{executor.ErrEmptyMessage, 400},
		{fmt.Errorf("GEN 1: %w", contract.ErrVerseNotFound), 404},
		{&rag.UnavailableError{Dependency: "vector index", Attempts: 3, Err: errors.New("down")}, 503},
		{&rag.GenerationError{Attempts: 3, Err: errors.New("down")}, 503},
		{fiber.ErrMethodNotAllowed, 405},
		{fmt.Errorf("chat: %w", context.DeadlineExceeded), 504},
		{fmt.Errorf("chat: %w", context.Canceled), 503},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/unavailable", func(ctx *fiber.Ctx) error {
		return &rag.UnavailableError{Dependency: "vector index", Attempts: 3, Err: errors.New("down")}
	})
	app.Get("/invalid", func(ctx *fiber.Ctx) error {
		return ValidateRequest(prefsRequest{})
	})
	app.Get("/ok", func(ctx *fiber.Ctx) error {
		return ctx.JSON(SuccessResponse("fine", map[string]int{"n": 1}))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/unavailable", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
	var body BaseResponse[any]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, 503, body.Code)

	resp, err = app.Test(httptest.NewRequest("GET", "/invalid", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	var invalid BaseResponse[any]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&invalid))
	require.Len(t, invalid.Errors, 1)
	assert.Equal(t, "message", invalid.Errors[0].Field)

	resp, err = app.Test(httptest.NewRequest("GET", "/ok", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRequestContextMiddleware(t *testing.T) {
	t.Run("request gets a deadline", func(t *testing.T) {
		app := fiber.New()
		app.Use(RequestContextMiddleware(context.Background(), time.Minute))
		app.Get("/", func(ctx *fiber.Ctx) error {
			deadline, ok := ctx.UserContext().Deadline()
			if !ok {
				return errors.New("no deadline")
			}
			return ctx.JSON(fiber.Map{"remaining": time.Until(deadline).Seconds()})
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		var body map[string]float64
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Greater(t, body["remaining"], 0.0)
		assert.LessOrEqual(t, body["remaining"], 60.0)
	})

	t.Run("slow work is cut off by the deadline", func(t *testing.T) {
		app := fiber.New()
		app.Use(ErrorHandlerMiddleware())
		app.Use(RequestContextMiddleware(context.Background(), 20*time.Millisecond))
		app.Get("/", func(ctx *fiber.Ctx) error {
			select {
			case <-ctx.UserContext().Done():
				return ctx.UserContext().Err()
			case <-time.After(5 * time.Second):
				return ctx.SendString("finished")
			}
		})

		start := time.Now()
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, 504, resp.StatusCode)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("cancelling the base context aborts in-flight requests", func(t *testing.T) {
		base, cancel := context.WithCancel(context.Background())
		app := fiber.New()
		app.Use(ErrorHandlerMiddleware())
		app.Use(RequestContextMiddleware(base, time.Minute))
		started := make(chan struct{})
		app.Get("/", func(ctx *fiber.Ctx) error {
			close(started)
			select {
			case <-ctx.UserContext().Done():
				return ctx.UserContext().Err()
			case <-time.After(5 * time.Second):
				return ctx.SendString("finished")
			}
		})
		go func() {
			<-started
			cancel()
		}()

		resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, 503, resp.StatusCode)
	})
}

package services

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/contadigital/backend/internal/models"
)

func validRequest() models.WithdrawRequest {
	return models.WithdrawRequest{
		Method: models.MethodPix,
		Amount: "100.50",
		Pix: models.PixDestination{
			Type: models.DestinationTypeEmail,
			Key:  "cliente@exemplo.com",
		},
	}
}

func TestValidationHelper_WithdrawRequest(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid immediate request", func(t *testing.T) {
		req := validRequest()
		assert.NoError(t, vh.ValidateStruct(&req))
	})

	t.Run("valid scheduled request", func(t *testing.T) {
		req := validRequest()
		req.Schedule = "2026-09-01 10:30"
		assert.NoError(t, vh.ValidateStruct(&req))
	})

	t.Run("amount formats", func(t *testing.T) {
		cases := []struct {
			amount string
			valid  bool
		}{
			{"10", true},
			{"10.5", true},
			{"10.50", true},
			{"1000000", true},
			{"0", false},
			{"0.00", false},
			{"10.505", false},
			{"-10", false},
			{"1000000.01", false},
			{"10,50", false},
			{"abc", false},
			{"", false},
		}

		for _, tc := range cases {
			req := validRequest()
			req.Amount = tc.amount
			err := vh.ValidateStruct(&req)
			if tc.valid {
				assert.NoError(t, err, "amount %q", tc.amount)
			} else {
				assert.Error(t, err, "amount %q", tc.amount)
			}
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		req := validRequest()
		req.Method = "TED"
		assert.Error(t, vh.ValidateStruct(&req))
	})

	t.Run("pix key must be an email", func(t *testing.T) {
		req := validRequest()
		req.Pix.Key = "not-an-email"
		assert.Error(t, vh.ValidateStruct(&req))
	})

	t.Run("unknown pix key type", func(t *testing.T) {
		req := validRequest()
		req.Pix.Type = "cpf"
		assert.Error(t, vh.ValidateStruct(&req))
	})

	t.Run("schedule format", func(t *testing.T) {
		req := validRequest()
		req.Schedule = "01/09/2026 10:30"
		err := vh.ValidateStruct(&req)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "datetime", validationErrors[0].Tag())
	})
}

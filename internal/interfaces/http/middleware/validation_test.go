package middleware

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineRequest struct {
	Description string `json:"description" binding:"required,max=10"`
}

type sampleRequest struct {
	InvoiceNumber string        `json:"invoice_number" binding:"required"`
	Currency      string        `json:"currency" binding:"required,len=3"`
	DueDate       string        `json:"due_date" binding:"required,datetime=2006-01-02"`
	Status        string        `form:"status" binding:"omitempty,oneof=draft sent"`
	Lines         []lineRequest `json:"line_items" binding:"required,min=1,dive"`
}

func TestValidationDetails(t *testing.T) {
	SetupValidator()

	err := binding.Validator.ValidateStruct(&sampleRequest{
		Currency: "EURO",
		DueDate:  "01/04/2025",
		Status:   "lost",
		Lines:    []lineRequest{{Description: "far too long a description"}},
	})
	require.Error(t, err)

	details := ValidationDetails(err)
	byField := make(map[string]string, len(details))
	for _, d := range details {
		byField[d.Field] = d.Message
	}

	assert.Equal(t, "This field is required", byField["invoice_number"])
	assert.Equal(t, "Must be exactly 3 characters", byField["currency"])
	assert.Equal(t, "Must be a date formatted as 2006-01-02", byField["due_date"])
	assert.Equal(t, "Must be one of: draft sent", byField["status"])
	assert.Equal(t, "Must be at most 10 characters", byField["line_items[0].description"])
}

func TestValidationDetails_NotValidatorError(t *testing.T) {
	assert.Nil(t, ValidationDetails(errors.New("unexpected EOF")))
}

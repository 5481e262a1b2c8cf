package printing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateEngine_FormatMoney(t *testing.T) {
	en, err := NewTemplateEngine("en-US")
	require.NoError(t, err)
	de, err := NewTemplateEngine("de-DE")
	require.NoError(t, err)

	tests := []struct {
		name   string
		engine *TemplateEngine
		amount string
		want   string
	}{
		{name: "grouping", engine: en, amount: "1234567.89", want: "1,234,567.89 USD"},
		{name: "pads cents", engine: en, amount: "400", want: "400.00 USD"},
		{name: "small", engine: en, amount: "0.05", want: "0.05 USD"},
		{name: "negative", engine: en, amount: "-12.5", want: "-12.50 USD"},
		{name: "german separators", engine: de, amount: "1234.5", want: "1.234,50 USD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.engine.formatMoney(decimal.RequireFromString(tt.amount), "USD")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTemplateEngine_Helpers(t *testing.T) {
	e, err := NewTemplateEngine("en-US")
	require.NoError(t, err)

	assert.Equal(t, "3", e.formatQuantity(decimal.NewFromInt(3)))
	assert.Equal(t, "1.25", e.formatQuantity(decimal.RequireFromString("1.25")))
	assert.Equal(t, "Partially Paid", e.label("partially_paid"))
	assert.Equal(t, "2025-04-14", e.formatDate(time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC)))
	assert.Empty(t, e.formatDate(time.Time{}))
	assert.Equal(t, "US", e.Region())
}

func TestNewTemplateEngine_BadLocaleFallsBack(t *testing.T) {
	e, err := NewTemplateEngine("not a locale!")
	require.NoError(t, err)
	assert.Equal(t, "en-US", e.Locale().String())
}

func TestTemplateEngine_RenderUnknownTemplate(t *testing.T) {
	e, err := NewTemplateEngine("en-US")
	require.NoError(t, err)

	_, err = e.Render("missing.html", nil)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeTemplateFailed, renderErr.Code)
}

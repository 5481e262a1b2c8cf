package printing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templateFS embed.FS

// InvoiceTemplateName is the embedded invoice page
const InvoiceTemplateName = "invoice.html"

// TemplateEngine binds document data to html/template pages, formatting numbers,
// dates and labels for one locale.
type TemplateEngine struct {
	tag       language.Tag
	printer   *message.Printer
	title     cases.Caser
	templates *template.Template
}

// NewTemplateEngine parses the embedded templates for a BCP 47 locale such as "en-US" or "de-DE".
// An unparseable locale falls back to English.
func NewTemplateEngine(locale string) (*TemplateEngine, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}

	e := &TemplateEngine{
		tag:     tag,
		printer: message.NewPrinter(tag),
		title:   cases.Title(tag),
	}

	tmpl, err := template.New("documents").Funcs(e.funcMap()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse document templates: %w", err)
	}
	e.templates = tmpl
	return e, nil
}

// Locale returns the engine's language tag
func (e *TemplateEngine) Locale() language.Tag {
	return e.tag
}

// Region returns the ISO region of the locale, e.g. "US"
func (e *TemplateEngine) Region() string {
	region, _ := e.tag.Region()
	return region.String()
}

// Render executes a named template
func (e *TemplateEngine) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "failed to execute template "+name, err)
	}
	return buf.String(), nil
}

func (e *TemplateEngine) funcMap() template.FuncMap {
	return template.FuncMap{
		"money":    e.formatMoney,
		"quantity": e.formatQuantity,
		"date":     e.formatDate,
		"label":    e.label,
		"upper":    strings.ToUpper,
	}
}

// formatMoney prints an amount with locale grouping, exactly two fraction digits and the ISO code.
// The amount is split into integer and cent parts so no float conversion is involved.
func (e *TemplateEngine) formatMoney(amount decimal.Decimal, currency string) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	amount = amount.Round(2)
	units := amount.Truncate(0)
	cents := amount.Sub(units).Shift(2).IntPart()

	return fmt.Sprintf("%s%s%s%02d %s", sign, e.printer.Sprintf("%d", units.IntPart()), e.decimalSeparator(), cents, currency)
}

func (e *TemplateEngine) formatQuantity(q decimal.Decimal) string {
	if q.IsInteger() {
		return e.printer.Sprintf("%d", q.IntPart())
	}
	return strings.Replace(q.String(), ".", e.decimalSeparator(), 1)
}

func (e *TemplateEngine) decimalSeparator() string {
	sample := e.printer.Sprintf("%.1f", 0.5)
	return sample[1 : len(sample)-1]
}

func (e *TemplateEngine) formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// label turns identifiers like "partially_paid" or "bank_transfer" into "Partially Paid"
func (e *TemplateEngine) label(s string) string {
	return e.title.String(strings.ReplaceAll(s, "_", " "))
}

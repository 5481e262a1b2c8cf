// Package printing renders invoice documents.
//
// An invoice is bound to an html/template page (TemplateEngine), and the resulting HTML is
// printed to PDF by headless Chrome over the DevTools protocol (ChromedpRenderer).
// InvoiceDocumentGenerator ties both together behind invoicing.DocumentGenerator.
package printing

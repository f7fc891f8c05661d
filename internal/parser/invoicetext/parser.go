// Package invoicetext extracts structured data from the text of foreign
// vendor invoices (GitHub, AWS, cloud and SaaS billing PDFs). Known
// vendors get dedicated patterns; anything else goes through a generic
// extraction that must at least find an invoice number or an amount.
package invoicetext

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/nf-reconciler/internal/model"
)

// VendorProfile describes one known foreign vendor.
type VendorProfile struct {
	Key     string
	Name    string
	Country string
	TaxID   string
	Email   string

	identify      []*regexp.Regexp
	invoiceNumber []*regexp.Regexp
	amount        []*regexp.Regexp
	date          []*regexp.Regexp
	billingPeriod []*regexp.Regexp
}

// Shared pattern fragments. Vendors differ mostly in labels, not shape.
const (
	numAmount    = `([\d,]+\.?\d*)`
	monthDayYear = `(\w+\s+\d{1,2},?\s+\d{4})`
	monthDay     = `(\w+\s+\d{1,2})`
	slashDate    = `(\d{1,2}/\d{1,2}/\d{4})`
)

func ci(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

func usagePeriod(labels string) []*regexp.Regexp {
	return ci(`(?:` + labels + `)\s+Period[:\s]*` + monthDay + `\s*[-–]\s*` + monthDayYear)
}

var profiles = []*VendorProfile{
	{
		Key: "github", Name: "GitHub, Inc.", Country: "United States",
		TaxID: "45-4013193", Email: "billing@github.com",
		identify:      ci(`github`, `gh-billing`),
		invoiceNumber: ci(`Invoice\s*#?\s*([A-Z0-9-]+)`, `Invoice\s+Number[:\s]*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+Due[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`Invoice\s+Date[:\s]*`+monthDayYear, `Date[:\s]*`+slashDate),
		billingPeriod: usagePeriod(`Billing`),
	},
	{
		Key: "microsoft", Name: "Microsoft Corporation", Country: "United States",
		TaxID: "91-1144442", Email: "billing@microsoft.com",
		identify:      ci(`microsoft`, `azure`, `office\s*365`, `m365`),
		invoiceNumber: ci(`Invoice\s*(?:Number|#|No\.?)[:\s]*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+Due[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`Invoice\s+Date[:\s]*`+slashDate, `Date[:\s]*`+monthDayYear),
		billingPeriod: ci(`Service\s+Period[:\s]*` + slashDate + `\s*[-–]\s*` + slashDate),
	},
	{
		Key: "openai", Name: "OpenAI, LLC", Country: "United States",
		Email:         "billing@openai.com",
		identify:      ci(`openai`, `chatgpt`),
		invoiceNumber: ci(`Invoice\s*#?\s*([A-Z0-9-]+)`, `Receipt\s*#?\s*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+(?:Paid|Due|Charged)[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`(?:Invoice\s+)?Date[:\s]*`+monthDayYear, `Date[:\s]*`+slashDate),
		billingPeriod: usagePeriod(`Billing|Usage`),
	},
	{
		Key: "anthropic", Name: "Anthropic PBC", Country: "United States",
		Email:         "billing@anthropic.com",
		identify:      ci(`anthropic`, `claude`),
		invoiceNumber: ci(`Invoice\s*#?\s*([A-Z0-9-]+)`, `Invoice\s+Number[:\s]*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+(?:Due|Charged)[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`(?:Invoice\s+)?Date[:\s]*`+monthDayYear, `Date[:\s]*`+slashDate),
		billingPeriod: usagePeriod(`Billing|Usage`),
	},
	{
		Key: "aws", Name: "Amazon Web Services, Inc.", Country: "United States",
		TaxID: "20-4632786", Email: "aws-billing@amazon.com",
		identify:      ci(`amazon\s+web\s+services`, `aws\.amazon`, `aws\s+inc`),
		invoiceNumber: ci(`Invoice\s+(?:Number|ID)[:\s]*([A-Z0-9-]+)`),
		amount:        ci(`Total\s+(?:Amount|Due)[:\s]*\$?`+numAmount, `Amount\s+Due[:\s]*\$?`+numAmount),
		date:          ci(`Invoice\s+Date[:\s]*` + monthDayYear),
		billingPeriod: usagePeriod(`Statement`),
	},
	{
		Key: "google_cloud", Name: "Google LLC", Country: "United States",
		TaxID: "77-0493581", Email: "billing@google.com",
		identify:      ci(`google\s+cloud`, `gcp`, `google\s+llc.*cloud`),
		invoiceNumber: ci(`Invoice\s+(?:number|#)[:\s]*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+due[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`Invoice\s+date[:\s]*` + monthDayYear),
		billingPeriod: usagePeriod(`Billing|Service`),
	},
	{
		Key: "stripe", Name: "Stripe, Inc.", Country: "United States",
		TaxID: "27-2186093", Email: "billing@stripe.com",
		identify:      ci(`stripe`, `stripe\.com`),
		invoiceNumber: ci(`Invoice\s*#?\s*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+due[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`(?:Invoice\s+)?Date[:\s]*` + monthDayYear),
		billingPeriod: usagePeriod(`Billing|Service`),
	},
	{
		Key: "digitalocean", Name: "DigitalOcean, LLC", Country: "United States",
		TaxID: "46-2995605", Email: "billing@digitalocean.com",
		identify:      ci(`digitalocean`, `digital\s+ocean`),
		invoiceNumber: ci(`Invoice\s*#?\s*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+Due[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`(?:Invoice\s+)?Date[:\s]*` + monthDayYear),
		billingPeriod: usagePeriod(`Billing|Service`),
	},
	{
		Key: "atlassian", Name: "Atlassian Pty Ltd", Country: "Australia",
		Email:         "billing@atlassian.com",
		identify:      ci(`atlassian`, `jira`, `confluence`, `bitbucket`),
		invoiceNumber: ci(`Invoice\s*(?:Number|#)[:\s]*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+Due[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`(?:Invoice\s+)?Date[:\s]*(\d{1,2}\s+\w+\s+\d{4})`, `Date[:\s]*`+monthDayYear),
		billingPeriod: usagePeriod(`Billing|Subscription`),
	},
	{
		Key: "slack", Name: "Slack Technologies, LLC", Country: "United States",
		TaxID: "46-4108682", Email: "billing@slack.com",
		identify:      ci(`slack\s+technologies`, `slack\.com`),
		invoiceNumber: ci(`Invoice\s*#?\s*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+Due[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`(?:Invoice\s+)?Date[:\s]*` + monthDayYear),
		billingPeriod: usagePeriod(`Billing|Service`),
	},
	{
		Key: "heroku", Name: "Heroku, Inc.", Country: "United States",
		Email:         "billing@heroku.com",
		identify:      ci(`heroku`, `salesforce.*heroku`),
		invoiceNumber: ci(`Invoice\s*#?\s*([A-Z0-9-]+)`),
		amount:        ci(`Total[:\s]*\$?`+numAmount, `Amount\s+Due[:\s]*\$?`+numAmount),
		date:          ci(`(?:Invoice\s+)?Date[:\s]*` + monthDayYear),
		billingPeriod: usagePeriod(`Billing|Usage`),
	},
	{
		Key: "vercel", Name: "Vercel Inc.", Country: "United States",
		Email:         "billing@vercel.com",
		identify:      ci(`vercel`, `vercel\.com`),
		invoiceNumber: ci(`Invoice\s*#?\s*([A-Z0-9-]+)`),
		amount:        ci(`Total[:\s]*\$?`+numAmount, `Amount\s+Due[:\s]*\$?`+numAmount),
		date:          ci(`(?:Invoice\s+)?Date[:\s]*` + monthDayYear),
		billingPeriod: usagePeriod(`Billing|Usage`),
	},
	{
		Key: "twilio", Name: "Twilio Inc.", Country: "United States",
		TaxID: "26-2574840", Email: "billing@twilio.com",
		identify:      ci(`twilio`),
		invoiceNumber: ci(`Invoice\s*(?:Number|#)[:\s]*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+Due[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`(?:Invoice\s+)?Date[:\s]*` + monthDayYear),
		billingPeriod: usagePeriod(`Billing|Usage`),
	},
	{
		Key: "sendgrid", Name: "Twilio SendGrid", Country: "United States",
		Email:         "billing@sendgrid.com",
		identify:      ci(`sendgrid`, `twilio\s+sendgrid`),
		invoiceNumber: ci(`Invoice\s*#?\s*([A-Z0-9-]+)`),
		amount:        ci(`Amount\s+Due[:\s]*\$?`+numAmount, `Total[:\s]*\$?`+numAmount),
		date:          ci(`(?:Invoice\s+)?Date[:\s]*` + monthDayYear),
		billingPeriod: usagePeriod(`Billing|Usage`),
	},
}

// Parser extracts foreign invoice data from text
type Parser struct {
	profiles []*VendorProfile
	now      func() time.Time
}

// NewParser creates a parser with all known vendor profiles
func NewParser() *Parser {
	return &Parser{profiles: profiles, now: time.Now}
}

// IdentifyVendor returns the first profile whose identification patterns
// match the text, or nil. Order matters: twilio comes before sendgrid so
// a combined invoice resolves to the more specific brand text first.
func (p *Parser) IdentifyVendor(text string) *VendorProfile {
	lower := strings.ToLower(text)
	for _, profile := range p.profiles {
		for _, re := range profile.identify {
			if re.MatchString(lower) {
				return profile
			}
		}
	}
	return nil
}

// Extract parses invoice text into a ParsedDocument. The result must carry
// at least an invoice number or an amount; otherwise the text is not
// considered an invoice and an error is returned.
func (p *Parser) Extract(text string) (*model.ParsedDocument, error) {
	var doc *model.ParsedDocument
	if profile := p.IdentifyVendor(text); profile != nil {
		doc = p.extractWithProfile(text, profile)
	} else {
		doc = p.extractGeneric(text)
	}

	if doc.InvoiceNumber == "" && doc.Totals.Gross.IsZero() {
		return nil, model.NewParseError("invoice-text", "content", "no invoice number or amount found", nil)
	}
	return doc, nil
}

func (p *Parser) extractWithProfile(text string, profile *VendorProfile) *model.ParsedDocument {
	doc := &model.ParsedDocument{
		Type:     model.DocTypeInvoice,
		Currency: "USD",
		Issuer: model.Party{
			Name:    profile.Name,
			TaxID:   profile.TaxID,
			Country: profile.Country,
			Email:   profile.Email,
		},
	}

	doc.InvoiceNumber = firstGroup(profile.invoiceNumber, text)

	if amount := firstGroup(profile.amount, text); amount != "" {
		v := parseAmount(amount)
		doc.Totals.Gross = v
		doc.Totals.OriginalCurrency = v
	}

	if date := firstGroup(profile.date, text); date != "" {
		doc.IssueDate = p.parseTextDate(date)
	}

	for _, re := range profile.billingPeriod {
		if m := re.FindStringSubmatch(text); m != nil {
			doc.BillingPeriodStart = p.parseTextDate(m[1])
			if len(m) > 2 {
				doc.BillingPeriodEnd = p.parseTextDate(m[2])
			}
			// A bare "Jan 1" start inherits the end date's year
			if !doc.BillingPeriodEnd.IsZero() && doc.BillingPeriodStart.Year() == p.now().Year() &&
				doc.BillingPeriodEnd.Year() != doc.BillingPeriodStart.Year() {
				s := doc.BillingPeriodStart
				doc.BillingPeriodStart = time.Date(doc.BillingPeriodEnd.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
			}
			break
		}
	}

	doc.ServiceDescription = extractDescription(text, profile)

	return doc
}

var (
	genericVendorRes = []*regexp.Regexp{
		regexp.MustCompile(`(?m)(?:From|Vendor|Seller|Company)[:\s]*([A-Z][A-Za-z0-9\s,.]+?)(?:\n|$)`),
		regexp.MustCompile(`(?m)^([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+){0,3}(?:\s+(?:Inc|LLC|Ltd|Corp|Corporation|Company)\.?))`),
	}
	genericNumberRes = ci(
		`Invoice\s*(?:Number|#|No\.?|ID)[:\s]*([A-Z0-9-]+)`,
		`(?:Receipt|Order)\s*(?:Number|#|No\.?|ID)[:\s]*([A-Z0-9-]+)`,
	)
	genericAmountRes = ci(
		`(?:Total|Amount\s+Due|Grand\s+Total|Amount\s+Charged)[:\s]*[$€£]?\s*`+numAmount,
		`[$€£]\s*([\d,]+\.\d{2})`,
	)
	genericDateRes = ci(
		`(?:Invoice\s+)?Date[:\s]*`+monthDayYear,
		`(?:Invoice\s+)?Date[:\s]*`+slashDate,
		`(?:Invoice\s+)?Date[:\s]*(\d{4}-\d{2}-\d{2})`,
	)
	descriptionRes = ci(
		`(?:Description|Service|Product|Item)[:\s]*([^\n]+)`,
		`(?:Subscription|Plan)[:\s]*([^\n]+)`,
	)
)

func (p *Parser) extractGeneric(text string) *model.ParsedDocument {
	doc := &model.ParsedDocument{
		Type:     model.DocTypeInvoice,
		Currency: "USD",
	}

	if name := firstGroup(genericVendorRes, text); name != "" {
		if len(name) > 140 {
			name = name[:140]
		}
		doc.Issuer.Name = strings.TrimSpace(name)
	}

	doc.InvoiceNumber = firstGroup(genericNumberRes, text)

	if amount := firstGroup(genericAmountRes, text); amount != "" {
		v := parseAmount(amount)
		doc.Totals.Gross = v
		doc.Totals.OriginalCurrency = v
	}

	if strings.Contains(text, "€") {
		doc.Currency = "EUR"
	} else if strings.Contains(text, "£") {
		doc.Currency = "GBP"
	}

	if date := firstGroup(genericDateRes, text); date != "" {
		doc.IssueDate = p.parseTextDate(date)
	}

	return doc
}

func firstGroup(res []*regexp.Regexp, text string) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func parseAmount(s string) decimal.Decimal {
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var textDateFormats = []string{
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"01/02/2006",
	"2006-01-02",
	"January 2",
	"Jan 2",
}

// parseTextDate parses the date shapes billing PDFs use. Commas are
// stripped first. A month-day with no year gets the current year, the
// way period starts like "Jan 1" are printed.
func (p *Parser) parseTextDate(s string) time.Time {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return time.Time{}
	}
	for _, format := range textDateFormats {
		t, err := time.Parse(format, s)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = time.Date(p.now().Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t
	}
	return time.Time{}
}

func extractDescription(text string, profile *VendorProfile) string {
	var descriptions []string
	for _, re := range descriptionRes {
		for _, m := range re.FindAllStringSubmatch(text, 3) {
			desc := strings.TrimSpace(m[1])
			if len(desc) > 5 && len(desc) < 200 {
				descriptions = append(descriptions, desc)
			}
		}
	}
	if len(descriptions) > 0 {
		return strings.Join(descriptions, "; ")
	}
	if profile != nil {
		return profile.Name + " services"
	}
	return ""
}

var (
	accessKeyRunRe = regexp.MustCompile(`\d{44}`)
	cnpjMaskRe     = regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`)

	internationalIndicators = ci(
		`invoice`,
		`receipt`,
		`\$\s*\d`,
		`€\s*\d`,
		`£\s*\d`,
		`USD|EUR|GBP`,
		`united\s+states|usa|ireland|netherlands`,
	)
)

// IsInternationalInvoice reports whether text looks like a foreign vendor
// invoice rather than a Brazilian fiscal document. A 44-digit run or a
// masked CNPJ means Brazilian, full stop.
func IsInternationalInvoice(text string) bool {
	if accessKeyRunRe.MatchString(text) {
		return false
	}
	if cnpjMaskRe.MatchString(text) {
		return false
	}
	for _, re := range internationalIndicators {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

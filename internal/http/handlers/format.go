package handlers

import (
	"strings"

	"github.com/intuneview/intuneview/internal/graph"
	"golang.org/x/net/publicsuffix"
)

const (
	placeholderNA            = "N/A"
	placeholderUnknown       = "Unknown"
	placeholderNever         = "Never"
	placeholderNoDescription = "No description"

	dateLayout     = "Jan 2, 2006"
	dateTimeLayout = "Jan 2, 2006 15:04:05 UTC"
)

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func formatDate(rec *graph.Record, key, fallback string) string {
	t, ok := rec.Time(key)
	if !ok {
		return fallback
	}
	return t.UTC().Format(dateLayout)
}

func formatDateTime(rec *graph.Record, key, fallback string) string {
	t, ok := rec.Time(key)
	if !ok {
		return fallback
	}
	return t.UTC().Format(dateTimeLayout)
}

// platformName is the entity type without its namespace, e.g.
// "windows10GeneralConfiguration".
func platformName(rec *graph.Record) string {
	return orDefault(rec.TypeName(), placeholderNA)
}

// organizationDomain returns the registrable domain of a user principal name,
// e.g. "contoso.co.uk" for "adele@eu.contoso.co.uk". Names that are not
// e-mail shaped yield "".
func organizationDomain(upn string) string {
	at := strings.LastIndex(upn, "@")
	if at < 0 || at == len(upn)-1 {
		return ""
	}
	host := strings.ToLower(strings.TrimSpace(upn[at+1:]))
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

package schedule

import (
	"strings"

	"github.com/jmorales/caterflow-backend/pkg/enums"
)

const complianceLevelGovernment = "government"

// freeMailDomains are consumer providers that never indicate an organization.
var freeMailDomains = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"hotmail.com": {},
	"outlook.com": {},
	"aol.com":     {},
	"icloud.com":  {},
	"proton.me":   {},
}

// ClassifyCustomer derives the billing classification for a quote contact.
// Government status requires positive evidence: either the compliance level
// is set to government or the contact email resolves to a .gov/.mil domain.
// Organizations need both a non-consumer mail domain and an organization name
// on file. Anything ambiguous or malformed falls back to person, which gets
// the strictest (most upfront) payment terms.
func ClassifyCustomer(email, organization, complianceLevel string) enums.CustomerType {
	if strings.EqualFold(strings.TrimSpace(complianceLevel), complianceLevelGovernment) {
		return enums.CustomerTypeGovernment
	}

	domain := mailDomain(email)
	if domain == "" {
		return enums.CustomerTypePerson
	}
	if strings.HasSuffix(domain, ".gov") || strings.HasSuffix(domain, ".mil") {
		return enums.CustomerTypeGovernment
	}

	if strings.TrimSpace(organization) == "" {
		return enums.CustomerTypePerson
	}
	if _, free := freeMailDomains[domain]; free {
		return enums.CustomerTypePerson
	}
	return enums.CustomerTypeOrganization
}

func mailDomain(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ""
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") {
		return ""
	}
	return domain
}

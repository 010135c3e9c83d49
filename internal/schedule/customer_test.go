package schedule

import (
	"testing"

	"github.com/jmorales/caterflow-backend/pkg/enums"
)

func TestClassifyCustomer(t *testing.T) {
	tests := []struct {
		name            string
		email           string
		organization    string
		complianceLevel string
		want            enums.CustomerType
	}{
		{
			name:            "government compliance level",
			email:           "buyer@gmail.com",
			complianceLevel: "government",
			want:            enums.CustomerTypeGovernment,
		},
		{
			name:            "government compliance level mixed case",
			email:           "buyer@gmail.com",
			complianceLevel: " Government ",
			want:            enums.CustomerTypeGovernment,
		},
		{
			name:  "gov email domain",
			email: "procurement@cityhall.gov",
			want:  enums.CustomerTypeGovernment,
		},
		{
			name:  "mil email domain",
			email: "mess@base.mil",
			want:  enums.CustomerTypeGovernment,
		},
		{
			name:         "business domain with organization",
			email:        "events@acme.com",
			organization: "Acme Corp",
			want:         enums.CustomerTypeOrganization,
		},
		{
			name:  "business domain without organization name",
			email: "events@acme.com",
			want:  enums.CustomerTypePerson,
		},
		{
			name:         "free mail provider with organization name",
			email:        "jane@gmail.com",
			organization: "Jane's Bakery",
			want:         enums.CustomerTypePerson,
		},
		{
			name:  "plain consumer email",
			email: "jane@yahoo.com",
			want:  enums.CustomerTypePerson,
		},
		{
			name:  "malformed email",
			email: "not-an-email",
			want:  enums.CustomerTypePerson,
		},
		{
			name:  "empty email",
			email: "",
			want:  enums.CustomerTypePerson,
		},
		{
			name:         "domain without dot",
			email:        "root@localhost",
			organization: "Localhost LLC",
			want:         enums.CustomerTypePerson,
		},
		{
			name:  "gov-ish but not a gov tld",
			email: "sales@governmentsupplies.com",
			want:  enums.CustomerTypePerson,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyCustomer(tc.email, tc.organization, tc.complianceLevel)
			if got != tc.want {
				t.Fatalf("ClassifyCustomer(%q, %q, %q) = %s, want %s", tc.email, tc.organization, tc.complianceLevel, got, tc.want)
			}
		})
	}
}

package automation

import "strings"

// Platform identifies the application tracking system serving a posting's
// apply page. Each platform gets its own login, form and confirmation
// selectors; unknown hosts fall back to a generic best-effort form map.
type Platform string

const (
	PlatformWorkday    Platform = "workday"
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformGeneric    Platform = "generic"
)

// DetectPlatform classifies the apply URL by host.
func DetectPlatform(rawURL string) Platform {
	u := strings.ToLower(rawURL)
	switch {
	case strings.Contains(u, "myworkdayjobs.com") || strings.Contains(u, "workday"):
		return PlatformWorkday
	case strings.Contains(u, "greenhouse.io"):
		return PlatformGreenhouse
	case strings.Contains(u, "lever.co"):
		return PlatformLever
	}
	return PlatformGeneric
}

// platformSelectors carries everything the runner needs to drive one ATS.
type platformSelectors struct {
	ApplyButton   string
	LoginEmail    string
	LoginPassword string
	LoginSubmit   string
	Fields        map[string]string // logical field name -> CSS selector
	Submit        string
	Confirmation  string
}

var selectorsByPlatform = map[Platform]platformSelectors{
	PlatformWorkday: {
		ApplyButton:   "a.css-1hfgk44",
		LoginEmail:    `input[name="email"]`,
		LoginPassword: `input[name="password"]`,
		LoginSubmit:   `button[type="submit"]`,
		Fields:        map[string]string{},
		Submit:        `button[type="submit"]`,
		Confirmation:  `[data-automation-id="applicationConfirmation"]`,
	},
	PlatformGreenhouse: {
		ApplyButton: "a.job-app-btn",
		Fields: map[string]string{
			"first_name": "input#first_name",
			"last_name":  "input#last_name",
			"email":      "input#email",
			"phone":      "input#phone",
		},
		Submit:       `input[type="submit"]`,
		Confirmation: "div.application-confirmation",
	},
	PlatformLever: {
		ApplyButton: `a[data-qa="btn-apply-bottom"]`,
		Fields: map[string]string{
			"name":    `input[name="name"]`,
			"email":   `input[name="email"]`,
			"phone":   `input[name="phone"]`,
			"company": `input[name="org"]`,
		},
		Submit:       `button[type="submit"]`,
		Confirmation: "div.confirmation-content",
	},
	PlatformGeneric: {
		Fields: map[string]string{
			"name":       `input[name="name"], input#name`,
			"first_name": `input[name="first_name"], input#first_name`,
			"last_name":  `input[name="last_name"], input#last_name`,
			"email":      `input[name="email"], input#email, input[type="email"]`,
			"phone":      `input[name="phone"], input#phone, input[type="tel"]`,
		},
		Submit: `button[type="submit"], input[type="submit"]`,
	},
}

// Selectors returns the driving selectors for a platform.
func Selectors(p Platform) platformSelectors {
	if s, ok := selectorsByPlatform[p]; ok {
		return s
	}
	return selectorsByPlatform[PlatformGeneric]
}

// fieldValue maps a logical field name to the applicant's data.
func fieldValue(field string, a Applicant) string {
	switch field {
	case "name":
		return strings.TrimSpace(a.FirstName + " " + a.LastName)
	case "first_name":
		return a.FirstName
	case "last_name":
		return a.LastName
	case "email":
		return a.Email
	case "phone":
		return a.Phone
	case "company":
		return a.CurrentCompany
	}
	return ""
}

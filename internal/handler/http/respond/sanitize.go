package respond

import "regexp"

var (
	// PostgREST anon and service-role keys are JWTs.
	jwtPattern    = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[^\s"']+`)
	apiKeyPattern = regexp.MustCompile(`(?i)(apikey[=:]\s*)[^\s&"']+`)
	dsnPattern    = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)
)

// SanitizeError masks credentials that backend errors may carry.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = jwtPattern.ReplaceAllString(msg, "eyJ****")
	msg = bearerPattern.ReplaceAllString(msg, "${1}****")
	msg = apiKeyPattern.ReplaceAllString(msg, "${1}****")
	msg = dsnPattern.ReplaceAllString(msg, "://$1:****@")
	return msg
}

package signals

import "regexp"

// TrustedDomains is the allowlist shared by the Source and Basic collectors. A host
// matches when it equals an entry or is a subdomain of it.
var TrustedDomains = []string{
	"pib.gov.in",
	"mygov.in",
	"factchecker.in",
	"boomlive.in",
	"altnews.in",
	"timesofindia.com",
	"thehindu.com",
	"indianexpress.com",
	"ndtv.com",
	"bbc.com",
	"bbc.co.uk",
	"reuters.com",
	"apnews.com",
}

var sensationalTerms = []string{
	"breaking",
	"urgent",
	"shocking",
	"unbelievable",
	"secret",
	"hidden truth",
	"they don't want you to know",
	"viral",
	"must share",
	"forward this",
	"exposed",
	"revealed",
	"conspiracy",
	"cover-up",
	"exclusive",
}

var clickbaitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)you won't believe`),
	regexp.MustCompile(`(?i)doctors hate`),
	regexp.MustCompile(`(?i)this one trick`),
	regexp.MustCompile(`(?i)number \d+ will shock you`),
	regexp.MustCompile(`(?i)what happened next`),
	regexp.MustCompile(`(?i)the reason why`),
	regexp.MustCompile(`(?i)you'll never guess`),
}

var urgencyTerms = []string{
	"immediately",
	"right now",
	"before it's too late",
	"limited time",
	"act fast",
	"don't wait",
	"urgent action needed",
}

var emotionalTerms = []string{
	"outraged",
	"furious",
	"devastated",
	"heartbroken",
	"terrified",
	"disgusted",
	"appalled",
	"shocked beyond belief",
}

// basicSuspiciousTerms is the short list the degraded heuristic counts.
var basicSuspiciousTerms = []string{
	"breaking",
	"urgent",
	"shocking",
	"unbelievable",
	"secret",
	"hidden truth",
	"they don't want you to know",
	"viral",
	"must share",
	"forward this",
}

var (
	datePattern      = regexp.MustCompile(`\b\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b|\b\d{1,2} (?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]* \d{4}\b|\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]* \d{1,2},? \d{4}\b`)
	figurePattern    = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*(?:percent|%|million|billion|thousand|crore|lakh)`)
	quotePattern     = regexp.MustCompile(`"[^"]{3,}"`)
	officialPattern  = regexp.MustCompile(`\b(?:according to|sources say|officials?|government|ministry|spokesperson|minister)\b`)
	vaguePattern     = regexp.MustCompile(`\b(?:some say|many believe|it is said|reportedly|allegedly)\b`)
	absolutePattern  = regexp.MustCompile(`\b(?:always|never|everyone|nobody|completely|totally|100% guaranteed)\b`)
	sentenceSplitter = regexp.MustCompile(`[.!?]+`)
)

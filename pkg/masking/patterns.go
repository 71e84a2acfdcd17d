package masking

// BuiltinPattern is one named secret-matching rule.
type BuiltinPattern struct {
	Name        string
	Pattern     string
	Replacement string
	Description string
}

// builtinPatterns are compiled eagerly at masker construction. Invalid
// patterns are logged and skipped rather than failing startup.
var builtinPatterns = []BuiltinPattern{
	{
		Name:        "api_key",
		Pattern:     `(?i)(api[_-]?key|apikey)(["']?\s*[:=]\s*["']?)([A-Za-z0-9_\-]{16,})`,
		Replacement: `$1$2[MASKED_API_KEY]`,
		Description: "Generic API key assignments",
	},
	{
		Name:        "bearer_token",
		Pattern:     `(?i)bearer\s+([A-Za-z0-9_\-.~+/]{16,}=*)`,
		Replacement: `Bearer [MASKED_TOKEN]`,
		Description: "Authorization bearer tokens",
	},
	{
		Name:        "password",
		Pattern:     `(?i)(password|passwd|pwd)(["']?\s*[:=]\s*["']?)([^\s"']{6,})`,
		Replacement: `$1$2[MASKED_PASSWORD]`,
		Description: "Password assignments",
	},
	{
		Name:        "aws_access_key",
		Pattern:     `\b(AKIA|ASIA)[A-Z0-9]{16}\b`,
		Replacement: `[MASKED_AWS_KEY]`,
		Description: "AWS access key IDs",
	},
	{
		Name:        "github_token",
		Pattern:     `\bgh[pousr]_[A-Za-z0-9]{36,}\b`,
		Replacement: `[MASKED_GITHUB_TOKEN]`,
		Description: "GitHub personal access tokens",
	},
	{
		Name:        "private_key",
		Pattern:     `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`,
		Replacement: `[MASKED_PRIVATE_KEY]`,
		Description: "PEM private key blocks",
	},
	{
		Name:        "connection_string",
		Pattern:     `(?i)\b(postgres|postgresql|mysql|mongodb|redis|amqp)://[^:\s]+:([^@\s]+)@`,
		Replacement: `$1://[MASKED_CREDENTIALS]@`,
		Description: "Credentials embedded in connection URLs",
	},
	{
		Name:        "jwt",
		Pattern:     `\beyJ[A-Za-z0-9_\-]{10,}\.[A-Za-z0-9_\-]{10,}\.[A-Za-z0-9_\-]{10,}\b`,
		Replacement: `[MASKED_JWT]`,
		Description: "JSON Web Tokens",
	},
}

// PatternGroups name sets of patterns callers can enable together.
var PatternGroups = map[string][]string{
	"basic": {"api_key", "bearer_token", "password"},
	"security": {
		"api_key", "bearer_token", "password", "aws_access_key",
		"github_token", "private_key", "connection_string", "jwt",
	},
	"cloud": {"aws_access_key", "connection_string"},
}

package config

import "github.com/spf13/pflag"

// flagKeys maps command line flag names to configuration keys
var flagKeys = map[string]string{
	"addr":              "http.address",
	"dsn":               "database.dsn",
	"issuer":            "jwt.issuer",
	"access-key-file":   "jwt.access_token_private_key_file",
	"refresh-key-file":  "jwt.refresh_token_private_key_file",
	"access-token-ttl":  "jwt.access_token_expiration_time",
	"refresh-token-ttl": "jwt.refresh_token_expiration_time",
	"refresh-hash-cost": "auth.refresh_token_hash_cost",
	"phone-region":      "auth.phone_region",
	"rate-limit":        "http.rate_limit",
	"rate-burst":        "http.rate_burst",
	"metrics":           "metrics.enabled",
	"google-client-id":  "google.client_ids",
	"mail-from":         "mail.from",
}

// RegisterFlags adds the flags understood by Provider to fs
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()

	fs.String("addr", d["http.address"].(string), "HTTP listen address")
	fs.String("dsn", d["database.dsn"].(string), "database DSN (postgres:// or sqlite file)")
	fs.String("issuer", d["jwt.issuer"].(string), "token issuer")
	fs.String("access-key-file", "", "PEM file with the access token RSA private key")
	fs.String("refresh-key-file", "", "PEM file with the refresh token RSA private key")
	fs.Int("access-token-ttl", d["jwt.access_token_expiration_time"].(int), "access token lifetime in seconds")
	fs.Int("refresh-token-ttl", d["jwt.refresh_token_expiration_time"].(int), "refresh token lifetime in seconds")
	fs.Int("refresh-hash-cost", d["auth.refresh_token_hash_cost"].(int), "bcrypt cost for stored refresh tokens")
	fs.String("phone-region", d["auth.phone_region"].(string), "default region for phone numbers without a country code")
	fs.Float64("rate-limit", d["http.rate_limit"].(float64), "requests per second per client on public auth routes, 0 disables")
	fs.Int("rate-burst", d["http.rate_burst"].(int), "rate limiter burst")
	fs.Bool("metrics", d["metrics.enabled"].(bool), "expose prometheus metrics")
	fs.StringSlice("google-client-id", nil, "accepted Google OAuth client ids")
	fs.String("mail-from", "", "sender address for admin sign-in notifications")
}

package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/psicopedagogiando/tienda/internal/flagx"
	"github.com/psicopedagogiando/tienda/internal/timex"
)

// JsonConfig is the on-disk shape of the optional config file. Durations use
// timex.Duration so both "60s" and integer nanoseconds are accepted. Empty
// values leave the corresponding Config field untouched.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	SecureCookies                *bool          `json:"secure_cookies"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	S3PrivateBucket              string         `json:"s3_private_bucket"`
	S3PublicBucket               string         `json:"s3_public_bucket"`
	S3PublicBaseURL              string         `json:"s3_public_base_url"`
	SignedURLValidityDuration    timex.Duration `json:"signed_url_validity_duration"`
	MercadoPagoBaseURL           string         `json:"mercadopago_base_url"`
	Currency                     string         `json:"currency"`
	SiteOrigin                   string         `json:"site_origin"`
	CatalogRoute                 string         `json:"catalog_route"`
	HistoryRoute                 string         `json:"history_route"`
	RedisURL                     string         `json:"redis_url"`
	AMQPURL                      string         `json:"amqp_url"`
	LatchValidityDuration        timex.Duration `json:"latch_validity_duration"`
	RateLimitCapacity            int            `json:"rate_limit_capacity"`
	RateLimitInterval            timex.Duration `json:"rate_limit_interval"`
	LogFormat                    string         `json:"log_format"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config. It panics if
// the file cannot be read or decoded. The gateway access token is not read
// from JSON; it comes from the environment only.
func parseJson(config *Config, args []string) {
	jsonConfigFile := flagx.ConfigFilePath(args)

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PrivateBucket, c.S3PrivateBucket)
	setString(&config.S3PublicBucket, c.S3PublicBucket)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setDuration(&config.SignedURLValidityDuration, c.SignedURLValidityDuration)
	setString(&config.MercadoPagoBaseURL, c.MercadoPagoBaseURL)
	setString(&config.Currency, c.Currency)
	setString(&config.SiteOrigin, c.SiteOrigin)
	setString(&config.CatalogRoute, c.CatalogRoute)
	setString(&config.HistoryRoute, c.HistoryRoute)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.AMQPURL, c.AMQPURL)
	setDuration(&config.LatchValidityDuration, c.LatchValidityDuration)
	if c.RateLimitCapacity > 0 {
		config.RateLimitCapacity = c.RateLimitCapacity
	}
	setDuration(&config.RateLimitInterval, c.RateLimitInterval)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

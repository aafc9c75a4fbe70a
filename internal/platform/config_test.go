package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	return &Config{
		Port:                      3000,
		WSPath:                    "/ws",
		AllowedOrigins:            "*",
		AuthSecret:                "dev-secret-change-me",
		ConnectionLimitPerIP:      10,
		ChannelLimitPerConnection: 50,
		MessageRateLimit:          100,
		MessageRateWindowMS:       60000,
		ShutdownGracePeriod:       10 * time.Second,
		ActivityTimeoutSeconds:    120,
		SendBufferSize:            256,
		MetricsInterval:           15 * time.Second,
		LogLevel:                  "info",
		LogFormat:                 "json",
		Environment:               "development",
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, defaultConfig().Validate())
}

func TestValidateRejectsSentinelSecretInProduction(t *testing.T) {
	c := defaultConfig()
	c.Environment = "production"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_SECRET")
}

func TestValidateAcceptsRealSecretInProduction(t *testing.T) {
	c := defaultConfig()
	c.Environment = "production"
	c.AuthSecret = "a-real-secret"
	require.NoError(t, c.Validate())
}

func TestAddrDerivedFromPort(t *testing.T) {
	c := defaultConfig()
	c.Port = 8080
	assert.Equal(t, ":8080", c.Addr())
}

func TestOriginAllowListWildcard(t *testing.T) {
	c := defaultConfig()
	assert.Nil(t, c.OriginAllowList())
}

func TestOriginAllowListParsesCommaList(t *testing.T) {
	c := defaultConfig()
	c.AllowedOrigins = "https://a.example, https://b.example"
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.OriginAllowList())
}

func TestMessageRateWindowConversion(t *testing.T) {
	c := defaultConfig()
	c.MessageRateWindowMS = 1000
	assert.Equal(t, time.Second, c.MessageRateWindow())
}

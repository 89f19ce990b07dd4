package config

import (
	"log/slog"
	"strconv"
)

const redacted = "********"

// Entry is one printable configuration value.
type Entry struct {
	Key   string
	Value string
}

// Entries lists every setting in key order. Secrets are redacted.
func (c *Config) Entries() []Entry {
	token := ""
	if c.Storage.Token != "" {
		token = redacted
	}
	return []Entry{
		{KeyAPRSCallsign, c.APRS.Callsign},
		{KeyAPRSFilter, c.APRS.Filter},
		{KeyAPRSHeartbeatInterval, FormatInterval(c.APRS.HeartbeatInterval)},
		{KeyAPRSPasscode, redactPasscode(c.APRS.Passcode)},
		{KeyAPRSPort, strconv.Itoa(c.APRS.Port)},
		{KeyAPRSReconnectInitial, FormatInterval(c.APRS.Reconnect.Initial)},
		{KeyAPRSReconnectJitter, strconv.FormatFloat(c.APRS.Reconnect.Jitter, 'f', -1, 64)},
		{KeyAPRSReconnectMax, FormatInterval(c.APRS.Reconnect.Max)},
		{KeyAPRSServer, c.APRS.Server},
		{KeyDuckDBPath, c.Storage.DuckDBPath},
		{KeyInfluxBucket, c.Storage.Bucket},
		{KeyInfluxOrg, c.Storage.Org},
		{KeyInfluxToken, token},
		{KeyInfluxURL, c.Storage.URL},
		{KeyLogJSON, strconv.FormatBool(c.Log.JSON)},
		{KeyLogLevel, c.Log.Level},
		{KeyMetricsListen, c.MetricsListen},
		{KeyStatusInterval, FormatInterval(c.StatusInterval)},
		{KeyStorageBackend, c.Storage.Backend},
	}
}

func redactPasscode(p string) string {
	if p == "-1" || p == PasscodeAuto {
		return p
	}
	return redacted
}

// Print logs every setting at info level between separator lines.
func (c *Config) Print(log *slog.Logger) {
	log.Info("###########################################################")
	for _, e := range c.Entries() {
		log.Info(e.Key + ": " + e.Value)
	}
	log.Info("###########################################################")
}

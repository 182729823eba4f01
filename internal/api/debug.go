package api

import (
	"net/http"
	"time"

	"tollfee/internal/buildinfo"
	"tollfee/internal/toll"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	hol := s.Engine.Calendar().Holidays()
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"engine": map[string]any{
			"timeZone":        toll.TimeZone,
			"holidaysVersion": hol.Version,
			"holidayYears":    hol.Years(),
			"dailyCap":        toll.DailyCap,
			"windowMinutes":   int(toll.WindowDuration / time.Minute),
		},
		"config": map[string]any{
			"PORT":                 s.Config.Port,
			"APP_ENV":              s.Config.Env,
			"ALLOW_ORIGINS":        s.Config.AllowOrigins,
			"RATE_RPS":             s.Config.RateRPS,
			"RATE_BURST":           s.Config.RateBurst,
			"CHARGE_CACHE":         s.Config.ChargeCache,
			"WEBHOOK_MAX_ATTEMPTS": s.Config.WebhookAttempts,
			"WEBHOOK_ENDPOINTS":    len(s.Config.WebhookURLs),
			"HAS_DATABASE_URL":     s.Config.DatabaseURL != "",
			"HAS_REDIS_URL":        s.Config.RedisURL != "",
		},
	})
}

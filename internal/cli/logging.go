package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/internal/config"
	"pricesync/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		exportLine(cfg.Export),
		fmt.Sprintf("Run journal: %s", presence(strings.TrimSpace(cfg.Journal.Dir) != "")),
		scheduleLine(cfg),
		sectionLine("Market config", cfg.Market),
		sectionLine("Sync config", cfg.Sync),
	}
	if m := cfg.Market.Value; m != nil {
		lines = append(lines, fmt.Sprintf("Provider chain: %s", strings.Join(m.Order(), " → ")))
	}

	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func exportLine(e config.ExportConf) string {
	if strings.TrimSpace(e.Dir) == "" {
		return "Export: disabled"
	}
	return fmt.Sprintf("Export: %s (%s)", e.Dir, e.Format)
}

func scheduleLine(cfg *config.Config) string {
	if !cfg.Schedule.Enabled {
		return "Schedule: disabled"
	}
	return fmt.Sprintf("Schedule: %q run_on_start=%t", cfg.ScheduleSpec(), cfg.Schedule.RunOnStart)
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fleetwatch/fleetwatch/internal/database"
)

// SeedRule is one alert rule loaded from the seed file.
type SeedRule struct {
	Name                 string   `yaml:"name"`
	Description          string   `yaml:"description"`
	MetricName           string   `yaml:"metric_name"`
	Condition            string   `yaml:"condition"`
	ThresholdValue       string   `yaml:"threshold_value"`
	EvaluationWindow     int      `yaml:"evaluation_window"`
	Level                string   `yaml:"level"`
	DeviceIDs            []string `yaml:"device_ids"`
	Enabled              *bool    `yaml:"enabled"`
	CooldownMinutes      int      `yaml:"cooldown_minutes"`
	NotificationChannels []string `yaml:"notification_channels"`
	AutoResolve          *bool    `yaml:"auto_resolve"`
	AutoResolveTimeout   int      `yaml:"auto_resolve_timeout"`
}

type seedFile struct {
	Rules []SeedRule `yaml:"rules"`
}

// ToAlertRule converts the seed entry into a database rule. Unset flags
// default to true.
func (s SeedRule) ToAlertRule() *database.AlertRule {
	enabled, autoResolve := true, true
	if s.Enabled != nil {
		enabled = *s.Enabled
	}
	if s.AutoResolve != nil {
		autoResolve = *s.AutoResolve
	}
	return &database.AlertRule{
		Name:                 s.Name,
		Description:          s.Description,
		MetricName:           s.MetricName,
		Condition:            database.AlertCondition(s.Condition),
		ThresholdValue:       s.ThresholdValue,
		EvaluationWindow:     s.EvaluationWindow,
		Level:                database.AlertLevel(s.Level),
		DeviceIDs:            s.DeviceIDs,
		CooldownMinutes:      s.CooldownMinutes,
		NotificationChannels: s.NotificationChannels,
		AutoResolveTimeout:   s.AutoResolveTimeout,
		Enabled:              &enabled,
		AutoResolve:          &autoResolve,
		CreatedBy:            "seed",
	}
}

// LoadSeedRules reads alert rules from a YAML file. A missing file is not
// an error; seeding is optional.
func LoadSeedRules(path string) ([]SeedRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rule seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule seed file %s: %w", path, err)
	}

	for i, rule := range file.Rules {
		if rule.Name == "" || rule.MetricName == "" {
			return nil, fmt.Errorf("rule seed entry %d: name and metric_name are required", i)
		}
	}
	return file.Rules, nil
}

package policy

import "github.com/halden/outlay/internal/models"

// The wire protocol has no "manual" frequency: manual is represented as
// instant reporting with harvesting switched off. These helpers translate
// between the user-facing name and the stored pair.

// IsValidFrequency reports whether the frequency is one a user may pick
func IsValidFrequency(f models.AutoReportingFrequency) bool {
	switch f {
	case models.FrequencyInstant, models.FrequencyImmediate,
		models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyManual:
		return true
	}
	return false
}

// NormalizeFrequency maps a user-facing frequency to its stored
// representation: the frequency field plus the harvesting flag.
func NormalizeFrequency(f models.AutoReportingFrequency) (models.AutoReportingFrequency, bool) {
	if f == models.FrequencyManual {
		return models.FrequencyInstant, false
	}
	return f, true
}

// EffectiveFrequency maps a policy's stored pair back to the user-facing
// frequency name.
func EffectiveFrequency(p *models.Policy) models.AutoReportingFrequency {
	if p.AutoReportingFrequency == models.FrequencyInstant && !p.Harvesting.Enabled {
		return models.FrequencyManual
	}
	return p.AutoReportingFrequency
}

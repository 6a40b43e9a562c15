package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/theirongolddev/snapdash/internal/config"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/tui/theme"
)

// setupValues holds the values bound to the setup form fields.
type setupValues struct {
	months      string
	degree      int
	showTrend   bool
	theme       string
	payloadPath string
}

func setupValuesFrom(cfg config.Config) setupValues {
	return setupValues{
		months:      strconv.Itoa(cfg.General.DefaultMonths),
		degree:      cfg.TrendParams().Degree,
		showTrend:   cfg.General.ShowTrendline,
		theme:       cfg.Appearance.Theme,
		payloadPath: cfg.General.PayloadPath,
	}
}

func validateMonths(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("enter a whole number")
	}
	if n < 0 || n > model.MaxFuturePeriods {
		return fmt.Errorf("between 0 and %d", model.MaxFuturePeriods)
	}
	return nil
}

// newSetupForm builds the first-run form. Field values are written into vals.
func newSetupForm(vals *setupValues) *huh.Form {
	degrees := make([]huh.Option[int], 0, model.MaxDegree)
	for d := model.MinDegree; d <= model.MaxDegree; d++ {
		degrees = append(degrees, huh.NewOption(degreeName(d), d))
	}

	themes := make([]huh.Option[string], 0, len(theme.All))
	for _, name := range theme.Names() {
		themes = append(themes, huh.NewOption(name, name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to snapdash").
				Description("Set trendline defaults. Flags and the TUI keys override them per run."),
			huh.NewInput().
				Title("Months to project").
				Description("Future months appended to each trendline (0 to "+strconv.Itoa(model.MaxFuturePeriods)+").").
				Validate(validateMonths).
				Value(&vals.months),
			huh.NewSelect[int]().
				Title("Trendline degree").
				Options(degrees...).
				Value(&vals.degree),
			huh.NewConfirm().
				Title("Show trendlines?").
				Value(&vals.showTrend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Default payload").
				Description("Used when no file is given. Leave blank to always pass one.").
				Placeholder("~/snapshots.json").
				Value(&vals.payloadPath),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&vals.theme),
		),
	)
}

func degreeName(d int) string {
	switch d {
	case 1:
		return "1 (linear)"
	case 2:
		return "2 (quadratic)"
	case 3:
		return "3 (cubic)"
	default:
		return strconv.Itoa(d) + " (quartic)"
	}
}

// apply copies the form values into cfg.
func (v setupValues) apply(cfg *config.Config) {
	if n, err := strconv.Atoi(strings.TrimSpace(v.months)); err == nil {
		cfg.General.DefaultMonths = n
	}
	cfg.General.TrendDegree = v.degree
	cfg.General.ShowTrendline = v.showTrend
	cfg.General.PayloadPath = strings.TrimSpace(v.payloadPath)
	if v.theme != "" {
		cfg.Appearance.Theme = v.theme
	}
}

// saveSetupConfig merges the form values into the config on disk.
func saveSetupConfig(vals setupValues) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	vals.apply(&cfg)
	theme.SetActive(cfg.Appearance.Theme)
	return cfg, config.Save(cfg)
}

// RunSetup runs the setup form standalone and saves the result.
func RunSetup() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	vals := setupValuesFrom(cfg)
	if err := newSetupForm(&vals).Run(); err != nil {
		return cfg, err
	}
	return saveSetupConfig(vals)
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/flybeeper/efb-backend/internal/performance"
	"github.com/spf13/cobra"
)

type landingOptions struct {
	weight        float64
	flaps         string
	condition     string
	approachSpeed float64
	windDirection float64
	windMagnitude float64
	runwayHeading float64
	runwayLength  float64
	reverse       bool
	altitude      float64
	temperature   float64
	slope         float64
	overweight    bool
	pressure      float64
	autoland      bool
	asJSON        bool
}

func newLandingCmd() *cobra.Command {
	opts := &landingOptions{}

	c := &cobra.Command{
		Use:   "landing",
		Short: "Calculate landing distances for LOW, MED and MAX autobrake",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLanding(cmd.OutOrStdout(), opts)
		},
	}

	f := c.Flags()
	f.Float64Var(&opts.weight, "weight", 0, "landing weight, kg")
	f.StringVar(&opts.flaps, "flaps", "FULL", "flaps configuration (CONF3, FULL)")
	f.StringVar(&opts.condition, "condition", "DRY", "runway condition (DRY, GOOD, GOOD_MEDIUM, MEDIUM, MEDIUM_POOR, POOR)")
	f.Float64Var(&opts.approachSpeed, "vapp", 0, "approach speed, kt")
	f.Float64Var(&opts.windDirection, "wind-dir", 0, "wind direction, degrees")
	f.Float64Var(&opts.windMagnitude, "wind-speed", 0, "wind speed, kt")
	f.Float64Var(&opts.runwayHeading, "rwy-heading", 0, "runway heading, degrees")
	f.Float64Var(&opts.runwayLength, "rwy-length", 0, "runway length, m")
	f.BoolVar(&opts.reverse, "reverse", false, "reverse thrust used")
	f.Float64Var(&opts.altitude, "altitude", 0, "runway elevation, ft")
	f.Float64Var(&opts.temperature, "oat", 15, "outside air temperature, °C")
	f.Float64Var(&opts.slope, "slope", 0, "runway slope, % (negative is downslope)")
	f.BoolVar(&opts.overweight, "overweight", false, "overweight landing procedure")
	f.Float64Var(&opts.pressure, "qnh", 1013.25, "QNH, hPa")
	f.BoolVar(&opts.autoland, "autoland", false, "autoland")
	f.BoolVar(&opts.asJSON, "json", false, "print result as JSON")

	_ = c.MarkFlagRequired("weight")
	_ = c.MarkFlagRequired("vapp")
	_ = c.MarkFlagRequired("rwy-heading")
	_ = c.MarkFlagRequired("rwy-length")

	return c
}

func runLanding(out io.Writer, opts *landingOptions) error {
	in, err := opts.input()
	if err != nil {
		return err
	}
	if err := performance.ValidateRunwayLength(opts.runwayLength); err != nil {
		return err
	}

	distances, err := performance.NewCalculator().CalculateLandingDistances(in)
	if err != nil {
		return err
	}
	result := performance.BuildResult(distances, opts.runwayLength)

	logger.WithFields(map[string]interface{}{
		"weight": in.Weight,
		"flaps":  in.Flaps.String(),
		"runway": in.RunwayCondition.String(),
	}).Debug("Landing distances calculated")

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "Runway length: %.0f m\n", result.DisplayedRunwayLength)
	rows := []struct {
		mode    string
		dist    int
		exceeds bool
	}{
		{"LOW", result.LowAutobrakeLandingDist, result.LowExceedsRunway},
		{"MED", result.MediumAutobrakeLandingDist, result.MediumExceedsRunway},
		{"MAX", result.MaxAutobrakeLandingDist, result.MaxExceedsRunway},
	}
	for _, r := range rows {
		mark := ""
		if r.exceeds {
			mark = "  EXCEEDS RUNWAY"
		}
		fmt.Fprintf(out, "%-4s %5d m%s\n", r.mode, r.dist, mark)
	}
	return nil
}

func (o *landingOptions) input() (performance.Input, error) {
	flaps, err := parseFlaps(o.flaps)
	if err != nil {
		return performance.Input{}, err
	}
	condition, err := parseCondition(o.condition)
	if err != nil {
		return performance.Input{}, err
	}

	return performance.Input{
		Weight:              o.weight,
		Flaps:               flaps,
		RunwayCondition:     condition,
		ApproachSpeed:       o.approachSpeed,
		WindDirection:       o.windDirection,
		WindMagnitude:       o.windMagnitude,
		RunwayHeading:       o.runwayHeading,
		ReverseThrust:       o.reverse,
		Altitude:            o.altitude,
		Temperature:         o.temperature,
		Slope:               o.slope,
		OverweightProcedure: o.overweight,
		Pressure:            o.pressure,
		Autoland:            o.autoland,
	}, nil
}

func parseFlaps(s string) (performance.FlapsConfig, error) {
	for _, f := range []performance.FlapsConfig{performance.FlapsConf3, performance.FlapsFull} {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown flaps configuration %q", s)
}

func parseCondition(s string) (performance.RunwayCondition, error) {
	for c := performance.RunwayDry; c.Valid(); c++ {
		if strings.EqualFold(c.String(), s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown runway condition %q", s)
}

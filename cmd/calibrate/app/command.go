package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ProgramName    = "Spectral Calibration Software"
	ProgramVersion = "1.0"
	DefaultOrigin  = "Metsahovi"
)

// flagAliases maps the short historical flag spellings to their canonical names.
var flagAliases = map[string]string{
	"fc":              keyCenterFrequency,
	"centrefreqrange": keyCenterFrequency,
	"starttime":       keyStart,
	"endtime":         keyEnd,
	"el":              keyElevation,
	"fr":              keyRestFrequency,
	"restfreq":        keyRestFrequency,
	"fig":             keyFigureSize,
	"figuresize":      keyFigureSize,
	"gr":              keyGrid,
	"plotgrid":        keyGrid,
	"md":              keyMetadata,
	"plotmetadata":    keyMetadata,
	"dbg":             keyDebug,
	"sub":             keySubplot,
	"subplotlabel":    keySubplot,
	"testrun":         keyTest,
	"sv":              keySave,
	"savedata":        keySave,
	"pr":              keyPrint,
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := flagAliases[strings.ToLower(name)]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

// NewCommand creates the root command. logLevel is adjusted to the configured
// level before the run starts.
func NewCommand(logLevel *slog.LevelVar, logger *slog.Logger) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "calibrate [flags] <directory>",
		Short:   "Calibrate and regrid spectral line observations",
		Long:    ProgramName + ": combine a night of spectrometer FITS files into an LSRK velocity spectrum",
		Version: ProgramVersion,
		Args:    cobra.MaximumNArgs(1),

		SilenceErrors: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			if err := readConfigFile(v); err != nil {
				return err
			}

			config, err := NewConfig(v, args)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			logLevel.Set(config.LogLevel)
			return Run(cmd.Context(), config, cmd.OutOrStdout(), logger)
		},
	}

	setupFlags(cmd.Flags())
	cobra.CheckErr(bindViper(v, cmd.Flags()))

	return cmd
}

// bindViper layers SPECCAL_* environment variables over the flag defaults of fs.
func bindViper(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvPrefix("SPECCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

func setupFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(normalizeFlag)

	fs.String(keyConfig, "", "YAML config file; keys are the long flag names")

	// Directory
	fs.StringP(keyDirectory, "d", "", "Directory of observation FITS files")

	// Filtering
	fs.String(keyCenterFrequency, "0:1e20", "Centre frequency range lo:hi in MHz; an empty or zero hi is open, e.g. 6668.5:6669.5, 4000:0")
	fs.StringP(keyTelescope, "t", "MCA1", "Process files observed by this telescope, e.g. MCA1, MCA2, MAINANT")
	fs.StringP(keyStart, "s", "2000-01-01T01:01:01", "Process files starting after this UTC time (YYYY-MM-DDTHH:MM:SS)")
	fs.StringP(keyEnd, "e", "", "Process files ending before this UTC time (YYYY-MM-DDTHH:MM:SS)")
	fs.Float64(keyElevation, 0, "Exclude files observed below this elevation in degrees")

	// Processing
	fs.StringP(keyChannels, "c", "0:4096", "Channel range lo:hi to process, e.g. 350:3500")
	fs.StringP(keyPolarization, "p", "R", "Polarization: R = right, L = left, B = both")
	fs.Float64(keyRestFrequency, 6668.5192, "Rest frequency in MHz used for velocities; 0 leaves it unset")
	fs.IntP(keyBins, "b", 1000, "Number of bins to regrid frequency and velocity into")
	fs.BoolP(keyMedian, "m", false, "Subtract a running median baseline from the signal")

	// Plotting
	fs.String(keyPlot, "", "Plot kind: regrid-velocity (RV), regrid-frequency (RF), sum-velocity (sumv), sum-frequency (sumf), velocity (V), frequency (F), channels (C), bins (B)")
	fs.String(keyPlotFile, "", "Plot PNG file; defaults to <OBJECT>_<timestamp>_<kind>.png")
	fs.String(keyFigureSize, "10:6", "Figure size X:Y in inches")
	fs.Bool(keyGrid, false, "Draw a grid on the plot")
	fs.Bool(keyMetadata, false, "Draw the run metadata on the plot")
	fs.Bool(keySubplot, false, "Add a subplot label to the plot")

	// Utility
	fs.Bool(keyDebug, false, "Log the loaded observation files and stop")
	fs.Bool(keyTest, false, "Run the pipeline without plotting or saving")
	fs.String(keyLocations, "", "YAML telescope catalog overriding the built-in locations")
	fs.Int(keyWorkers, 0, "Files processed concurrently; 0 uses every CPU")
	fs.String(keyOrigin, DefaultOrigin, "Observatory written to the ORIGIN keyword")
	fs.String(keyLogLevel, "info", "Log level: debug, info, warn, error")

	// Saving
	fs.Bool(keySave, false, "Save the calibrated product to a FITS file")
	fs.Bool(keyPrint, false, "Print the saved product")
	fs.StringP(keyOutput, "o", "", "Product FITS file; implies --save")
	fs.String(keyArchive, "", "SQLite database to archive the run in")
	fs.String(keyMetricsFile, "", "Write run metrics to this Prometheus textfile")
}

func readConfigFile(v *viper.Viper) error {
	path := v.GetString(keyConfig)
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

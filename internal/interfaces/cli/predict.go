package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	domain "github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

func newPredictCmd() *cobra.Command {
	var (
		m             domain.Measurements
		approximateWs bool
		regeneration  bool
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a synthesis recipe from one set of measurements",
		Example: `  adsorpnet predict --sbet 1200 --a0 10.5 --e 6.5 --ws 0.45 --sme 200
  adsorpnet predict --sbet 1200 --a0 10.5 --e 6.5 --sme 200 --approx-ws --regeneration -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !approximateWs && !cmd.Flags().Changed("ws") {
				return errors.NewInvalidInputError("--ws is required unless --approx-ws is set")
			}

			in := &app.PredictInput{Measurements: m, ApproximateWs: approximateWs}
			if cmd.Flags().Changed("regeneration") {
				in.Regeneration = &regeneration
			}

			return withBackend(cmd, func(_ *CLIContext, b backend) error {
				r, err := b.Predict(cmd.Context(), in)
				if err != nil {
					return err
				}
				return PrintResult(cmd, recipeView{r: r})
			})
		},
	}

	f := cmd.Flags()
	f.Float64Var(&m.SurfaceArea, "sbet", 0, "BET specific surface area, m²/g")
	f.Float64Var(&m.LimitingAdsorption, "a0", 0, "limiting adsorption, mmol/g")
	f.Float64Var(&m.NitrogenEnergy, "e", 0, "characteristic adsorption energy of nitrogen, kJ/mol")
	f.Float64Var(&m.TotalPoreVolume, "ws", 0, "total pore volume, cm³/g")
	f.Float64Var(&m.MesoporeSurface, "sme", 0, "mesopore surface area, m²/g")
	f.BoolVar(&approximateWs, "approx-ws", false, "estimate Ws from a0 instead of --ws")
	f.BoolVar(&regeneration, "regeneration", false, "also predict the regeneration temperature (default from config)")
	for _, name := range []string{"sbet", "a0", "e", "sme"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newBatchCmd() *cobra.Command {
	var (
		input         string
		approximateWs bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Predict recipes for every row of a CSV file",
		Long: `Reads measurements from a CSV file with a header row. Required columns are
sbet, a0, e and sme; ws is required unless --approx-ws is set. Optional
columns approx_ws and regeneration take true/false per row. Use "-" to read
standard input.`,
		Example: `  adsorpnet batch --input samples.csv -o table`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return errors.Wrap(err, errors.ErrCodeBadRequest, "cannot open input file").WithDetail(input)
				}
				defer f.Close()
				r = f
			}
			items, err := readMeasurementsCSV(r, approximateWs)
			if err != nil {
				return err
			}

			return withBackend(cmd, func(cliCtx *CLIContext, b backend) error {
				cliCtx.Logger.Info("batch loaded", logging.Int("rows", len(items)))
				out, err := b.PredictBatch(cmd.Context(), &app.BatchInput{Items: items, Source: "cli"})
				if err != nil {
					return err
				}
				if err := PrintResult(cmd, batchView{out: out}); err != nil {
					return err
				}
				if out.Failed > 0 && out.Succeeded == 0 {
					return errors.New(errors.ErrCodeValidation, "every row of the batch failed")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV file with one sample per row, or - for stdin")
	cmd.Flags().BoolVar(&approximateWs, "approx-ws", false, "estimate Ws from a0 for every row")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// csvColumns maps header names to measurement fields, in report order.
var csvColumns = []struct {
	name  string
	field func(m *domain.Measurements) *float64
}{
	{"sbet", func(m *domain.Measurements) *float64 { return &m.SurfaceArea }},
	{"a0", func(m *domain.Measurements) *float64 { return &m.LimitingAdsorption }},
	{"e", func(m *domain.Measurements) *float64 { return &m.NitrogenEnergy }},
	{"ws", func(m *domain.Measurements) *float64 { return &m.TotalPoreVolume }},
	{"sme", func(m *domain.Measurements) *float64 { return &m.MesoporeSurface }},
}

// readMeasurementsCSV parses a header-led CSV of measurements. Header names
// are matched case-insensitively; unknown columns are ignored.
func readMeasurementsCSV(r io.Reader, approximateWs bool) ([]*app.PredictInput, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewInvalidInputError("input is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed CSV header")
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	required := []string{"sbet", "a0", "e", "sme"}
	if !approximateWs {
		if _, ok := index["approx_ws"]; !ok {
			required = append(required, "ws")
		}
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, errors.NewInvalidInputError("CSV header is missing column " + col)
		}
	}

	var items []*app.PredictInput
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed CSV row")
		}
		item, err := parseCSVRow(rec, index, approximateWs)
		if err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("line %d: %s", line, err.Error()))
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, errors.NewInvalidInputError("input has a header but no rows")
	}
	if len(items) > app.MaxBatchItems {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("input has %d rows; at most %d are allowed", len(items), app.MaxBatchItems))
	}
	return items, nil
}

func parseCSVRow(rec []string, index map[string]int, approximateWs bool) (*app.PredictInput, error) {
	cell := func(col string) (string, bool) {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return "", false
		}
		v := strings.TrimSpace(rec[i])
		return v, v != ""
	}

	item := &app.PredictInput{ApproximateWs: approximateWs}
	if v, ok := cell("approx_ws"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("approx_ws %q is not a boolean", v)
		}
		item.ApproximateWs = item.ApproximateWs || b
	}
	if v, ok := cell("regeneration"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("regeneration %q is not a boolean", v)
		}
		item.Regeneration = &b
	}

	for _, col := range csvColumns {
		v, ok := cell(col.name)
		if !ok {
			if col.name == "ws" && item.ApproximateWs {
				continue
			}
			return nil, fmt.Errorf("%s is empty", col.name)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s %q is not a number", col.name, v)
		}
		*col.field(&item.Measurements) = f
	}
	return item, nil
}

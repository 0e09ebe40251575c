package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	domain "github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatConfidence(r *domain.Recipe, stage domain.Stage) string {
	c := r.Confidence(stage)
	if c == 0 {
		return ""
	}
	return fmt.Sprintf("%.1f%%", c*100)
}

// recipeView renders one predicted recipe.
type recipeView struct {
	r *domain.Recipe
}

func (v recipeView) JSONValue() interface{} { return v.r }

func (v recipeView) rows() [][]string {
	r := v.r
	rows := [][]string{
		{"Metal", r.Metal, formatConfidence(r, metalStage(r))},
		{"Ligand", r.Ligand, formatConfidence(r, domain.StageLigand)},
		{"Solvent", r.Solvent, formatConfidence(r, domain.StageSolvent)},
		{"Salt mass, g", formatFloat(r.SaltMass), ""},
		{"Acid mass, g", formatFloat(r.AcidMass), ""},
		{"Synthesis volume, ml", formatFloat(r.Volume), ""},
		{"Tsyn, °C", r.Tsyn, formatConfidence(r, domain.StageTsyn)},
		{"Tdry, °C", r.Tdry, formatConfidence(r, domain.StageTdry)},
	}
	if r.Treg != nil {
		rows = append(rows, []string{"Treg, °C", *r.Treg, formatConfidence(r, domain.StageTreg)})
	}
	return rows
}

// metalStage is the classifier that picked the metal on r's branch.
func metalStage(r *domain.Recipe) domain.Stage {
	if _, ok := r.StageResult(domain.StageMajorMetal); ok {
		return domain.StageMajorMetal
	}
	return domain.StageMinorMetal
}

func (v recipeView) TableHeaders() []string { return []string{"PARAMETER", "VALUE", "CONFIDENCE"} }
func (v recipeView) TableRows() [][]string  { return v.rows() }

func (v recipeView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Prediction %s (branch %s, models %s)\n", v.r.ID, v.r.Branch, v.r.ModelVersion)
	for _, row := range v.rows() {
		line := fmt.Sprintf("  %-22s %s", row[0]+":", row[1])
		if row[2] != "" {
			line += " (" + row[2] + ")"
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// batchView renders a batch outcome, one row per input.
type batchView struct {
	out *app.BatchOutput
}

func (v batchView) JSONValue() interface{} { return v.out }

func (v batchView) TableHeaders() []string {
	return []string{"#", "STATUS", "METAL", "LIGAND", "SOLVENT", "TSYN", "TDRY", "TREG", "ERROR"}
}

func (v batchView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.out.Items))
	for _, item := range v.out.Items {
		row := []string{strconv.Itoa(item.Index + 1), item.Status, "", "", "", "", "", "", ""}
		if r := item.Recipe; r != nil {
			row[2], row[3], row[4], row[5], row[6] = r.Metal, r.Ligand, r.Solvent, r.Tsyn, r.Tdry
			if r.Treg != nil {
				row[7] = *r.Treg
			}
		}
		if item.Error != nil {
			row[8] = item.Error.Code + ": " + item.Error.Message
		}
		rows = append(rows, row)
	}
	return rows
}

func (v batchView) String() string {
	return fmt.Sprintf("%s\n%d of %d succeeded, %d failed (%.0f ms)\n",
		strings.TrimSuffix(FormatTable(v.TableHeaders(), v.TableRows()), "\n"),
		v.out.Succeeded, v.out.Total, v.out.Failed, v.out.DurationMs)
}

// modelsView renders the artifact registry state.
type modelsView struct {
	info *app.ModelsInfo
}

func (v modelsView) JSONValue() interface{} { return v.info }

func (v modelsView) TableHeaders() []string {
	return []string{"KIND", "KEY", "FILE", "SIZE", "LOADED AT"}
}

func (v modelsView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.info.Loaded))
	for _, a := range v.info.Loaded {
		rows = append(rows, []string{
			a.Kind.String(), a.Key, a.File, strconv.FormatInt(a.SizeBytes, 10),
			a.LoadedAt.Format(time.RFC3339),
		})
	}
	return rows
}

func (v modelsView) String() string {
	req := v.info.Required
	return fmt.Sprintf("Artifact version: %s\nLoaded: %d (%d bytes)\nRequired: %d models, %d scalers, %d encoders\n",
		v.info.Version, len(v.info.Loaded), v.info.MemoryBytes,
		len(req.Models), len(req.Scalers), len(req.Encoders))
}

// cacheView renders result-cache statistics.
type cacheView struct {
	Enabled bool                 `json:"enabled"`
	Stats   predictor.CacheStats `json:"stats"`
}

func (v cacheView) TableHeaders() []string {
	return []string{"BACKEND", "ENTRIES", "HITS", "MISSES", "EVICTIONS", "HIT RATE"}
}

func (v cacheView) TableRows() [][]string {
	if !v.Enabled {
		return nil
	}
	s := v.Stats
	return [][]string{{
		s.Backend,
		strconv.FormatInt(s.Entries, 10),
		strconv.FormatInt(s.Hits, 10),
		strconv.FormatInt(s.Misses, 10),
		strconv.FormatInt(s.Evictions, 10),
		fmt.Sprintf("%.1f%%", s.HitRate()*100),
	}}
}

func (v cacheView) String() string {
	if !v.Enabled {
		return "Result cache is disabled\n"
	}
	s := v.Stats
	return fmt.Sprintf("Backend: %s\nEntries: %d\nHits: %d\nMisses: %d\nHit rate: %.1f%%\n",
		s.Backend, s.Entries, s.Hits, s.Misses, s.HitRate()*100)
}

// historyView renders a page of stored predictions.
type historyView struct {
	res *app.ListResult
}

func (v historyView) JSONValue() interface{} { return v.res }

func (v historyView) TableHeaders() []string {
	return []string{"ID", "COMPLETED", "METAL", "LIGAND", "SOLVENT", "TSYN", "TDRY"}
}

func (v historyView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.res.Items))
	for _, r := range v.res.Items {
		rows = append(rows, []string{
			r.ID, r.CompletedAt.Format(time.RFC3339), r.Metal, r.Ligand, r.Solvent, r.Tsyn, r.Tdry,
		})
	}
	return rows
}

func (v historyView) String() string {
	end := v.res.Offset + len(v.res.Items)
	return fmt.Sprintf("%sShowing %d-%d of %d\n",
		FormatTable(v.TableHeaders(), v.TableRows()), min(v.res.Offset+1, end), end, v.res.Total)
}

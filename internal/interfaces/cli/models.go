package cli

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/storage/minio"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect and manage model, scaler and encoder artifacts",
		Long: `Inspect and manage the artifact registry. Without --server the commands act
on a registry built in this process, which verifies that artifacts load;
with --server they manage the registry of the running server.`,
	}

	cmd.AddCommand(newModelsListCmd(), newModelsPreloadCmd(), newModelsUnloadCmd(), newModelsPushCmd())
	return cmd
}

// withBackend runs fn against the backend selected by the global flags.
func withBackend(cmd *cobra.Command, fn func(cliCtx *CLIContext, b backend) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()
	cmd.SetContext(ctx)

	b, err := openBackend(cmd, cliCtx)
	if err != nil {
		return err
	}
	defer b.Close(ctx)
	return fn(cliCtx, b)
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show loaded artifacts and what a full run requires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(_ *CLIContext, b backend) error {
				info, err := b.Models(cmd.Context())
				if err != nil {
					return err
				}
				return PrintResult(cmd, modelsView{info: info})
			})
		},
	}
}

func newModelsPreloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preload [KEY...]",
		Short: "Load artifacts ahead of the first prediction (all when no key is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(_ *CLIContext, b backend) error {
				info, err := b.PreloadModels(cmd.Context(), args)
				if info != nil {
					if perr := PrintResult(cmd, modelsView{info: info}); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func newModelsUnloadCmd() *cobra.Command {
	var except bool

	cmd := &cobra.Command{
		Use:   "unload KEY...",
		Short: "Release loaded artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(_ *CLIContext, b backend) error {
				n, err := b.UnloadModels(cmd.Context(), &app.UnloadInput{Keys: args, Except: except})
				if err != nil {
					return err
				}
				PrintSuccess(cmd, "unloaded "+strconv.Itoa(n)+" artifact(s)")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&except, "except", false, "release everything except the given keys")
	return cmd
}

func newModelsPushCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload a local artifact directory to the MinIO artifact bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if dir == "" {
				dir = cfg.Artifacts.Dir
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			manifest, err := common.LoadManifest(ctx, common.NewDirStore(dir), cfg.Artifacts.Manifest)
			if err != nil {
				return err
			}
			for _, name := range manifest.Files() {
				if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
					return errors.ArtifactNotFound("file", name).WithCause(err)
				}
			}

			mc, err := minio.NewClient(cfg.MinIO, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer mc.Close()
			if err := mc.EnsureBucket(ctx); err != nil {
				return err
			}

			n, err := minio.NewArtifactStore(mc, cliCtx.Logger).Push(ctx, os.DirFS(dir))
			if err != nil {
				return err
			}
			cliCtx.Logger.Info("artifacts pushed",
				logging.String("bucket", mc.Bucket()),
				logging.String("version", manifest.Version),
				logging.Int("files", n),
			)
			PrintSuccess(cmd, "pushed "+strconv.Itoa(n)+" file(s) of artifact version "+manifest.Version+" to "+mc.Bucket())
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "local artifact directory (default artifacts.dir)")
	return cmd
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the stage result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show result cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(_ *CLIContext, b backend) error {
				stats, enabled, err := b.CacheStats(cmd.Context())
				if err != nil {
					return err
				}
				return PrintResult(cmd, cacheView{Enabled: enabled, Stats: stats})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached stage result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(_ *CLIContext, b backend) error {
				if err := b.ClearCache(cmd.Context()); err != nil {
					return err
				}
				PrintSuccess(cmd, "result cache cleared")
				return nil
			})
		},
	})

	return cmd
}

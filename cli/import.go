package cli

import (
	"fmt"

	"github.com/GrainArc/SectorMap/Transformer"
	"github.com/GrainArc/SectorMap/models"
	"github.com/GrainArc/SectorMap/services"
	"github.com/spf13/cobra"
)

// ImportOptions import 命令参数
type ImportOptions struct {
	*RootOptions
	UserID uint
}

// NewImportCommand 从 GeoJSON、shapefile 或 zip/rar 压缩包批量导入，单个事务
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import sectors from GeoJSON or a shapefile",
		Long: `Import every feature of a file as a new sector.

Supported inputs are a GeoJSON FeatureCollection (.geojson, .json), KML
polygons (.kml), a polygon shapefile (.shp with its .dbf/.shx siblings) and a
.zip or .rar archive containing shapefiles. Attribute names are matched case-insensitively, so
CANAL_NAME maps to Canal_Name. Text encoding follows the .cpg file when present.

All features are validated first and written in one transaction; if any
feature fails, nothing is imported. Each sector gets its INSERT history entry
attributed to --user.

Example:
  sectormap import --user 1 ./sectors.geojson
  sectormap import --user 1 ./east_division.zip`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args[0])
		},
	}

	cmd.Flags().UintVar(&opts.UserID, "user", 0, "id of the user the import is attributed to (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions, path string) error {
	inputs, err := Transformer.LoadSectors(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	_, log, db, err := bootstrap(opts.RootOptions)
	if err != nil {
		return err
	}
	svc := services.NewSectorService(db, services.NoopCache{}, log)
	ids, err := svc.Import(cmd.Context(), services.Actor{ID: opts.UserID, Role: models.RoleAdmin}, inputs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d sectors\n", len(ids))
	return nil
}

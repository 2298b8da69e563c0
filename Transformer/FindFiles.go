package Transformer

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/GrainArc/SectorMap/methods"
	"github.com/paulmach/orb/geojson"
)

// FindFiles 递归查找指定扩展名的文件，结果按路径排序
func FindFiles(root string, ext string) ([]string, error) {
	var files []string
	suffix := "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), suffix) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// LoadSectors 按扩展名读取导入文件：GeoJSON、KML、shapefile，或包含 shapefile 的 zip/rar
func LoadSectors(path string) ([]*methods.SectorInput, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".geojson" || ext == ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return methods.ParseFeatureCollection(data)
	case ext == ".shp":
		return loadShapefile(path)
	case ext == ".kml":
		fc, err := ReadKml(path)
		if err != nil {
			return nil, err
		}
		return toInputs(filepath.Base(path), fc)
	case methods.IsArchive(path):
		dir, cleanup, err := methods.ExtractArchive(path)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		shps, err := FindFiles(dir, "shp")
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", filepath.Base(path), err)
		}
		if len(shps) == 0 {
			return nil, fmt.Errorf("%w: no shapefile in %s", methods.ErrInvalidPayload, filepath.Base(path))
		}
		var out []*methods.SectorInput
		for _, shpPath := range shps {
			inputs, err := loadShapefile(shpPath)
			if err != nil {
				return nil, err
			}
			out = append(out, inputs...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", methods.ErrInvalidPayload, ext)
	}
}

func loadShapefile(path string) ([]*methods.SectorInput, error) {
	fc, err := ReadShapefile(path)
	if err != nil {
		return nil, err
	}
	return toInputs(filepath.Base(path), fc)
}

// toInputs 经 GeoJSON 编码后走与接口相同的要素解析
func toInputs(name string, fc *geojson.FeatureCollection) ([]*methods.SectorInput, error) {
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	inputs, err := methods.ParseFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return inputs, nil
}

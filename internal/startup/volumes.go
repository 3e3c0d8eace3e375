package startup

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BootstrapVolume is one entry in the optional VOLUMES_FILE. It mirrors the
// management API's add request so deployments can declare volumes up front
// instead of POSTing them after every fresh start.
type BootstrapVolume struct {
	Name            string   `yaml:"name"`
	MountPath       string   `yaml:"mountPath"`
	IndexName       string   `yaml:"indexName,omitempty"`
	IncludePatterns []string `yaml:"includePatterns,omitempty"`
	ExcludePatterns []string `yaml:"excludePatterns,omitempty"`
}

type volumesFile struct {
	Volumes []BootstrapVolume `yaml:"volumes"`
}

// LoadVolumesFile parses a YAML volume bootstrap file.
func LoadVolumesFile(path string) ([]BootstrapVolume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading volumes file: %w", err)
	}

	var f volumesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing volumes file %s: %w", path, err)
	}

	for i, v := range f.Volumes {
		if v.Name == "" {
			return nil, fmt.Errorf("volumes file %s: entry %d has no name", path, i)
		}
		if v.MountPath == "" {
			return nil, fmt.Errorf("volumes file %s: volume %q has no mountPath", path, v.Name)
		}
	}

	return f.Volumes, nil
}

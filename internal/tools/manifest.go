package tools

import (
	"encoding/json"
	"os"
	"strings"
)

// packageManifest is the subset of package.json the tools care about.
type packageManifest struct {
	Name            string            `json:"name"`
	Main            string            `json:"main"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func readPackageManifest(path string) (packageManifest, error) {
	var m packageManifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}

func manifestHasStartScript(path string) bool {
	m, err := readPackageManifest(path)
	if err != nil {
		return false
	}
	_, ok := m.Scripts["start"]
	return ok
}

// readRequirements returns the package names declared in a
// requirements.txt, without version pins or comments.
func readRequirements(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, sep := range []string{"==", ">=", "<=", "~=", ">", "<"} {
			if idx := strings.Index(line, sep); idx != -1 {
				line = line[:idx]
				break
			}
		}
		out = append(out, strings.TrimSpace(line))
	}
	return out
}

package utils

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Config holds values read from a bamqc key: value config file. All
// fields are strings; the cmd layer parses and validates them. Flags
// given on the command line override config file values.
type Config struct {
	Reference   string
	Alignment   string
	Report      string
	Window      string
	Genotypes   string
	StatsFile   string
	InsertsFile string
}

func ReadConfig(configPath string) (Config, error) {
	configFile, err := os.Open(configPath)
	if err != nil {
		return Config{}, err
	}
	defer configFile.Close()
	var cfg Config

	scanner := bufio.NewScanner(configFile)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "Reference":
			cfg.Reference = value
		case "Alignment":
			cfg.Alignment = value
		case "Report":
			cfg.Report = value
		case "Window":
			cfg.Window = value
		case "Genotypes":
			cfg.Genotypes = value
		case "StatsFile":
			cfg.StatsFile = value
		case "InsertsFile":
			cfg.InsertsFile = value
		}
	}

	if err := scanner.Err(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// CheckDeps verifies that every named program is on PATH.
func CheckDeps(programs ...string) error {
	var missing []string
	for _, p := range programs {
		if _, err := exec.LookPath(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required program(s) not found on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/ini.v1"
)

// External is one synced repository definition from the config file.
// It lives for the duration of a single sync pass.
type External struct {
	Name   string
	Path   string
	URL    string
	Branch string
	Script string
	LFS    bool
}

const (
	sectionPrefix = `external "`
	defaultBranch = "master"
)

var (
	sectionRe = regexp.MustCompile(`^\[.*\]$`)
	commentRe = regexp.MustCompile(`^[#;]`)
)

var knownKeys = map[string]bool{
	"path":   true,
	"url":    true,
	"branch": true,
	"script": true,
	"lfs":    true,
}

// Load reads the externals config at path. A missing or unreadable file is
// treated as an empty config, not an error. Parse problems that do not
// prevent reading the rest of the file come back as warnings in file order.
func Load(path string) ([]External, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil
	}

	return Parse(data)
}

// Parse reads externals from raw config bytes.
func Parse(data []byte) ([]External, []string, error) {
	warnings := scanMalformed(data)

	cfg, err := ini.LoadSources(ini.LoadOptions{
		SkipUnrecognizableLines: true,
	}, data)
	if err != nil {
		return nil, warnings, fmt.Errorf("failed to parse config: %w", err)
	}

	var externals []External

	for _, sec := range cfg.Sections() {
		name := sec.Name()

		if name == ini.DefaultSection {
			for _, key := range sec.KeyStrings() {
				warnings = append(warnings, fmt.Sprintf("key %q outside any [external] section, ignored", key))
			}

			continue
		}

		if !strings.HasPrefix(name, sectionPrefix) || !strings.HasSuffix(name, `"`) {
			warnings = append(warnings, fmt.Sprintf("unrecognized section [%s], ignored", name))

			continue
		}

		ext := External{
			Name:   name[len(sectionPrefix) : len(name)-1],
			Branch: defaultBranch,
		}

		for _, key := range sec.Keys() {
			switch key.Name() {
			case "path":
				ext.Path = key.String()
			case "url":
				ext.URL = key.String()
			case "branch":
				if v := key.String(); v != "" {
					ext.Branch = v
				}
			case "script":
				ext.Script = key.String()
			case "lfs":
				ext.LFS = key.MustBool(false)
			default:
				warnings = append(warnings, fmt.Sprintf("unknown key %q in [external %q], ignored", key.Name(), ext.Name))
			}
		}

		externals = append(externals, ext)
	}

	return externals, warnings, nil
}

// Validate reports what makes an external unusable, or nil.
func (e External) Validate() error {
	if e.Path == "" {
		return fmt.Errorf("external %q has no path", e.Name)
	}

	if e.URL == "" {
		return fmt.Errorf("external %q has no url", e.Name)
	}

	return nil
}

// scanMalformed collects warnings for lines the section/key grammar cannot
// accept. The ini loader skips them silently, so the pre-scan is what keeps
// them visible to the user.
func scanMalformed(data []byte) []string {
	var warnings []string

	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)

		if line == "" || commentRe.MatchString(line) || sectionRe.MatchString(line) {
			continue
		}

		if !strings.Contains(line, "=") {
			warnings = append(warnings, fmt.Sprintf("line %d: malformed entry %q, ignored", i+1, line))
		}
	}

	return warnings
}

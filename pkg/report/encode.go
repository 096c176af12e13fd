package report

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown report format")

// Formats lists the supported encodings.
var Formats = []string{"json", "yaml", "toml"}

// Encode writes r to w as json, yaml or toml.
func Encode(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
	case "toml":
		if err := toml.NewEncoder(w).Encode(r); err != nil {
			return fmt.Errorf("encode toml report: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
	return nil
}

func sortRows(rows []PathRow) {
	slices.SortFunc(rows, func(a, b PathRow) int {
		if c := cmp.Compare(b.CumulativeBytes, a.CumulativeBytes); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
}

package stubserver

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PackageRef identifies one package to score.
type PackageRef struct {
	Ecosystem string `json:"ecosystem"`
	Depname   string `json:"depname"`
	Version   string `json:"version"`
}

// Score holds the score categories reported for a package, each in [0, 1].
type Score struct {
	SupplyChain   float64 `json:"supplyChain"`
	Quality       float64 `json:"quality"`
	Maintenance   float64 `json:"maintenance"`
	Vulnerability float64 `json:"vulnerability"`
	License       float64 `json:"license"`
}

type depscoreInput struct {
	Packages []PackageRef `json:"packages"`
}

// depscoreSchema describes {packages: [{ecosystem, depname, version}]}.
func depscoreSchema() *jsonschema.Schema {
	pkg := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"ecosystem": {Type: "string", Description: "Package ecosystem, for example npm or pypi"},
			"depname":   {Type: "string", Description: "Name of the dependency"},
			"version":   {Type: "string", Description: "Version of the dependency"},
		},
		Required: []string{"depname"},
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"packages": {
				Type:        "array",
				Description: "Array of packages to check",
				Items:       pkg,
			},
		},
		Required: []string{"packages"},
	}
}

func handleDepscore(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input depscoreInput

	if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
			return ErrorResult("Invalid arguments: " + err.Error()), nil
		}
	}

	if len(input.Packages) == 0 {
		return ErrorResult("No packages provided"), nil
	}

	lines := make([]string, 0, len(input.Packages))

	for _, pkg := range input.Packages {
		if pkg.Depname == "" {
			return ErrorResult("Package entry without depname"), nil
		}

		if pkg.Ecosystem == "" {
			pkg.Ecosystem = "npm"
		}

		if pkg.Version == "" {
			pkg.Version = "unknown"
		}

		lines = append(lines, FormatScore(pkg, ScorePackage(pkg)))
	}

	return TextResult(strings.Join(lines, "\n")), nil
}

// ScorePackage derives a stable score from the package coordinates.
func ScorePackage(pkg PackageRef) Score {
	h := fnv.New64a()
	_, _ = h.Write([]byte(pkg.Ecosystem + "/" + pkg.Depname + "@" + pkg.Version))
	sum := h.Sum64()

	// Each category takes 8 bits of the hash, mapped onto [0.50, 1.00].
	category := func(shift uint) float64 {
		return 0.5 + float64((sum>>shift)&0xff)/510
	}

	return Score{
		SupplyChain:   round2(category(0)),
		Quality:       round2(category(8)),
		Maintenance:   round2(category(16)),
		Vulnerability: round2(category(24)),
		License:       round2(category(32)),
	}
}

// FormatScore renders one package score as a single line.
func FormatScore(pkg PackageRef, s Score) string {
	return fmt.Sprintf("pkg:%s/%s@%s: supply_chain: %.2f, quality: %.2f, maintenance: %.2f, vulnerability: %.2f, license: %.2f",
		pkg.Ecosystem, pkg.Depname, pkg.Version,
		s.SupplyChain, s.Quality, s.Maintenance, s.Vulnerability, s.License)
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

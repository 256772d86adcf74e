package model

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// Commodity identifies a supported crop. The set is closed: anything not
// listed in supportedCommodities is rejected at config load.
type Commodity string

const (
	Corn        Commodity = "corn"
	Soybeans    Commodity = "soybeans"
	WinterWheat Commodity = "winter_wheat"
	SpringWheat Commodity = "spring_wheat"
	Cotton      Commodity = "cotton"
	Sorghum     Commodity = "sorghum"
)

var supportedCommodities = map[Commodity]bool{
	Corn:        true,
	Soybeans:    true,
	WinterWheat: true,
	SpringWheat: true,
	Cotton:      true,
	Sorghum:     true,
}

// ParseCommodity normalizes s (case-insensitive, spaces and dashes become
// underscores) and validates it against the supported set.
func ParseCommodity(s string) (Commodity, error) {
	norm := cases.Fold().String(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	c := Commodity(norm)
	if !supportedCommodities[c] {
		return "", eris.Errorf("model: unsupported commodity %q (valid: %s)", s, strings.Join(CommodityNames(), ", "))
	}
	return c, nil
}

// Valid reports whether c belongs to the supported set.
func (c Commodity) Valid() bool {
	return supportedCommodities[c]
}

// CommodityNames returns the supported commodity names in sorted order.
func CommodityNames() []string {
	out := make([]string, 0, len(supportedCommodities))
	for c := range supportedCommodities {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}
